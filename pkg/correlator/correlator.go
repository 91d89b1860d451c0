// Package correlator turns raw detections into persons, vehicles and the
// violations derived from them.
//
// Associations are trusted from the backend: a person rides vehicle V only
// when the detection's VehicleID names V. No geometric overlap is computed.
// Identities are plain ints looked up inside one batch.
package correlator

import (
	"fmt"
	"slices"
	"strings"

	"VisionAnalytica/internal/entity"
)

// Rules describes the backend's class taxonomy.
type Rules struct {
	PersonClassIDs   []int
	VehicleClassIDs  []int
	HelmetClassIDs   []int
	NoHelmetClassIDs []int
	HelmetLabels     []string
	NoHelmetLabels   []string
}

// DefaultRules matches the COCO base model (0 person, 3 motorcycle) combined
// with the helmet model's "With Helmet" / "Without Helmet" labels.
func DefaultRules() Rules {
	return Rules{
		PersonClassIDs:  []int{0},
		VehicleClassIDs: []int{3},
		HelmetLabels:    []string{"with helmet", "with_helmet", "helmet"},
		NoHelmetLabels:  []string{"without helmet", "without_helmet", "no helmet", "no_helmet", "without"},
	}
}

// Policy holds the violation thresholds.
type Policy struct {
	// A vehicle carrying more than TripleRidingThreshold riders is a violation.
	TripleRidingThreshold int
	// Above EscalationThreshold riders the violation becomes high severity.
	EscalationThreshold int
}

func DefaultPolicy() Policy {
	return Policy{TripleRidingThreshold: 2, EscalationThreshold: 4}
}

type Output struct {
	Persons    []entity.PersonEntity
	Vehicles   []entity.VehicleEntity
	Violations []entity.Violation
}

type Correlator struct {
	rules  Rules
	policy Policy
}

func New(rules Rules, policy Policy) *Correlator {
	return &Correlator{rules: rules, policy: policy}
}

type role int

const (
	roleOther role = iota
	rolePerson
	roleVehicle
	roleHint
)

type hint struct {
	personID   int
	status     entity.HelmetStatus
	confidence float64
}

// Correlate is a pure function of dets. It never mutates the input.
func (c *Correlator) Correlate(dets []entity.Detection) Output {
	var personDets, vehicleDets []entity.Detection
	var hints []hint

	for _, d := range dets {
		switch r, status := c.classify(d); r {
		case rolePerson:
			personDets = append(personDets, d)
		case roleVehicle:
			vehicleDets = append(vehicleDets, d)
		case roleHint:
			if d.PersonID != nil {
				hints = append(hints, hint{personID: *d.PersonID, status: status, confidence: d.Confidence})
			}
		}
	}

	personIDs := assignIDs(personDets)
	vehicleIDs := assignIDs(vehicleDets)

	vehicles := make([]entity.VehicleEntity, len(vehicleDets))
	vehicleIndex := make(map[int]int, len(vehicleDets))
	for i, d := range vehicleDets {
		vehicles[i] = entity.VehicleEntity{
			ID:         vehicleIDs[i],
			Box:        d.Box,
			Confidence: d.Confidence,
			RiderIDs:   []int{},
		}
		vehicleIndex[vehicleIDs[i]] = i
	}

	persons := make([]entity.PersonEntity, len(personDets))
	for i, d := range personDets {
		p := entity.PersonEntity{
			ID:           personIDs[i],
			Box:          d.Box,
			Confidence:   d.Confidence,
			HelmetStatus: resolveHelmet(personIDs[i], d.HelmetStatus, hints),
		}
		if d.VehicleID != nil {
			if vi, ok := vehicleIndex[*d.VehicleID]; ok {
				vid := vehicles[vi].ID
				p.OnVehicle = true
				p.VehicleID = &vid
				vehicles[vi].RiderIDs = append(vehicles[vi].RiderIDs, p.ID)
			}
		}
		persons[i] = p
	}

	for i := range vehicles {
		vehicles[i].RiderCount = len(vehicles[i].RiderIDs)
	}

	return Output{
		Persons:    persons,
		Vehicles:   vehicles,
		Violations: c.Violations(persons, vehicles),
	}
}

// Violations derives violations from already correlated entities: one
// no_helmet per helmetless rider, then one triple_riding per crowded vehicle.
func (c *Correlator) Violations(persons []entity.PersonEntity, vehicles []entity.VehicleEntity) []entity.Violation {
	byVehicle := make(map[int]entity.VehicleEntity, len(vehicles))
	for _, v := range vehicles {
		byVehicle[v.ID] = v
	}
	byPerson := make(map[int]entity.PersonEntity, len(persons))
	for _, p := range persons {
		byPerson[p.ID] = p
	}

	violations := []entity.Violation{}
	for _, p := range persons {
		if !p.OnVehicle || p.VehicleID == nil || p.HelmetStatus != entity.HelmetStatusNoHelmet {
			continue
		}
		v, ok := byVehicle[*p.VehicleID]
		if !ok {
			continue
		}
		pid := p.ID
		box := p.Box
		violations = append(violations, entity.Violation{
			Type:        entity.ViolationNoHelmet,
			Severity:    entity.SeverityHigh,
			Description: fmt.Sprintf("Rider #%d on motorcycle #%d is not wearing a helmet", p.ID, v.ID),
			VehicleID:   v.ID,
			VehicleBox:  v.Box,
			PersonID:    &pid,
			PersonBox:   &box,
		})
	}

	for _, v := range vehicles {
		if v.RiderCount <= c.policy.TripleRidingThreshold {
			continue
		}
		severity := entity.SeverityMedium
		if v.RiderCount > c.policy.EscalationThreshold {
			severity = entity.SeverityHigh
		}
		boxes := make([]entity.BoundingBox, 0, len(v.RiderIDs))
		for _, id := range v.RiderIDs {
			boxes = append(boxes, byPerson[id].Box)
		}
		violations = append(violations, entity.Violation{
			Type:        entity.ViolationTripleRiding,
			Severity:    severity,
			Description: fmt.Sprintf("Motorcycle #%d is carrying %d riders", v.ID, v.RiderCount),
			VehicleID:   v.ID,
			VehicleBox:  v.Box,
			RiderCount:  v.RiderCount,
			RiderIDs:    slices.Clone(v.RiderIDs),
			PersonBoxes: boxes,
		})
	}

	return violations
}

func (c *Correlator) classify(d entity.Detection) (role, entity.HelmetStatus) {
	switch {
	case slices.Contains(c.rules.PersonClassIDs, d.ClassID) && !c.isHintLabel(d.Label):
		return rolePerson, ""
	case slices.Contains(c.rules.VehicleClassIDs, d.ClassID):
		return roleVehicle, ""
	case slices.Contains(c.rules.NoHelmetClassIDs, d.ClassID):
		return roleHint, entity.HelmetStatusNoHelmet
	case slices.Contains(c.rules.HelmetClassIDs, d.ClassID):
		return roleHint, entity.HelmetStatusHelmet
	}

	label := strings.ToLower(d.Label)
	if containsAny(label, c.rules.NoHelmetLabels) {
		return roleHint, entity.HelmetStatusNoHelmet
	}
	if containsAny(label, c.rules.HelmetLabels) {
		return roleHint, entity.HelmetStatusHelmet
	}
	return roleOther, ""
}

// isHintLabel keeps helmet-model outputs that share a class id with the
// person class (both models number from 0) out of the person set.
func (c *Correlator) isHintLabel(label string) bool {
	l := strings.ToLower(label)
	return l != "" && l != "person" && (containsAny(l, c.rules.NoHelmetLabels) || containsAny(l, c.rules.HelmetLabels))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// assignIDs keeps backend ids when unique and numbers the rest after the
// largest explicit id, in input order.
func assignIDs(dets []entity.Detection) []int {
	ids := make([]int, len(dets))
	next := 0
	for _, d := range dets {
		if d.ID != nil && *d.ID >= next {
			next = *d.ID + 1
		}
	}

	seen := make(map[int]bool, len(dets))
	for i, d := range dets {
		if d.ID != nil && !seen[*d.ID] {
			ids[i] = *d.ID
			seen[*d.ID] = true
			continue
		}
		ids[i] = next
		seen[next] = true
		next++
	}
	return ids
}

func resolveHelmet(personID int, explicit entity.HelmetStatus, hints []hint) entity.HelmetStatus {
	if explicit == entity.HelmetStatusHelmet || explicit == entity.HelmetStatusNoHelmet {
		return explicit
	}

	status := entity.HelmetStatusUnknown
	best := -1.0
	for _, h := range hints {
		if h.personID == personID && h.confidence > best {
			status = h.status
			best = h.confidence
		}
	}
	return status
}
