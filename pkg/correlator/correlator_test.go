package correlator

import (
	"fmt"
	"testing"

	"VisionAnalytica/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func person(id int, vehicle *int, status entity.HelmetStatus) entity.Detection {
	return entity.Detection{
		Box:          entity.BoundingBox{float64(id), 0, float64(id) + 10, 20},
		Confidence:   0.9,
		Label:        "person",
		ClassID:      0,
		ID:           intPtr(id),
		VehicleID:    vehicle,
		HelmetStatus: status,
	}
}

func motorcycle(id int) entity.Detection {
	return entity.Detection{
		Box:        entity.BoundingBox{0, 10, 50, 40},
		Confidence: 0.8,
		Label:      "motorcycle",
		ClassID:    3,
		ID:         intPtr(id),
	}
}

func ridersOn(vehicle, n int) []entity.Detection {
	dets := []entity.Detection{motorcycle(vehicle)}
	for i := 0; i < n; i++ {
		dets = append(dets, person(i+1, intPtr(vehicle), entity.HelmetStatusHelmet))
	}
	return dets
}

func newTestCorrelator() *Correlator {
	return New(DefaultRules(), DefaultPolicy())
}

func assertConsistent(t *testing.T, out Output) {
	t.Helper()

	persons := map[int]entity.PersonEntity{}
	for _, p := range out.Persons {
		_, dup := persons[p.ID]
		require.False(t, dup, "duplicate person id %d", p.ID)
		persons[p.ID] = p
	}

	vehicles := map[int]bool{}
	for _, v := range out.Vehicles {
		require.False(t, vehicles[v.ID], "duplicate vehicle id %d", v.ID)
		vehicles[v.ID] = true

		assert.Equal(t, len(v.RiderIDs), v.RiderCount)
		for _, rid := range v.RiderIDs {
			p, ok := persons[rid]
			require.True(t, ok, "rider %d missing", rid)
			require.NotNil(t, p.VehicleID)
			assert.Equal(t, v.ID, *p.VehicleID)
		}
	}

	for _, p := range out.Persons {
		if p.VehicleID != nil {
			assert.True(t, p.OnVehicle)
			assert.True(t, vehicles[*p.VehicleID])
		} else {
			assert.False(t, p.OnVehicle)
		}
	}
}

func TestCorrelate_TripleRidingThresholds(t *testing.T) {
	tests := []struct {
		riders   int
		want     int
		severity entity.Severity
	}{
		{riders: 2, want: 0},
		{riders: 3, want: 1, severity: entity.SeverityMedium},
		{riders: 4, want: 1, severity: entity.SeverityMedium},
		{riders: 5, want: 1, severity: entity.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("riders_%d", tt.riders), func(t *testing.T) {
			out := newTestCorrelator().Correlate(ridersOn(9, tt.riders))
			assertConsistent(t, out)

			require.Len(t, out.Violations, tt.want)
			if tt.want == 0 {
				return
			}
			v := out.Violations[0]
			assert.Equal(t, entity.ViolationTripleRiding, v.Type)
			assert.Equal(t, tt.severity, v.Severity)
			assert.Equal(t, 9, v.VehicleID)
			assert.Equal(t, tt.riders, v.RiderCount)
			assert.Len(t, v.RiderIDs, tt.riders)
			assert.Len(t, v.PersonBoxes, tt.riders)
		})
	}
}

func TestCorrelate_ConfigurableEscalation(t *testing.T) {
	c := New(DefaultRules(), Policy{TripleRidingThreshold: 2, EscalationThreshold: 2})

	out := c.Correlate(ridersOn(1, 3))

	require.Len(t, out.Violations, 1)
	assert.Equal(t, entity.SeverityHigh, out.Violations[0].Severity)
}

func TestCorrelate_NoHelmetOnlyForRiders(t *testing.T) {
	dets := []entity.Detection{
		motorcycle(1),
		person(10, intPtr(1), entity.HelmetStatusNoHelmet),
		person(11, nil, entity.HelmetStatusNoHelmet),
		person(12, intPtr(1), entity.HelmetStatusHelmet),
	}

	out := newTestCorrelator().Correlate(dets)
	assertConsistent(t, out)

	require.Len(t, out.Violations, 1)
	v := out.Violations[0]
	assert.Equal(t, entity.ViolationNoHelmet, v.Type)
	assert.Equal(t, entity.SeverityHigh, v.Severity)
	require.NotNil(t, v.PersonID)
	assert.Equal(t, 10, *v.PersonID)
	assert.Equal(t, 1, v.VehicleID)
	require.NotNil(t, v.PersonBox)
	assert.Equal(t, dets[1].Box, *v.PersonBox)
}

func TestCorrelate_UnresolvedVehicleFallsBackToNotOnVehicle(t *testing.T) {
	dets := []entity.Detection{
		motorcycle(1),
		person(10, intPtr(99), entity.HelmetStatusNoHelmet),
	}

	out := newTestCorrelator().Correlate(dets)
	assertConsistent(t, out)

	require.Len(t, out.Persons, 1)
	assert.False(t, out.Persons[0].OnVehicle)
	assert.Nil(t, out.Persons[0].VehicleID)
	assert.Empty(t, out.Violations)
	assert.Equal(t, 0, out.Vehicles[0].RiderCount)
}

func TestCorrelate_HelmetHintsFromHelmetModel(t *testing.T) {
	dets := []entity.Detection{
		motorcycle(0),
		person(0, intPtr(0), ""),
		person(1, intPtr(0), ""),
		person(2, intPtr(0), ""),
		{Box: entity.BoundingBox{1, 1, 5, 5}, Confidence: 0.4, Label: "With Helmet", ClassID: 0, PersonID: intPtr(0)},
		{Box: entity.BoundingBox{1, 1, 5, 5}, Confidence: 0.7, Label: "Without Helmet", ClassID: 1, PersonID: intPtr(0)},
		{Box: entity.BoundingBox{1, 1, 5, 5}, Confidence: 0.6, Label: "With Helmet", ClassID: 0, PersonID: intPtr(1)},
	}

	out := newTestCorrelator().Correlate(dets)
	assertConsistent(t, out)

	require.Len(t, out.Persons, 3)
	assert.Equal(t, entity.HelmetStatusNoHelmet, out.Persons[0].HelmetStatus)
	assert.Equal(t, entity.HelmetStatusHelmet, out.Persons[1].HelmetStatus)
	assert.Equal(t, entity.HelmetStatusUnknown, out.Persons[2].HelmetStatus)

	require.Len(t, out.Violations, 2)
	assert.Equal(t, entity.ViolationNoHelmet, out.Violations[0].Type)
	assert.Equal(t, entity.ViolationTripleRiding, out.Violations[1].Type)
}

func TestCorrelate_AssignsMissingAndDuplicateIDs(t *testing.T) {
	anonymous := person(0, nil, "")
	anonymous.ID = nil

	dets := []entity.Detection{
		person(4, nil, ""),
		anonymous,
		person(4, nil, ""),
		motorcycle(2),
		motorcycle(2),
	}

	out := newTestCorrelator().Correlate(dets)
	assertConsistent(t, out)

	ids := []int{}
	for _, p := range out.Persons {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int{4, 5, 6}, ids)
	assert.Equal(t, 2, out.Vehicles[0].ID)
	assert.Equal(t, 3, out.Vehicles[1].ID)
}

func TestCorrelate_RiderCountIsDerived(t *testing.T) {
	dets := []entity.Detection{
		motorcycle(1),
		motorcycle(2),
		person(1, intPtr(1), ""),
		person(2, intPtr(2), ""),
		person(3, intPtr(1), ""),
	}

	out := newTestCorrelator().Correlate(dets)
	assertConsistent(t, out)

	assert.Equal(t, []int{1, 3}, out.Vehicles[0].RiderIDs)
	assert.Equal(t, []int{2}, out.Vehicles[1].RiderIDs)
}

func TestCorrelate_Idempotent(t *testing.T) {
	dets := append(ridersOn(3, 5), person(20, intPtr(3), entity.HelmetStatusNoHelmet))
	before := append([]entity.Detection(nil), dets...)

	c := newTestCorrelator()
	first := c.Correlate(dets)
	second := c.Correlate(dets)

	assert.Equal(t, first, second)
	assert.Equal(t, before, dets)
}

func TestCorrelate_EmptyInput(t *testing.T) {
	out := newTestCorrelator().Correlate(nil)

	assert.Empty(t, out.Persons)
	assert.Empty(t, out.Vehicles)
	assert.NotNil(t, out.Violations)
	assert.Empty(t, out.Violations)
}
