package entity

type HelmetPresence string

const (
	HelmetPresenceYes     HelmetPresence = "yes"
	HelmetPresenceNo      HelmetPresence = "no"
	HelmetPresenceUnknown HelmetPresence = "unknown"
)

func (h HelmetPresence) Valid() bool {
	switch h {
	case HelmetPresenceYes, HelmetPresenceNo, HelmetPresenceUnknown:
		return true
	}
	return false
}

// Result is one normalized provider outcome: either *AnalysisResult or *DetectionResult.
type Result interface {
	ProviderName() string
}

type AnalysisResult struct {
	Object         string         `json:"object"`
	PeopleCount    int            `json:"people_count"`
	HelmetPresence HelmetPresence `json:"helmet"`
	Provider       string         `json:"provider"`
}

func (r *AnalysisResult) ProviderName() string {
	return r.Provider
}
