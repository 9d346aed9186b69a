package model

// LeadPriority buckets a scored lead for follow-up.
type LeadPriority string

const (
	PriorityHigh   LeadPriority = "high"
	PriorityMedium LeadPriority = "medium"
	PriorityLow    LeadPriority = "low"
)

// LeadScoringRequest carries whatever is known about a lead. Every field is
// optional; the empty request is valid input.
type LeadScoringRequest struct {
	Budget        *float64 `json:"budget,omitempty" yaml:"budget,omitempty"`
	Timeline      string   `json:"timeline,omitempty" yaml:"timeline,omitempty"`
	PropertyType  string   `json:"propertyType,omitempty" yaml:"propertyType,omitempty"`
	Location      string   `json:"location,omitempty" yaml:"location,omitempty"`
	ContactMethod string   `json:"contactMethod,omitempty" yaml:"contactMethod,omitempty"`
	Source        string   `json:"source,omitempty" yaml:"source,omitempty"`
}

// IsEmpty reports whether no field of the request is set.
func (r LeadScoringRequest) IsEmpty() bool {
	return r.Budget == nil && r.Timeline == "" && r.PropertyType == "" &&
		r.Location == "" && r.ContactMethod == "" && r.Source == ""
}

// LeadScoringResult is the structured answer for a LeadScoringRequest.
type LeadScoringResult struct {
	Score           float64            `json:"score" yaml:"score"`
	Priority        LeadPriority       `json:"priority" yaml:"priority"`
	Factors         map[string]float64 `json:"factors" yaml:"factors"`
	Recommendations []string           `json:"recommendations" yaml:"recommendations"`
}
