package domain

// Recommendation is one actionable suggestion derived from triggered rules.
// Amounts carries the dynamic figures referenced in the body so clients can
// render them without re-parsing the text.
type Recommendation struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Actions     []string       `json:"actions,omitempty"`
	Amounts     map[string]any `json:"amounts,omitempty"`
	LinkedRisks []Dimension    `json:"linkedRisks,omitempty"`
	Priority    int            `json:"priority"`
	DataRefs    []string       `json:"dataRefs,omitempty"`
}
