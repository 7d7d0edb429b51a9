// Package report defines the output contract shared by every analysis
// unit: facts, signals, and the per-unit report appended to the run state.
package report

// Confidence grades how well a fact or signal is supported.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Status is the resolution state of a signal.
type Status string

const (
	StatusDetected    Status = "DETECTED"
	StatusNotDetected Status = "NOT_DETECTED"
	StatusUnknown     Status = "UNKNOWN"
)

// ModelKnowledge is the publisher marker substituted for placeholder
// citations so scoring never treats model speculation as external
// evidence.
const ModelKnowledge = "model knowledge"

// Source is a citation backing a fact.
type Source struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Date      string `json:"date,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

// Fact is a single researched statement with its citations.
type Fact struct {
	Category   string     `json:"category"`
	Statement  string     `json:"statement"`
	Confidence Confidence `json:"confidence"`
	Sources    []Source   `json:"sources,omitempty"`
}

// Signal is one detection verdict emitted by an analysis unit.
// ID is unique within a report; across reports the scoring merge
// resolves duplicates by canonical unit order.
type Signal struct {
	ID         string     `json:"signal_id"`
	Status     Status     `json:"status"`
	Value      string     `json:"value,omitempty"`
	Evidence   string     `json:"evidence,omitempty"`
	Confidence Confidence `json:"confidence,omitempty"`
	Sources    []string   `json:"sources,omitempty"`
}

// DataQuality summarizes how well-sourced a report is.
type DataQuality struct {
	SourceCount       int        `json:"sources_count"`
	LinkedInAvailable bool       `json:"linkedin_available"`
	OverallConfidence Confidence `json:"confidence_overall"`
}

// AgentReport is one analysis unit's immutable output.
type AgentReport struct {
	Unit        string      `json:"unit"`
	Facts       []Fact      `json:"facts,omitempty"`
	Signals     []Signal    `json:"signals,omitempty"`
	DataQuality DataQuality `json:"data_quality"`
}

// Degraded returns the empty fallback report for a unit whose analysis
// could not complete. Downstream scoring treats every expected signal
// as UNKNOWN.
func Degraded(unit string) AgentReport {
	return AgentReport{
		Unit: unit,
		DataQuality: DataQuality{
			OverallConfidence: ConfidenceLow,
		},
	}
}

// SignalByID returns the report's signal with the given ID, if present.
func (r AgentReport) SignalByID(id string) (Signal, bool) {
	for _, s := range r.Signals {
		if s.ID == id {
			return s, true
		}
	}
	return Signal{}, false
}

// AllUnknown reports whether every signal carries status UNKNOWN with
// empty evidence, the degenerate shape that triggers extraction
// escalation. An empty signal list counts as degenerate.
func (r AgentReport) AllUnknown() bool {
	if len(r.Signals) == 0 {
		return true
	}
	for _, s := range r.Signals {
		if s.Status != StatusUnknown || s.Evidence != "" {
			return false
		}
	}
	return true
}
