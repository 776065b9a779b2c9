package models

// Phase is the tag of an AnalysisState.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePending  Phase = "pending"
	PhaseComplete Phase = "complete"
	PhaseFailed   Phase = "failed"
)

// IsTerminal reports whether the phase ends an analysis run.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// AnalysisResult is the canned outcome of a simulated analysis.
type AnalysisResult struct {
	Title             string `json:"title" msgpack:"title"`
	ConfidencePercent int    `json:"confidencePercent" msgpack:"confidencePercent"`
	Recommendation    string `json:"recommendation" msgpack:"recommendation"`
}

// AnalysisState is a tagged variant: MessageIndex is meaningful only while
// pending, Result only when complete, Reason only when failed.
type AnalysisState struct {
	Phase        Phase           `json:"phase" msgpack:"phase"`
	MessageIndex int             `json:"messageIndex" msgpack:"messageIndex"`
	Result       *AnalysisResult `json:"result,omitempty" msgpack:"result,omitempty"`
	Reason       string          `json:"reason,omitempty" msgpack:"reason,omitempty"`
	StartedAt    int64           `json:"startedAt,omitempty" msgpack:"startedAt,omitempty"`     // Unix ms
	CompletedAt  int64           `json:"completedAt,omitempty" msgpack:"completedAt,omitempty"` // Unix ms
}

// IdleState returns the initial analysis state.
func IdleState() AnalysisState {
	return AnalysisState{Phase: PhaseIdle}
}
