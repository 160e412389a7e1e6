package domain

const (
	// AnalysisPhaseStarted is emitted once per run with the total unanalyzed count.
	AnalysisPhaseStarted AnalysisPhase = "started"

	// AnalysisPhaseAnalyzing is emitted around each tool attempt.
	AnalysisPhaseAnalyzing AnalysisPhase = "analyzing"

	// AnalysisPhaseCompleted is the terminal success phase (progress 100).
	AnalysisPhaseCompleted AnalysisPhase = "completed"

	// AnalysisPhaseError is the terminal failure phase.
	AnalysisPhaseError AnalysisPhase = "error"
)

// AnalysisPhase identifies a stage of a tool analysis run.
type AnalysisPhase string

// AnalysisProgress describes the state of one background analysis run.
// Progress is floor(analyzed/total*100) and is monotonically non-decreasing
// within a run.
type AnalysisProgress struct {
	ServerID      string        `json:"serverId"`
	Phase         AnalysisPhase `json:"phase"`
	TotalTools    int           `json:"totalTools"`
	AnalyzedTools int           `json:"analyzedTools"`
	CurrentTool   string        `json:"currentTool,omitempty"`
	Progress      int           `json:"progress"`
	Message       string        `json:"message,omitempty"`
	Error         string        `json:"error,omitempty"`
}
