package models

// DefaultAnalysisQuery is used when a request carries no query.
const DefaultAnalysisQuery = "Run a full financial analysis."

// AnalysisRequest is the body of an agent analysis request.
type AnalysisRequest struct {
	Ticker string `json:"ticker" validate:"required,max=20"`
	Query  string `json:"query" validate:"max=2000"`
}

// AgentStep records one tool invocation inside an agent run.
type AgentStep struct {
	Thought     string `json:"thought,omitempty"`
	Tool        string `json:"tool"`
	ToolInput   string `json:"tool_input"`
	Observation string `json:"observation"`
}

// AgentRun is the raw outcome of one agent invocation.
type AgentRun struct {
	Output     string      `json:"output"`
	Steps      []AgentStep `json:"steps"`
	Iterations int         `json:"iterations"`
	Stopped    bool        `json:"stopped"` // iteration limit reached before a final answer
}
