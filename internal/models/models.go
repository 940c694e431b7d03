package models

import "encoding/json"

// ==================== HTTP API Models ====================

// StartResponse is returned by GET /start
type StartResponse struct {
	ThreadID string `json:"thread_id"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// ChatResponse is returned by POST /chat
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ==================== Assistant Models ====================

// AssistantConfig is the single persisted record identifying the remote assistant
type AssistantConfig struct {
	AssistantID string `json:"assistant_id"`
}

// AssistantDefinition describes an assistant to register with the remote service
type AssistantDefinition struct {
	Name          string
	Instructions  string
	Model         string
	Functions     []FunctionDef
	VectorStoreID string // Knowledge document attachment for file_search
}

// FunctionDef represents a function tool declaration
type FunctionDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ==================== Run Models ====================

// RunStatus mirrors the remote run lifecycle
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// IsTerminal reports whether the run can no longer change state
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete:
		return true
	}
	return false
}

// Run is a snapshot of one remote assistant turn
type Run struct {
	ID        string
	ThreadID  string
	Status    RunStatus
	ToolCalls []ToolCallRequest // Pending calls, only set in requires_action
	LastError string
}

// ToolCallRequest is a function call the run is waiting on
type ToolCallRequest struct {
	CallID       string
	FunctionName string
	Arguments    string // JSON object
}

// ToolCallResult answers a ToolCallRequest
type ToolCallResult struct {
	CallID string
	Output string // JSON-encoded value
}

// ==================== Message Models ====================

// Message is an assistant reply with its annotations
type Message struct {
	ID          string
	Text        string
	Annotations []Annotation
}

// Annotation marks a span of the message text that references a source
type Annotation struct {
	Type       string `json:"type"` // "file_citation", "file_path"
	Text       string `json:"text"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	FileID     string `json:"-"`
	Quote      string `json:"-"`
}

// HasFileCitation reports whether the annotation cites a file
func (a Annotation) HasFileCitation() bool {
	return a.FileID != "" && a.Type == "file_citation"
}

// UnmarshalJSON flattens the nested file_citation / file_path object
func (a *Annotation) UnmarshalJSON(data []byte) error {
	type plain Annotation
	var raw struct {
		plain
		FileCitation *struct {
			FileID string `json:"file_id"`
			Quote  string `json:"quote"`
		} `json:"file_citation"`
		FilePath *struct {
			FileID string `json:"file_id"`
		} `json:"file_path"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = Annotation(raw.plain)
	switch {
	case raw.FileCitation != nil:
		a.FileID = raw.FileCitation.FileID
		a.Quote = raw.FileCitation.Quote
	case raw.FilePath != nil:
		a.FileID = raw.FilePath.FileID
	}
	return nil
}
