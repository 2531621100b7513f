package api

import (
	"time"

	"github.com/armcore/arm7tdmi/controller"
)

// SessionCreateRequest carries session-creation options. The flat, unsized
// memory model (§4.2) leaves nothing to configure today; the struct exists so
// the wire format can grow without an API break.
type SessionCreateRequest struct{}

// SessionCreateResponse is the response from creating a session.
type SessionCreateResponse struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoadProgramAPIRequest is the wire shape of §6's load_program command: one
// of Path or Contents must be set.
type LoadProgramAPIRequest struct {
	Path     string `json:"path,omitempty"`
	Contents string `json:"contents,omitempty"`
}

// LoadProgramAPIResponse reports whether assembly succeeded and, on failure,
// every diagnostic collected.
type LoadProgramAPIResponse struct {
	Success     bool                    `json:"success"`
	Diagnostics []controller.Diagnostic `json:"diagnostics,omitempty"`
}

// ResetRequest selects soft (default) or hard reset (§3).
type ResetRequest struct {
	Hard bool `json:"hard,omitempty"`
}

// StepRequest is the wire shape of §6's step_times command.
type StepRequest struct {
	Count uint32 `json:"count"`
}

// StepResponse carries any terminal output produced by the step.
type StepResponse struct {
	Output    string `json:"output,omitempty"`
	HasOutput bool   `json:"has_output"`
}

// RegistersResponse is the flat 37-slot register view of §6.
type RegistersResponse struct {
	Registers [37]uint32 `json:"registers"`
}

// BreakpointAPIRequest toggles a breakpoint at Address.
type BreakpointAPIRequest struct {
	Address uint32 `json:"address"`
	Set     bool   `json:"set"`
}

// UserInputRequest is the wire shape of §6's set_user_input command.
type UserInputRequest struct {
	Input string `json:"input"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// SuccessResponse represents a simple success response.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
