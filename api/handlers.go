package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/armcore/arm7tdmi/controller"
)

// handleCreateSession handles POST /api/v1/session
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionCreateRequest
	_ = readJSON(r, &req) // an absent or empty body is fine; no fields yet

	session, err := s.sessions.CreateSession(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create session: %v", err))
		return
	}

	writeJSON(w, http.StatusCreated, SessionCreateResponse{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
	})
}

// handleListSessions handles GET /api/v1/session
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.sessions.ListSessions()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": ids,
		"count":    len(ids),
	})
}

// handleGetSessionStatus handles GET /api/v1/session/{id} (an alias for
// processor_info, §6).
func (s *Server) handleGetSessionStatus(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, session.Ctrl.ProcessorInfo())
}

// handleDestroySession handles DELETE /api/v1/session/{id}
func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.sessions.DestroySession(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Session destroyed"})
}

// handleLoadProgram handles POST /api/v1/session/{id}/load, the load_program
// command of §6.
func (s *Server) handleLoadProgram(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req LoadProgramAPIRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	diags := session.Ctrl.LoadProgram(controller.LoadProgramRequest{Path: req.Path, Contents: req.Contents})
	if diags != nil {
		writeJSON(w, http.StatusBadRequest, LoadProgramAPIResponse{Success: false, Diagnostics: diags})
		return
	}

	s.broadcaster.BroadcastState(sessionID, map[string]interface{}{"status": session.Ctrl.ProcessorInfo().State})
	writeJSON(w, http.StatusOK, LoadProgramAPIResponse{Success: true})
}

// handleReset handles POST /api/v1/session/{id}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req ResetRequest
	_ = readJSON(r, &req) // empty body means a soft reset

	session.Ctrl.Reset(req.Hard)
	s.broadcaster.BroadcastState(sessionID, map[string]interface{}{"status": session.Ctrl.ProcessorInfo().State})
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "VM reset"})
}

// handleStep handles POST /api/v1/session/{id}/step, the step_times command.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req StepRequest
	if err := readJSON(r, &req); err != nil || req.Count == 0 {
		req.Count = 1
	}

	output, hasOutput := session.Ctrl.StepTimes(req.Count)
	if hasOutput {
		s.broadcaster.BroadcastOutput(sessionID, "stdout", output)
	}

	info := session.Ctrl.ProcessorInfo()
	s.broadcaster.BroadcastState(sessionID, map[string]interface{}{
		"status":      info.State,
		"previous_pc": info.PreviousPC,
		"steps":       info.Steps,
	})

	writeJSON(w, http.StatusOK, StepResponse{Output: output, HasOutput: hasOutput})
}

// handleProcessorInfo handles GET /api/v1/session/{id}/info
func (s *Server) handleProcessorInfo(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, session.Ctrl.ProcessorInfo())
}

// handleGetRegisters handles GET /api/v1/session/{id}/registers
func (s *Server) handleGetRegisters(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, RegistersResponse{Registers: session.Ctrl.Registers()})
}

// handleLineAt handles GET /api/v1/session/{id}/line?address=0x..., the
// line_at command.
func (s *Server) handleLineAt(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	addr, err := parseHexOrDec(r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid address parameter")
		return
	}

	writeJSON(w, http.StatusOK, session.Ctrl.LineAt(uint32(addr))) // #nosec G115 -- parseHexOrDec validates input fits in uint32
}

// handleBreakpoint handles POST /api/v1/session/{id}/breakpoint
func (s *Server) handleBreakpoint(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req BreakpointAPIRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session.Ctrl.Breakpoint(req.Address, req.Set)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// handleHitBreakpoint handles POST /api/v1/session/{id}/hit-breakpoint
func (s *Server) handleHitBreakpoint(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	session.Ctrl.HitBreakpoint()
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// handleSetUserInput handles POST /api/v1/session/{id}/input
func (s *Server) handleSetUserInput(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req UserInputRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session.Ctrl.SetUserInput(req.Input)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// parseHexOrDec parses a string as either hexadecimal (0x prefix) or decimal.
func parseHexOrDec(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}

	if len(s) > 2 && s[:2] == "0x" {
		return strconv.ParseUint(s[2:], 16, 32)
	}

	return strconv.ParseUint(s, 10, 32)
}
