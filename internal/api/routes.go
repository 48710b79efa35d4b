package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jupitervolta/ds1054z/internal/auth"
	"github.com/jupitervolta/ds1054z/internal/command"
	"github.com/jupitervolta/ds1054z/internal/transport"
)

// maxCommandBytes bounds a command packet body. save_json and save_note
// carry their payload inline.
const maxCommandBytes = 4 << 20

// RegisterRoutes registers all v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"
	m := s.deps.Auth

	// Health endpoint (no auth required)
	mux.HandleFunc(auth.HealthPath, s.handleHealth)

	mux.HandleFunc(apiV1+"/command", m.RequireAuth(m.RequireScope(auth.ScopeRead)(s.handleCommand)))
	mux.HandleFunc(apiV1+"/telemetry", m.RequireAuth(m.RequireScope(auth.ScopeTelemetry)(s.handleTelemetry)))
}

// healthRecentEvents bounds the event tail reported by the health endpoint.
const healthRecentEvents = 10

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed")
		return
	}

	data := map[string]interface{}{
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.deps.Status != nil {
		for k, v := range s.deps.Status.Snapshot() {
			data[k] = v
		}
	}
	if s.deps.Instrument != nil {
		data["instrument"] = s.deps.Instrument.Info()
	}
	if s.deps.Telemetry != nil {
		data["telemetryClients"] = s.deps.Telemetry.ClientCount()
		data["recentEvents"] = s.deps.Telemetry.Recent(healthRecentEvents)
	}

	WriteSuccess(w, data)
}

// handleCommand handles POST /command. The body is a command packet and the
// response body is the same packet with its result field set.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST method is allowed")
		return
	}
	if s.deps.Requests == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Command queue not available")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, command.CodeBadRequest, "Failed to read request body")
		return
	}
	if len(body) > maxCommandBytes {
		WriteError(w, http.StatusRequestEntityTooLarge, command.CodeBadRequest, "Command packet too large")
		return
	}

	packet, err := transport.DecodePacket(body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, command.CodeBadRequest, err.Error())
		return
	}

	claims, _ := auth.GetClaimsFromRequest(r)
	user := auth.AnonymousSubject
	if claims != nil {
		user = claims.Subject
	}

	// Unknown operations pass through so the dispatcher can answer UNSUPPORTED.
	if op, ok := command.Lookup(packet.API()); ok && !claims.CanRun(op.ReadOnly) {
		s.logger.Warn().Str("user", user).Str("op", op.Name).Msg("Operation denied")
		WriteError(w, http.StatusForbidden, command.CodeUnauthorized, "Role does not permit "+op.Name)
		return
	}

	resp, err := s.deps.Requests.Request(r.Context(), packet, user)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			WriteError(w, http.StatusGatewayTimeout, command.CodeTimeout, err.Error())
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleTelemetry handles GET /telemetry
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed")
		return
	}
	if s.deps.Telemetry == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Telemetry not available")
		return
	}

	if err := s.deps.Telemetry.Subscribe(r.Context(), w, r); err != nil {
		s.logger.Debug().Err(err).Msg("Telemetry subscription ended")
	}
}
