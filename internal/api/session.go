package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/insightdeck/insightdeck/internal/auth"
	"github.com/insightdeck/insightdeck/internal/export"
	"github.com/insightdeck/insightdeck/internal/questions"
	"github.com/insightdeck/insightdeck/internal/session"
	"github.com/insightdeck/insightdeck/internal/warehouse"
)

const maxRequestBody = 1 << 20

type sessionResponse struct {
	SessionID string        `json:"session_id"`
	Session   session.State `json:"session"`
}

type schemaRequest struct {
	Schema string `json:"schema"`
}

type tableRequest struct {
	Table string `json:"table"`
}

type exportResponse struct {
	SessionID string        `json:"session_id"`
	Question  int           `json:"question"`
	Export    export.Export `json:"export"`
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !sessionReady(deps, w, r) {
		return
	}
	id := sessionID(r)
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Session: deps.Sessions.Get(id)})
}

func handleConnect(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	applyTransition(deps, w, r, deps.Orchestrator.Connect)
}

func handleDisconnect(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	applyTransition(deps, w, r, deps.Orchestrator.Disconnect)
}

func handleClearLogs(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	applyTransition(deps, w, r, deps.Orchestrator.ClearLogs)
}

func handleGenerate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	applyTransition(deps, w, r, deps.Orchestrator.Generate)
}

func handleSelectSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request schemaRequest
	if !decodeBody(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Schema) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SCHEMA_REQUIRED", "schema is required", false, nil)
		return
	}
	applyTransition(deps, w, r, func(ctx context.Context, prev session.State) (session.State, error) {
		return deps.Orchestrator.SelectSchema(ctx, prev, request.Schema)
	})
}

func handleSelectTable(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request tableRequest
	if !decodeBody(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Table) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table is required", false, nil)
		return
	}
	applyTransition(deps, w, r, func(ctx context.Context, prev session.State) (session.State, error) {
		return deps.Orchestrator.SelectTable(ctx, prev, request.Table)
	})
}

func handleRunQuestion(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	index, ok := questionIndex(w, r)
	if !ok {
		return
	}
	applyTransition(deps, w, r, func(ctx context.Context, prev session.State) (session.State, error) {
		return deps.Orchestrator.RunQuestion(ctx, prev, index)
	})
}

// handleExportQuestion runs the question again and writes its result to the
// object store. The session state is left as it was.
func handleExportQuestion(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !sessionReady(deps, w, r) {
		return
	}
	if err := auth.Authorize(r.Context(), auth.RoleExporter); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	if !deps.Exporter.Enabled() {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_DISABLED", export.ErrDisabled.Error(), false, nil)
		return
	}
	index, ok := questionIndex(w, r)
	if !ok {
		return
	}

	id := sessionID(r)
	var out export.Export
	err := deps.Sessions.View(r.Context(), id, func(ctx context.Context, st session.State) error {
		question, err := st.Question(index)
		if err != nil {
			return fmt.Errorf("%w: question %d", err, index)
		}
		result, err := deps.Orchestrator.Execute(ctx, st, question)
		if err != nil {
			return err
		}
		out, err = deps.Exporter.Export(ctx, export.ExportRequest{
			SessionID: id,
			Table:     st.TableRef(),
			Question:  index + 1,
			Result:    result,
		})
		return err
	})
	if err != nil {
		status, code, retryable := classifyError(err)
		writeError(r.Context(), w, status, code, err.Error(), retryable, map[string]any{"question": index})
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{SessionID: id, Question: index, Export: out})
}

func applyTransition(deps Dependencies, w http.ResponseWriter, r *http.Request, transition session.Transition) {
	if !sessionReady(deps, w, r) {
		return
	}
	id := sessionID(r)
	state, err := deps.Sessions.Apply(r.Context(), id, transition)
	if err != nil {
		status, code, retryable := classifyError(err)
		body := errorBody(r.Context(), code, err.Error(), retryable, nil)
		body["session_id"] = id
		body["session"] = state
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Session: state})
}

func sessionReady(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Sessions == nil || deps.Orchestrator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSION_NOT_CONFIGURED", "session dependencies are not configured", false, nil)
		return false
	}
	if err := auth.Authorize(r.Context(), auth.RoleExplorer); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return false
	}
	return true
}

func classifyError(err error) (status int, code string, retryable bool) {
	switch {
	case errors.Is(err, warehouse.ErrConnection):
		return http.StatusBadGateway, "CONNECTION_FAILED", true
	case errors.Is(err, warehouse.ErrMetadata):
		return http.StatusBadGateway, "METADATA_FAILED", true
	case errors.Is(err, questions.ErrGeneration):
		return http.StatusBadGateway, "GENERATION_FAILED", true
	case errors.Is(err, warehouse.ErrQuery):
		return http.StatusUnprocessableEntity, "QUERY_FAILED", false
	case errors.Is(err, session.ErrInvalidState):
		return http.StatusConflict, "INVALID_STATE", false
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", false
	case errors.Is(err, export.ErrExport):
		return http.StatusBadGateway, "EXPORT_FAILED", true
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", true
	default:
		return http.StatusInternalServerError, "INTERNAL", false
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}

func questionIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_INDEX", "question index must be a non-negative integer", false, map[string]any{"index": raw})
		return 0, false
	}
	return index, true
}

// sessionID prefers the authenticated identity, then X-Session-ID.
func sessionID(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		if id := strings.TrimSpace(identity.SessionID); id != "" {
			return id
		}
	}
	if id := strings.TrimSpace(r.Header.Get("X-Session-ID")); id != "" {
		return id
	}
	return session.DefaultID
}
