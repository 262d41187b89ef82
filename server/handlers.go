package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dshills/shopagent/assistant"
	"github.com/dshills/shopagent/graph"
	"github.com/dshills/shopagent/graph/model"
	"github.com/dshills/shopagent/graph/store"
	"github.com/dshills/shopagent/logging"
)

// AgentRequest is the body of POST /agent.
type AgentRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id,omitempty"`
	CartID   string `json:"cart_id,omitempty"`
}

// ErrorData is the payload of an error frame or error response.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// frame is a typed SSE payload.
type frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Error codes that do not come from the engine.
const (
	CodeBadRequest = "BAD_REQUEST"
	CodeInternal   = "INTERNAL"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	logger := logging.For(r.Context(), s.logger)

	var body AgentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorData{Code: CodeBadRequest, Message: "invalid request body"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorData{Code: CodeInternal, Message: "streaming not supported"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	notes, err := s.runner.Run(ctx, assistant.Request{
		ThreadID: body.ThreadID,
		Message:  body.Query,
		UserID:   body.UserID,
		CartID:   body.CartID,
	})
	if err != nil {
		if errors.Is(err, assistant.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, ErrorData{Code: CodeBadRequest, Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorData(err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for n := range notes {
		var data string
		switch n.Kind {
		case assistant.KindProgress:
			data = n.Progress
		case assistant.KindResult:
			data = mustJSON(frame{Type: n.Kind.String(), Data: n.Result})
		case assistant.KindError:
			data = mustJSON(frame{Type: n.Kind.String(), Data: errorData(n.Err)})
		}
		if err := writeEvent(w, data); err != nil {
			logger.Warn("client went away", zap.Error(err))
			// Stop the run at its next step boundary, then wait for it.
			cancel()
			for range notes {
			}
			return
		}
		flusher.Flush()
	}
}

// ThreadResponse is the body of GET /threads/{id}.
type ThreadResponse struct {
	ThreadID   string                `json:"thread_id"`
	Step       int                   `json:"step"`
	NodeID     string                `json:"node_id"`
	TraceID    string                `json:"trace_id"`
	Answer     string                `json:"answer"`
	Messages   []model.Message       `json:"messages"`
	References []assistant.Reference `json:"references"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	cp, err := s.runner.State(r.Context(), threadID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorData{Code: graph.CodeThreadNotFound, Message: "thread " + threadID + " not found"})
		return
	case err != nil:
		logging.For(r.Context(), s.logger).Error("load thread", zap.String("thread_id", threadID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorData(err))
		return
	}

	st := cp.State
	writeJSON(w, http.StatusOK, ThreadResponse{
		ThreadID:   cp.ThreadID,
		Step:       cp.Step,
		NodeID:     cp.NodeID,
		TraceID:    st.TraceID,
		Answer:     st.Answer,
		Messages:   nonNil(st.Messages),
		References: nonNil(st.References),
		UpdatedAt:  cp.CreatedAt,
	})
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	if err := s.runner.Forget(r.Context(), threadID); err != nil {
		logging.For(r.Context(), s.logger).Error("forget thread", zap.String("thread_id", threadID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorData(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func errorData(err error) ErrorData {
	code := graph.ErrorCode(err)
	if code == "" {
		code = CodeInternal
	}
	return ErrorData{Code: code, Message: err.Error()}
}

// writeEvent writes one SSE frame. Multi-line data is split across data
// fields.
func writeEvent(w http.ResponseWriter, data string) error {
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"type":"error","data":{"code":%q,"message":%q}}`, CodeInternal, err.Error())
	}
	return string(b)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
