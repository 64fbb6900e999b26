// Package server exposes the REST surface and the websocket upgrade
// endpoint over a chi router.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kira-labs/orchestrator/agent"
	"github.com/kira-labs/orchestrator/command"
	"github.com/kira-labs/orchestrator/core/protocol"
	"github.com/kira-labs/orchestrator/pipeline"
	"github.com/kira-labs/orchestrator/schedule"
)

const traceIDHeader = "X-Trace-Id"

// Event statuses accepted by the adaptation endpoint.
var allowedStatuses = map[string]struct{}{
	"completed":   {},
	"skipped":     {},
	"rescheduled": {},
}

// Pipeline is the slice of the goal coordinator the message endpoint needs.
type Pipeline interface {
	Run(ctx context.Context, userID, text, traceID string) (*pipeline.Result, error)
}

// Invoker calls a single named agent; the adaptation endpoint uses it to
// reach the AdaptationAgent directly.
type Invoker interface {
	Invoke(ctx context.Context, agentName string, input map[string]any, traceID string) (*agent.Response, error)
}

// Broadcaster pushes a frame to every connected websocket client.
type Broadcaster interface {
	Broadcast(f protocol.Frame)
}

// Server wires the REST handlers, the schedule store, and the websocket
// orchestrator behind one router.
type Server struct {
	pipeline    Pipeline
	invoker     Invoker
	store       *schedule.Store
	broadcaster Broadcaster
	ws          http.Handler
	userID      string
	router      chi.Router
}

// New builds the router. ws handles the websocket upgrade on GET /ws;
// broadcaster may be the same orchestrator or nil when no clients can be
// connected (tests).
func New(p Pipeline, inv Invoker, store *schedule.Store, ws http.Handler, broadcaster Broadcaster, userID string) *Server {
	srv := &Server{
		pipeline:    p,
		invoker:     inv,
		store:       store,
		broadcaster: broadcaster,
		ws:          ws,
		userID:      userID,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(traceID)

	r.Get("/health", srv.handleHealth)
	r.With(command.Middleware).Post("/messages", srv.handleMessage)
	r.Patch("/events/{sessionID}", srv.handleEventUpdate)
	r.Get("/events/upcoming", srv.handleUpcoming)
	if ws != nil {
		r.Get("/ws", ws.ServeHTTP)
	}

	srv.router = r
	return srv
}

// Handler returns the composed router for mounting into an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// traceID honours an inbound X-Trace-Id header, generates one otherwise,
// and echoes it on the response.
func traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(traceIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(traceIDHeader, id)
		next.ServeHTTP(w, r.WithContext(withTraceID(r.Context(), id)))
	})
}

type traceKey struct{}

func withTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "kira-orchestrator",
	})
}

// messageResponse is the synchronous reply of POST /messages.
type messageResponse struct {
	Text  string       `json:"text"`
	Tasks []agent.Task `json:"tasks,omitempty"`
}

// handleMessage accepts a message.user frame and answers synchronously:
// slash commands get their acknowledgement, everything else runs the goal
// pipeline inline.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	trace := traceFromContext(r.Context())

	if cmd, ok := command.FromContext(r.Context()); ok {
		writeJSON(w, http.StatusOK, messageResponse{Text: command.Acknowledgement(cmd)})
		return
	}

	frame, err := decodeFrame(r)
	if err != nil || frame.Type != protocol.FrameUserMessage {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be a message.user frame"})
		return
	}
	var payload protocol.UserMessagePayload
	if err := frame.DecodePayload(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be a message.user frame"})
		return
	}
	text := strings.TrimSpace(payload.Content)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty message"})
		return
	}

	result, err := s.pipeline.Run(r.Context(), s.userID, text, trace)
	if err != nil {
		slog.Error("pipeline run failed", "error", err, "trace_id", trace)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "goal processing failed"})
		return
	}

	if result.Intent != agent.IntentNewGoal {
		writeJSON(w, http.StatusOK, messageResponse{
			Text: "I hear you. Tell me about a goal you'd like to work on.",
		})
		return
	}

	var b strings.Builder
	b.WriteString("✅ Goal captured! Here are your tasks:")
	for _, task := range result.Tasks {
		b.WriteString("\n- ")
		b.WriteString(task.Description)
	}
	writeJSON(w, http.StatusOK, messageResponse{Text: b.String(), Tasks: result.Tasks})
}

// handleEventUpdate applies a status change to one scheduled event by way
// of the AdaptationAgent: the agent returns a full replacement schedule,
// which is committed and announced to connected clients.
func (s *Server) handleEventUpdate(w http.ResponseWriter, r *http.Request) {
	trace := traceFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if _, ok := allowedStatuses[body.Status]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be completed, skipped, or rescheduled"})
		return
	}

	current, ok := s.store.Get(s.userID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no schedule for user"})
		return
	}

	resp, err := s.invoker.Invoke(r.Context(), agent.Adaptation, map[string]any{
		"schedule": current,
		"adaptation_request": map[string]any{
			"action":     body.Status,
			"session_id": sessionID,
		},
	}, trace)
	if err != nil {
		slog.Error("adaptation failed", "error", err, "session_id", sessionID, "trace_id", trace)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "adaptation failed"})
		return
	}

	var updated agent.Schedule
	if err := json.Unmarshal(resp.OutputData, &updated); err != nil {
		slog.Error("undecodable adaptation output", "error", err, "trace_id", trace)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "adaptation failed"})
		return
	}
	s.store.Put(s.userID, updated)

	if s.broadcaster != nil {
		frame, err := protocol.NewFrame(protocol.FrameScheduleUpdate, protocol.ScheduleUpdatePayload{
			SessionID: sessionID,
			Status:    body.Status,
		})
		if err == nil {
			s.broadcaster.Broadcast(frame)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"events": s.store.Upcoming(s.userID, time.Now()),
	})
}

func decodeFrame(r *http.Request) (protocol.Frame, error) {
	var frame protocol.Frame
	if r.Body == nil {
		return frame, http.ErrBodyNotAllowed
	}
	defer r.Body.Close()
	return frame, json.NewDecoder(r.Body).Decode(&frame)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
