// Package orchestrator owns per-connection session state and dispatches
// inbound frames to slash-command handling, local inference, or the remote
// goal pipeline, streaming results back as typed frames.
//
// Each connection gets its own session record and a sequential dispatch
// queue: one logical response is in flight at a time, so the frame order
// for a message (typing-start, deltas, completion, typing-stop) is never
// interleaved with another message on the same connection. Connections are
// handled concurrently with each other.
package orchestrator

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kira-labs/orchestrator/core/protocol"
	"github.com/kira-labs/orchestrator/envelope"
	"github.com/kira-labs/orchestrator/inference"
	"github.com/kira-labs/orchestrator/observability"
	"github.com/kira-labs/orchestrator/pipeline"
	"github.com/kira-labs/orchestrator/session"
)

// userErrorMessage is the only error text a client ever sees; internal
// detail stays in the logs.
const userErrorMessage = "I'm having trouble processing your message right now. Please try again."

// goalKeywords drive the low-confidence goal-intent heuristic:
// case-insensitive substring match.
var goalKeywords = []string{
	"goal", "learn", "achieve", "accomplish", "plan", "schedule",
	"task", "todo", "remind", "deadline", "by when", "finish",
}

// GoalPipeline is the slice of the pipeline coordinator the orchestrator
// needs.
type GoalPipeline interface {
	Run(ctx context.Context, userID, text, traceID string) (*pipeline.Result, error)
}

// Option configures an Orchestrator after config-driven initialization.
type Option func(*Orchestrator)

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(orch *Orchestrator) { orch.observer = o }
}

// WithPipeline wires the goal pipeline into the streaming dispatch. Without
// it the goal-intent heuristic stays a pure notifier.
func WithPipeline(p GoalPipeline) Option {
	return func(orch *Orchestrator) { orch.pipeline = p }
}

// WithSessionManager overrides the internally created session arena.
func WithSessionManager(m *session.Manager) Option {
	return func(orch *Orchestrator) { orch.sessions = m }
}

// Orchestrator coordinates all live frame connections.
type Orchestrator struct {
	upgrader websocket.Upgrader
	sessions *session.Manager
	engine   inference.Engine
	pipeline GoalPipeline
	observer observability.Observer

	persona string
	welcome string
	user    string
	guard   envelope.SizeGuard

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// New creates an Orchestrator from configuration and the local inference
// engine. Options override config-created defaults.
func New(cfg *Config, engine inference.Engine, opts ...Option) *Orchestrator {
	guard := envelope.SizeGuardReject
	if cfg.Production {
		guard = envelope.SizeGuardBypass
	}

	orch := &Orchestrator{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: session.NewManager(),
		engine:   engine,
		observer: observability.NoOpObserver{},
		persona:  cfg.Persona,
		welcome:  cfg.WelcomeMessage,
		user:     cfg.DefaultUser,
		guard:    guard,
		conns:    make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

// Sessions returns the orchestrator's session arena.
func (o *Orchestrator) Sessions() *session.Manager {
	return o.sessions
}

// ServeHTTP upgrades the request to a frame connection and runs its
// lifecycle: welcome frame, sequential dispatch of inbound frames, and
// session teardown on disconnect.
func (o *Orchestrator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.emit(r.Context(), EventFrameDropped, observability.LevelWarning, "", map[string]any{
			"error": "upgrade failed: " + err.Error(),
		})
		return
	}

	sess := o.sessions.Create()
	c := newConn(ws, sess)
	o.addConn(c)

	// The request context dies with the HTTP handler machinery once the
	// connection is hijacked; dispatch gets its own context, cancelled on
	// disconnect so in-flight work is abandoned rather than orphaned.
	ctx, cancel := context.WithCancel(context.Background())

	o.emit(ctx, EventConnect, observability.LevelInfo, sess.ID(), nil)

	go c.writeLoop()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for raw := range c.jobs {
			o.dispatch(ctx, c, raw)
		}
	}()

	c.send(mustFrame(protocol.FrameWelcome, protocol.WelcomePayload{
		Message: o.welcome,
		TraceID: sess.ID(),
	}))

	c.readLoop()

	cancel()
	close(c.jobs)
	<-workerDone
	close(c.done)

	o.removeConn(c)
	o.sessions.Remove(sess.ID())
	ws.Close()

	o.emit(context.Background(), EventDisconnect, observability.LevelInfo, sess.ID(), nil)
}

// Broadcast sends a frame to every live connection. Used for schedule
// update notifications from the REST surface. Enqueueing never blocks:
// a connection whose outbound buffer is full misses the notification
// rather than stalling the broadcaster.
func (o *Orchestrator) Broadcast(f protocol.Frame) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for c := range o.conns {
		if !c.trySend(f) {
			o.emit(context.Background(), EventFrameDropped, observability.LevelWarning, "", map[string]any{
				"connection": c.sess.ID(),
				"reason":     "outbound buffer full during broadcast",
			})
		}
	}
}

func (o *Orchestrator) addConn(c *conn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conns[c] = struct{}{}
}

func (o *Orchestrator) removeConn(c *conn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.conns, c)
}

func (o *Orchestrator) emit(ctx context.Context, t observability.EventType, level observability.Level, traceID string, data map[string]any) {
	o.observer.OnEvent(ctx, observability.Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "orchestrator",
		TraceID:   traceID,
		Data:      data,
	})
}

// matchesGoalIntent applies the fixed keyword heuristic.
func matchesGoalIntent(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range goalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// mustFrame wraps NewFrame for payloads that cannot fail to marshal.
func mustFrame(t protocol.FrameType, payload any) protocol.Frame {
	f, err := protocol.NewFrame(t, payload)
	if err != nil {
		panic(err)
	}
	return f
}

func newTraceID() string {
	return uuid.NewString()
}
