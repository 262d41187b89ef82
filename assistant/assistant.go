package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/shopagent/graph"
	"github.com/dshills/shopagent/graph/emit"
	"github.com/dshills/shopagent/graph/model"
	"github.com/dshills/shopagent/graph/store"
	"github.com/dshills/shopagent/graph/tool"
)

// ErrInvalidRequest is returned for requests missing a thread id or message.
var ErrInvalidRequest = errors.New("invalid request")

// Request starts a run on a thread.
type Request struct {
	ThreadID string
	Message  string
	UserID   string
	CartID   string
}

// Kind distinguishes notifications.
type Kind int

const (
	// KindProgress carries a progress line.
	KindProgress Kind = iota
	// KindResult carries the final payload. It is always last.
	KindResult
	// KindError replaces the result when the run fails.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindResult:
		return "final_result"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Notification is one element of a run's output sequence.
type Notification struct {
	Kind     Kind
	Progress string
	Result   *Result
	Err      error
}

// Result is the final payload of a successful run.
type Result struct {
	Answer      string        `json:"answer"`
	UsedContext []UsedContext `json:"used_context"`
	TraceID     string        `json:"trace_id"`
}

// Assistant runs the agent graph. It is safe for concurrent use across
// threads; a single thread must not run twice at the same time.
type Assistant struct {
	engine   *graph.Engine[State, Update]
	tools    map[string][]model.ToolSpec
	lookup   ItemLookup
	progress *Progress
	logger   *zap.Logger
}

type settings struct {
	tools       map[string]tool.Executor
	models      map[string]model.ChatModel
	emitter     emit.Emitter
	lookup      ItemLookup
	prompts     *Prompts
	progress    *Progress
	costs       *graph.CostTracker
	metrics     *graph.PrometheusMetrics
	nodeTimeout time.Duration
	logger      *zap.Logger
}

// Option configures an Assistant.
type Option func(*settings) error

// WithTools gives a specialist its tools.
func WithTools(agent string, exec tool.Executor) Option {
	return func(s *settings) error {
		if !IsSpecialist(agent) {
			return fmt.Errorf("tools assigned to unknown specialist %q", agent)
		}
		s.tools[agent] = exec
		return nil
	}
}

// WithAgentModel overrides the chat model of one agent.
func WithAgentModel(agent string, m model.ChatModel) Option {
	return func(s *settings) error {
		if agent != Coordinator && !IsSpecialist(agent) {
			return fmt.Errorf("model assigned to unknown agent %q", agent)
		}
		s.models[agent] = m
		return nil
	}
}

// WithEmitter sets the observability sink.
func WithEmitter(e emit.Emitter) Option {
	return func(s *settings) error { s.emitter = e; return nil }
}

// WithLookup sets the item lookup used to build used_context.
func WithLookup(l ItemLookup) Option {
	return func(s *settings) error { s.lookup = l; return nil }
}

// WithPrompts replaces the bundled prompts.
func WithPrompts(p *Prompts) Option {
	return func(s *settings) error { s.prompts = p; return nil }
}

// WithProgress replaces the progress table.
func WithProgress(p *Progress) Option {
	return func(s *settings) error { s.progress = p; return nil }
}

// WithCostTracker records LLM usage and cost.
func WithCostTracker(ct *graph.CostTracker) Option {
	return func(s *settings) error { s.costs = ct; return nil }
}

// WithMetrics enables engine Prometheus metrics.
func WithMetrics(m *graph.PrometheusMetrics) Option {
	return func(s *settings) error { s.metrics = m; return nil }
}

// WithNodeTimeout bounds every agent and tool step.
func WithNodeTimeout(d time.Duration) Option {
	return func(s *settings) error {
		if d < 0 {
			return fmt.Errorf("node timeout must be >= 0, got %v", d)
		}
		s.nodeTimeout = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) error { s.logger = l; return nil }
}

// New builds the assistant graph and its engine.
//
// chat serves every agent without a WithAgentModel override; st persists a
// checkpoint per thread after every step.
func New(chat model.ChatModel, st store.Store[State], opts ...Option) (*Assistant, error) {
	cfg := settings{
		tools:  make(map[string]tool.Executor),
		models: make(map[string]model.ChatModel),
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.progress == nil {
		cfg.progress = DefaultProgress()
	}
	if cfg.prompts == nil {
		p, err := DefaultPrompts()
		if err != nil {
			return nil, err
		}
		cfg.prompts = p
	}

	compiled, err := buildGraph(chat, cfg)
	if err != nil {
		return nil, err
	}

	engine, err := graph.New(compiled, Reduce, st, cfg.emitter,
		graph.WithMaxSteps(StepBound()),
		graph.WithDefaultNodeTimeout(cfg.nodeTimeout),
		graph.WithMetrics(cfg.metrics),
	)
	if err != nil {
		return nil, err
	}

	tools := make(map[string][]model.ToolSpec, len(Specialists))
	for _, name := range Specialists {
		if exec, ok := cfg.tools[name]; ok {
			tools[name] = exec.Specs()
		}
	}

	return &Assistant{
		engine:   engine,
		tools:    tools,
		lookup:   cfg.lookup,
		progress: cfg.progress,
		logger:   cfg.logger,
	}, nil
}

// buildGraph declares the coordinator, the specialists and their tool nodes.
func buildGraph(chat model.ChatModel, cfg settings) (*graph.Compiled[State, Update], error) {
	modelFor := func(agent string) (model.ChatModel, error) {
		if m, ok := cfg.models[agent]; ok {
			return m, nil
		}
		if chat == nil {
			return nil, fmt.Errorf("no chat model for %s", agent)
		}
		return chat, nil
	}
	agent := func(name string) (agentNode, error) {
		m, err := modelFor(name)
		if err != nil {
			return agentNode{}, err
		}
		if !cfg.prompts.Has(name) {
			return agentNode{}, fmt.Errorf("no prompt for %s", name)
		}
		return agentNode{name: name, chat: m, prompts: cfg.prompts, costs: cfg.costs}, nil
	}

	g := graph.NewGraph[State, Update]()

	coord, err := agent(Coordinator)
	if err != nil {
		return nil, err
	}
	g.AddNode(Coordinator, &coordinatorNode{coord}).
		SetEntry(Coordinator).
		AddConditionalEdges(Coordinator, RouteCoordinator, coordinatorTargets()...)

	for _, name := range Specialists {
		spec, err := agent(name)
		if err != nil {
			return nil, err
		}
		exec, ok := cfg.tools[name]
		if !ok {
			exec, _ = tool.NewRegistry()
		}
		g.AddNode(name, &specialistNode{spec}).
			AddNode(ToolNode(name), &toolNode{agent: name, exec: exec}).
			AddConditionalEdges(name, RouteSpecialist(name), Coordinator, ToolNode(name)).
			AddEdge(ToolNode(name), name)
	}
	return g.Compile()
}

// Graph returns the compiled agent graph.
func (a *Assistant) Graph() *graph.Compiled[State, Update] {
	return a.engine.Graph()
}

// Tools returns the tool descriptors of a specialist.
func (a *Assistant) Tools(agent string) []model.ToolSpec {
	return a.tools[agent]
}

// Run starts a run and returns its notifications: progress lines, then
// exactly one result or error, then the channel closes.
//
// The channel is unbuffered; the run waits for the consumer between steps.
// Cancelling ctx stops the run after the step in flight has been saved; no
// further notification is sent.
func (a *Assistant) Run(ctx context.Context, req Request) (<-chan Notification, error) {
	if req.ThreadID == "" {
		return nil, fmt.Errorf("%w: thread id is required", ErrInvalidRequest)
	}
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	s := a.engine.Stream(context.WithoutCancel(ctx), req.ThreadID, a.startUpdate(req))
	return a.pump(ctx, s), nil
}

// Resume continues an interrupted run from the thread's last checkpoint.
func (a *Assistant) Resume(ctx context.Context, threadID string) <-chan Notification {
	return a.pump(ctx, a.engine.Resume(context.WithoutCancel(ctx), threadID))
}

// State returns the latest checkpoint of a thread.
func (a *Assistant) State(ctx context.Context, threadID string) (store.Checkpoint[State], error) {
	return a.engine.State(ctx, threadID)
}

// Forget deletes a thread.
func (a *Assistant) Forget(ctx context.Context, threadID string) error {
	return a.engine.Forget(ctx, threadID)
}

// startUpdate resets the per-run control fields and appends the message.
// Conversation and references carry over from earlier runs on the thread.
func (a *Assistant) startUpdate(req Request) Update {
	u := Update{
		ThreadID:  Value(req.ThreadID),
		TraceID:   Value(uuid.NewString()),
		Messages:  []model.Message{{Role: model.RoleUser, Content: req.Message}},
		Answer:    Value(""),
		Plan:      Value([]Delegation(nil)),
		NextAgent: Value(""),
		Agents:    make(map[string]AgentUpdate, len(Specialists)+1),
	}
	if req.UserID != "" {
		u.UserID = Value(req.UserID)
	}
	if req.CartID != "" {
		u.CartID = Value(req.CartID)
	}
	reset := AgentUpdate{
		Iteration:   Value(0),
		FinalAnswer: Value(false),
		ToolCalls:   Value([]model.ToolCall(nil)),
	}
	u.Agents[Coordinator] = reset
	for _, name := range Specialists {
		au := reset
		if specs := a.tools[name]; len(specs) > 0 {
			au.AvailableTools = Value(specs)
		}
		u.Agents[name] = au
	}
	return u
}

// pump turns step events into notifications.
func (a *Assistant) pump(ctx context.Context, s *graph.Stream[State]) <-chan Notification {
	out := make(chan Notification)
	go func() {
		defer close(out)

		go func() {
			select {
			case <-ctx.Done():
				s.Close()
			case <-s.Done():
			}
		}()

		send := func(n Notification) bool {
			select {
			case out <- n:
				return true
			case <-ctx.Done():
				s.Close()
				return false
			}
		}

		live := true
		for ev := range s.Events() {
			if !live {
				continue
			}
			if msg := a.progress.Message(ev.Next, ev.State); msg != "" {
				live = send(Notification{Kind: KindProgress, Progress: msg})
			}
		}

		final, err := s.Wait()
		if !live || ctx.Err() != nil {
			return
		}
		if err != nil {
			a.logger.Error("run failed", zap.String("code", graph.ErrorCode(err)), zap.Error(err))
			send(Notification{Kind: KindError, Err: err})
			return
		}
		send(Notification{Kind: KindResult, Result: &Result{
			Answer:      final.Answer,
			UsedContext: usedContext(ctx, a.lookup, final.References, a.logger),
			TraceID:     final.TraceID,
		}})
	}()
	return out
}
