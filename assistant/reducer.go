package assistant

import (
	"reflect"
	"slices"

	"github.com/dshills/shopagent/graph/model"
)

// Field is an optional value in an Update. The zero Field leaves the state
// untouched.
type Field[T any] struct {
	Set   bool
	Value T
}

// Value wraps v as a set Field.
func Value[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Update is the sparse partial update returned by nodes.
type Update struct {
	ThreadID Field[string]
	TraceID  Field[string]
	UserID   Field[string]
	CartID   Field[string]

	Messages   []model.Message
	References []Reference

	Answer    Field[string]
	Plan      Field[[]Delegation]
	NextAgent Field[string]

	// Agents holds per-agent updates keyed by agent name. Unknown names are
	// ignored.
	Agents map[string]AgentUpdate
}

// AgentUpdate is the sparse update of one agent sub-record.
type AgentUpdate struct {
	Iteration      Field[int]
	FinalAnswer    Field[bool]
	ToolCalls      Field[[]model.ToolCall]
	AvailableTools Field[[]model.ToolSpec]
}

// Policy is how a field's new value combines with its current one.
type Policy int

const (
	// Replace makes the new value win outright.
	Replace Policy = iota
	// Append concatenates new elements after the existing ones.
	Append
	// SetOnce accepts a value only while the field is still empty.
	SetOnce
)

func (p Policy) String() string {
	switch p {
	case Replace:
		return "replace"
	case Append:
		return "append"
	case SetOnce:
		return "set-once"
	}
	return "unknown"
}

// FieldPolicy binds a state field path to its merge policy.
type FieldPolicy struct {
	Path   string
	Policy Policy
	apply  func(s *State, u Update)
}

// MergePolicies is the ordered merge table. Reduce applies it top to bottom.
var MergePolicies = buildPolicies()

func buildPolicies() []FieldPolicy {
	policies := []FieldPolicy{
		setOnce("thread_id", func(s *State) *string { return &s.ThreadID }, func(u Update) Field[string] { return u.ThreadID }),
		replace("trace_id", func(s *State) *string { return &s.TraceID }, func(u Update) Field[string] { return u.TraceID }),
		replace("user_id", func(s *State) *string { return &s.UserID }, func(u Update) Field[string] { return u.UserID }),
		replace("cart_id", func(s *State) *string { return &s.CartID }, func(u Update) Field[string] { return u.CartID }),
		appendTo("messages", func(s *State) *[]model.Message { return &s.Messages }, func(u Update) []model.Message { return u.Messages }),
		replace("answer", func(s *State) *string { return &s.Answer }, func(u Update) Field[string] { return u.Answer }),
		appendTo("references", func(s *State) *[]Reference { return &s.References }, func(u Update) []Reference { return u.References }),
		replace("plan", func(s *State) *[]Delegation { return &s.Plan }, func(u Update) Field[[]Delegation] { return u.Plan }),
		replace("next_agent", func(s *State) *string { return &s.NextAgent }, func(u Update) Field[string] { return u.NextAgent }),
	}
	for _, name := range append([]string{Coordinator}, Specialists...) {
		policies = append(policies, agentPolicies(name)...)
	}
	return policies
}

func agentPolicies(name string) []FieldPolicy {
	agent := func(s *State) *AgentState { return s.Agent(name) }
	update := func(u Update) AgentUpdate { return u.Agents[name] }
	return []FieldPolicy{
		replace(name+".iteration",
			func(s *State) *int { return &agent(s).Iteration },
			func(u Update) Field[int] { return update(u).Iteration }),
		replace(name+".final_answer",
			func(s *State) *bool { return &agent(s).FinalAnswer },
			func(u Update) Field[bool] { return update(u).FinalAnswer }),
		replace(name+".tool_calls",
			func(s *State) *[]model.ToolCall { return &agent(s).ToolCalls },
			func(u Update) Field[[]model.ToolCall] { return update(u).ToolCalls }),
		setOnce(name+".available_tools",
			func(s *State) *[]model.ToolSpec { return &agent(s).AvailableTools },
			func(u Update) Field[[]model.ToolSpec] { return update(u).AvailableTools }),
	}
}

func replace[T any](path string, field func(*State) *T, value func(Update) Field[T]) FieldPolicy {
	return FieldPolicy{Path: path, Policy: Replace, apply: func(s *State, u Update) {
		if v := value(u); v.Set {
			*field(s) = cloneValue(v.Value)
		}
	}}
}

func setOnce[T any](path string, field func(*State) *T, value func(Update) Field[T]) FieldPolicy {
	return FieldPolicy{Path: path, Policy: SetOnce, apply: func(s *State, u Update) {
		v := value(u)
		if !v.Set || !isEmpty(*field(s)) {
			return
		}
		*field(s) = cloneValue(v.Value)
	}}
}

func appendTo[E any](path string, field func(*State) *[]E, values func(Update) []E) FieldPolicy {
	return FieldPolicy{Path: path, Policy: Append, apply: func(s *State, u Update) {
		if vs := values(u); len(vs) > 0 {
			dst := field(s)
			*dst = append(slices.Clip(*dst), vs...)
		}
	}}
}

// cloneValue copies slice values so the state never aliases an update.
func cloneValue[T any](v T) T {
	switch x := any(v).(type) {
	case []Delegation:
		return any(slices.Clone(x)).(T)
	case []model.ToolCall:
		return any(slices.Clone(x)).(T)
	case []model.ToolSpec:
		return any(slices.Clone(x)).(T)
	}
	return v
}

func isEmpty[T any](v T) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	if rv.Kind() == reflect.Slice {
		return rv.Len() == 0
	}
	return rv.IsZero()
}

// Reduce folds an update into the state following MergePolicies.
func Reduce(prev State, delta Update) State {
	for _, p := range MergePolicies {
		p.apply(&prev, delta)
	}
	return prev
}
