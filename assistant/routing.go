package assistant

import "github.com/dshills/shopagent/graph"

// CoordinatorCap is the coordinator iteration past which the run ends.
const CoordinatorCap = 3

// Specialist iteration caps. Product Q&A leans on retrieval tools and gets a
// longer loop.
const (
	DefaultSpecialistCap = 2
	ProductQACap         = 4
)

// SpecialistCap returns the iteration cap of a specialist.
func SpecialistCap(name string) int {
	if name == ProductQA {
		return ProductQACap
	}
	return DefaultSpecialistCap
}

// ToolNode returns the name of the tool node serving a specialist.
func ToolNode(agent string) string {
	return agent + "_tools"
}

// StepBound is the largest number of node executions a single run can take
// under the iteration caps.
//
// The coordinator runs at most CoordinatorCap+1 times and delegates at most
// CoordinatorCap times. A delegation to a specialist costs at most cap+1
// agent turns plus cap tool steps.
func StepBound() int {
	worst := 0
	for _, name := range Specialists {
		if n := 2*SpecialistCap(name) + 1; n > worst {
			worst = n
		}
	}
	return CoordinatorCap + 1 + CoordinatorCap*worst
}

// RouteCoordinator picks the coordinator's successor.
//
// An unrecognized delegate ends the run rather than failing it.
func RouteCoordinator(s State) string {
	c := s.Coordinator
	if c.Iteration > CoordinatorCap {
		return graph.END
	}
	if c.FinalAnswer && len(s.Plan) == 0 {
		return graph.END
	}
	if target := delegate(s); IsSpecialist(target) {
		return target
	}
	return graph.END
}

// delegate is the agent the coordinator handed work to.
func delegate(s State) string {
	if s.NextAgent != "" {
		return s.NextAgent
	}
	if len(s.Plan) > 0 {
		return s.Plan[0].Agent
	}
	return ""
}

// RouteSpecialist returns the router of a specialist's tool loop.
func RouteSpecialist(name string) graph.Router[State] {
	limit := SpecialistCap(name)
	return func(s State) string {
		a := s.Agent(name)
		switch {
		case a == nil:
			return Coordinator
		case a.FinalAnswer:
			return Coordinator
		case a.Iteration > limit:
			return Coordinator
		case len(a.ToolCalls) > 0:
			return ToolNode(name)
		default:
			return Coordinator
		}
	}
}

// coordinatorTargets is the closed target set of the coordinator router.
func coordinatorTargets() []string {
	return append(append([]string(nil), Specialists...), graph.END)
}
