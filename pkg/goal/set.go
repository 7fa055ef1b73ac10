package goal

import (
	"github.com/pkg/errors"
)

// Set is a named collection of planned goals, where the "after"
// dependencies form a directed acyclic graph. A Set is constructed
// once and not changed afterwards.
type Set struct {
	Name  string
	order []Planned
}

// NewSet checks the goals given have unique names and that their
// dependencies are known and acyclic, and orders them so each goal
// comes after its dependencies. Among goals that are ready at the
// same time, declaration order is kept.
func NewSet(name string, goals ...Planned) (Set, error) {
	index := map[string]int{}
	for i, p := range goals {
		if p.Goal.UniqueName == "" {
			return Set{}, errors.Errorf("goal set %q: goal %d has no unique name", name, i)
		}
		if _, ok := index[p.Goal.UniqueName]; ok {
			return Set{}, errors.Errorf("goal set %q: goal %q planned more than once", name, p.Goal.UniqueName)
		}
		if p.Fulfillment.Execute == nil {
			return Set{}, errors.Errorf("goal set %q: goal %q has no fulfillment", name, p.Goal.UniqueName)
		}
		index[p.Goal.UniqueName] = i
	}
	for _, p := range goals {
		for _, dep := range p.Deps {
			if _, ok := index[dep]; !ok {
				return Set{}, errors.Errorf("goal set %q: goal %q is after unknown goal %q", name, p.Goal.UniqueName, dep)
			}
		}
	}

	placed := make([]bool, len(goals))
	done := map[string]bool{}
	order := make([]Planned, 0, len(goals))
	for len(order) < len(goals) {
		progressed := false
		for i, p := range goals {
			if placed[i] || !allDone(p.Deps, done) {
				continue
			}
			placed[i] = true
			done[p.Goal.UniqueName] = true
			order = append(order, p)
			progressed = true
			break // start again from the top, to keep declaration order
		}
		if !progressed {
			return Set{}, errors.Errorf("goal set %q: dependencies between goals form a cycle", name)
		}
	}
	return Set{Name: name, order: order}, nil
}

func allDone(deps []string, done map[string]bool) bool {
	for _, d := range deps {
		if !done[d] {
			return false
		}
	}
	return true
}

// Order returns the goals in an order that respects their
// dependencies.
func (s Set) Order() []Planned {
	return append([]Planned(nil), s.order...)
}

func (s Set) Len() int {
	return len(s.order)
}
