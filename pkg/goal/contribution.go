package goal

import (
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

// Contribution says which goal set a push gets, if it passes a test.
type Contribution struct {
	Test push.Test
	Set  Set
}

type PushRule struct {
	test push.Test
}

// WhenPushSatisfies starts a contribution that applies to pushes
// passing all the tests given.
//
//     goal.WhenPushSatisfies(selfTest).SetGoals(selfGoalSet)
func WhenPushSatisfies(tests ...push.Test) PushRule {
	if len(tests) == 1 {
		return PushRule{test: tests[0]}
	}
	return PushRule{test: push.AllSatisfied(tests...)}
}

func (r PushRule) SetGoals(set Set) Contribution {
	return Contribution{Test: r.test, Set: set}
}

// Goals returns the goal set for the push, if the push passes the
// contribution's test.
func (c Contribution) Goals(e push.Event) (Set, bool) {
	if c.Test.Predicate == nil || !c.Test.Matches(e) {
		return Set{}, false
	}
	return c.Set, true
}
