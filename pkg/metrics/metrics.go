package metrics

/*
Labels and so on for metrics used in the delivery machine.
*/

const (
	LabelMethod  = "method"
	LabelRoute   = "route"
	LabelSuccess = "success"

	LabelGoal    = "goal"
	LabelGoalSet = "goalset"
	LabelMatched = "matched"
)
