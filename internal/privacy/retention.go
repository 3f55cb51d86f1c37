package privacy

// AnonymizeAction is one progressive anonymization step kind.
type AnonymizeAction string

const (
	// ActionHash is a no-op at sweep time: identity fields were already
	// hashed when the entry was written.
	ActionHash AnonymizeAction = "hash"
	// ActionRemove nulls the named fields.
	ActionRemove AnonymizeAction = "remove"
	// ActionAggregate collapses metadata to a flag-only placeholder.
	ActionAggregate AnonymizeAction = "aggregate"
)

type AnonymizeStep struct {
	AfterDays int
	Action    AnonymizeAction
	Fields    []string
}

type RetentionPolicy struct {
	RetentionDays int
	Schedule      []AnonymizeStep
}

// DefaultRetentionPolicies is the per-category retention table. It is data,
// not behavior: deployments override it through config.
func DefaultRetentionPolicies() map[Category]RetentionPolicy {
	return map[Category]RetentionPolicy{
		CategorySecurity: {
			RetentionDays: 90,
			Schedule: []AnonymizeStep{
				{AfterDays: 30, Action: ActionRemove, Fields: []string{"userAgent"}},
				{AfterDays: 60, Action: ActionAggregate, Fields: []string{"metadata"}},
			},
		},
		CategoryAuthentication: {
			RetentionDays: 30,
			Schedule: []AnonymizeStep{
				{AfterDays: 7, Action: ActionRemove, Fields: []string{"sessionId", "userAgent"}},
			},
		},
		CategoryAudit: {
			RetentionDays: 365,
			Schedule: []AnonymizeStep{
				{AfterDays: 90, Action: ActionHash, Fields: []string{"userId"}},
				{AfterDays: 180, Action: ActionAggregate, Fields: []string{"metadata"}},
			},
		},
		CategoryUserActivity: {
			RetentionDays: 7,
			Schedule: []AnonymizeStep{
				{AfterDays: 1, Action: ActionRemove, Fields: []string{"userId", "sessionId", "userAgent"}},
			},
		},
		CategorySystem: {
			RetentionDays: 30,
		},
		CategoryError: {
			RetentionDays: 14,
			Schedule: []AnonymizeStep{
				{AfterDays: 7, Action: ActionRemove, Fields: []string{"userId", "sessionId"}},
			},
		},
	}
}

func (p RetentionPolicy) dueSteps(ageDays int) []AnonymizeStep {
	var due []AnonymizeStep
	for _, step := range p.Schedule {
		if ageDays >= step.AfterDays {
			due = append(due, step)
		}
	}
	return due
}
