package appointment

var transitions = map[Status][]Status{
	StatusPending:  {StatusPending, StatusApproved, StatusRejected},
	StatusApproved: {StatusPending, StatusApproved, StatusRejected},
	StatusRejected: {StatusPending, StatusApproved, StatusRejected},
}

// AllowedTransitions lists the statuses an appointment in current may move to.
// Every move between the three statuses is currently allowed, including
// reopening approved or rejected appointments.
func AllowedTransitions(current Status) []Status {
	next := transitions[current]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func CanTransition(current, target Status) bool {
	for _, s := range transitions[current] {
		if s == target {
			return true
		}
	}
	return false
}
