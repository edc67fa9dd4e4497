package store

// validTransitions is the complete rule lifecycle. Anything absent is
// rejected; in particular no backward edge exists, so correcting a rule
// always means a new version.
var validTransitions = map[RuleStatus]map[RuleStatus]bool{
	StatusPendingSynthesis: {
		StatusPendingVerification: true,
	},
	StatusPendingVerification: {
		StatusVerified: true,
		StatusFailed:   true,
	},
	StatusVerified: {
		StatusActive:     true,
		StatusSuperseded: true,
		StatusArchived:   true,
	},
	StatusActive: {
		StatusSuperseded: true,
		StatusArchived:   true,
	},
}

// CanTransition reports whether the state machine permits from → to.
func CanTransition(from, to RuleStatus) bool {
	return validTransitions[from][to]
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s RuleStatus) bool {
	return len(validTransitions[s]) == 0
}
