package verify

import (
	"time"

	"praxis-hq/charter/pkg/predicate"
)

// Status is the outcome of a verification attempt.
type Status string

const (
	StatusPassed       Status = "passed"
	StatusFailed       Status = "failed"
	StatusInconclusive Status = "inconclusive"
)

// Tier identifies the verification tier that produced a result.
type Tier string

const (
	TierAutomated Tier = "automated"
	TierHuman     Tier = "human"
	TierRigorous  Tier = "rigorous"
)

// ProofObligation is one solver question derived from a principle. Obligations
// are ephemeral: every attempt regenerates them from the current principle
// version, so a stale obligation can never pass a rule.
type ProofObligation struct {
	// RuleID and PrincipleID tie the obligation to its sources.
	RuleID      string
	PrincipleID string

	// Name says what the obligation establishes.
	Name string

	// Expression must be unsatisfiable for the obligation to hold.
	Expression *predicate.Node

	// Vacuous marks an obligation generated from a principle with no
	// structured constraints. It holds trivially and is surfaced rather
	// than silently passed.
	Vacuous bool
}

// Result is the outcome of verifying one rule.
type Result struct {
	Status Status

	// Tier is the highest tier that ran.
	Tier Tier

	// Feedback is a human-readable account: the failing obligation and its
	// counterexample, the timeout, or the vacuity notice.
	Feedback string

	// Vacuous reports that the pass rests on no checkable constraints.
	Vacuous bool

	// Obligations is how many obligations were discharged.
	Obligations int

	// Duration is the wall time of the attempt.
	Duration time.Duration
}

// Config tunes the verification engine.
type Config struct {
	// AutomatedTimeout bounds the automated tier. Default: 5s.
	AutomatedTimeout time.Duration `yaml:"automated_timeout"`

	// RigorousTimeout bounds the rigorous tier. Default: 30s.
	RigorousTimeout time.Duration `yaml:"rigorous_timeout"`

	// AllowVacuous lets rules with no checkable constraints pass with the
	// vacuous flag set. When false such rules fail. Default: true.
	AllowVacuous bool `yaml:"allow_vacuous"`

	// SafetyCriticalScopes routes rules whose scope intersects this list to
	// the rigorous tier.
	SafetyCriticalScopes []string `yaml:"safety_critical_scopes"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		AutomatedTimeout: 5 * time.Second,
		RigorousTimeout:  30 * time.Second,
		AllowVacuous:     true,
	}
}
