package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/predicate"
	"praxis-hq/charter/pkg/principle"
)

// Config tunes the synthesizer.
type Config struct {
	// ConfidenceThreshold marks suggested rules below it low-confidence.
	// Default: 0.6.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// Parallelism bounds concurrent synthesis across principles. Default: 4.
	Parallelism int `yaml:"parallelism"`
}

// DefaultConfig returns the default synthesizer configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.6,
		Parallelism:         4,
	}
}

// Synthesizer compiles principles into pending policy rules.
type Synthesizer struct {
	store     store.Store
	templates *TemplateLibrary
	suggester Suggester
	vocab     *predicate.Vocabulary
	cfg       Config
	logger    *slog.Logger
}

// New creates a synthesizer. The suggester may be nil, in which case
// principles without structured constraints become gaps.
func New(st store.Store, suggester Suggester, vocab *predicate.Vocabulary, cfg Config, logger *slog.Logger) *Synthesizer {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfig().ConfidenceThreshold
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultConfig().Parallelism
	}
	if vocab == nil {
		vocab = predicate.DefaultVocabulary()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		store:     st,
		templates: NewTemplateLibrary(),
		suggester: suggester,
		vocab:     vocab,
		cfg:       cfg,
		logger:    logger.With("component", "synth"),
	}
}

// Templates exposes the library for deployment-specific registration.
func (s *Synthesizer) Templates() *TemplateLibrary { return s.templates }

// Synthesize compiles each principle into a rule, persists the drafts, and
// moves them to pending_verification. Principles are processed in parallel;
// the first failure cancels the batch.
func (s *Synthesizer) Synthesize(ctx context.Context, principles []*principle.Principle) ([]*store.PolicyRule, error) {
	rules := make([]*store.PolicyRule, len(principles))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, p := range principles {
		g.Go(func() error {
			rule, err := s.synthesizeOne(gctx, p)
			if err != nil {
				return err
			}
			mu.Lock()
			rules[i] = rule
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Synthesizer) synthesizeOne(ctx context.Context, p *principle.Principle) (*store.PolicyRule, error) {
	key := store.Key{ID: RuleID(p.ID), Version: p.Version}

	// A replayed chain already has a draft for this principle version.
	// Short-circuit before building so the suggester is not re-invoked.
	stored, err := s.store.GetRule(ctx, key)
	if errors.Is(err, store.ErrRuleNotFound) {
		rule, err := s.build(ctx, p)
		if err != nil {
			return nil, err
		}
		if err := s.store.CreateRule(ctx, rule); err != nil {
			return nil, err
		}
		// CreateRule is idempotent on (id, version): a concurrent writer's
		// draft wins and ours is discarded.
		if stored, err = s.store.GetRule(ctx, key); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if stored.Status == store.StatusPendingSynthesis {
		if stored, err = s.store.Transition(ctx, key, store.StatusPendingVerification, "", "synth"); err != nil {
			return nil, err
		}
	}

	s.logger.Info("rule synthesized",
		"rule_id", stored.ID,
		"version", stored.Version,
		"origin", stored.Origin,
		"confidence", stored.Confidence,
		"low_confidence", stored.LowConfidence)
	return stored, nil
}

// build produces the in-memory rule without touching the store.
func (s *Synthesizer) build(ctx context.Context, p *principle.Principle) (*store.PolicyRule, error) {
	rule := &store.PolicyRule{
		ID:                 RuleID(p.ID),
		Version:            p.Version,
		SourcePrincipleIDs: []string{p.ID},
		Scope:              append([]string(nil), p.Scope...),
		Status:             store.StatusPendingSynthesis,
		SynthesizedAt:      time.Now().UTC(),
	}

	// A missing template is always a gap. The suggester assists phrasing
	// inside a known category, it does not invent categories.
	template, hasTemplate := s.templates.Lookup(p.Category)
	if !hasTemplate {
		return nil, &GapError{PrincipleID: p.ID, Reason: fmt.Sprintf("no template for category %q", p.Category)}
	}

	switch {
	case len(p.Constraints) > 0:
		body := compileConstraints(p.Constraints)
		if err := s.vocab.Validate(body); err != nil {
			return nil, &GapError{PrincipleID: p.ID, Reason: fmt.Sprintf("constraints fail vocabulary validation: %v", err)}
		}
		rule.Body = body
		rule.Effect = template.Effect
		rule.Origin = store.OriginTemplate
		rule.Confidence = 1.0

	case s.suggester != nil:
		suggestion, err := s.suggester.Suggest(ctx, p.NormativeStatement, p.Category, p.Scope)
		if err != nil {
			return nil, &SuggestionError{PrincipleID: p.ID, Cause: err}
		}
		if err := s.vocab.Validate(suggestion.Body); err != nil {
			return nil, &SuggestionError{PrincipleID: p.ID, Cause: err}
		}
		rule.Body = suggestion.Body
		rule.Effect = suggestion.Effect
		rule.Origin = store.OriginSuggested
		rule.Confidence = suggestion.Confidence
		rule.LowConfidence = suggestion.Confidence < s.cfg.ConfidenceThreshold

	default:
		// No constraints and no suggester: the rule matches nothing it can
		// check, which verification surfaces as a vacuous pass.
		rule.Body = nil
		rule.Effect = template.Effect
		rule.Origin = store.OriginTemplate
		rule.Confidence = 1.0
	}

	return rule, nil
}

// RuleID derives the stable rule id for a principle. Rule versions track
// principle versions one to one.
func RuleID(principleID string) string {
	return "rule-" + principleID
}
