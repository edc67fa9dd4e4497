package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"praxis-hq/charter/pkg/audit"
	"praxis-hq/charter/pkg/cli"
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/predicate"
	"praxis-hq/charter/pkg/principle"
	"praxis-hq/charter/pkg/synth"
)

var lintFlags struct {
	file   string
	dir    string
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check principle files",
	Long: `Check principle files for ingestion and synthesis problems without a
running server.

The lint command validates each principle and dry-runs rule synthesis
against a throwaway store:
  - YAML syntax
  - Ingestion invariants (weight range, scope, normative statement)
  - Template coverage for the declared category
  - Constraint fields against the built-in vocabulary

Principles with no structured constraints lint as warnings: their rules
carry no checkable body and pass verification vacuously.

Examples:
  # Lint a single file
  charter lint --file principles.yaml

  # Lint a directory
  charter lint --dir principles/

  # Strict mode (warnings as errors)
  charter lint --file principles.yaml --strict

  # JSON output for CI
  charter lint --file principles.yaml --format json`,
	RunE: lintPrinciples,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "principle file to check")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of principle files")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// principleFile is the on-disk shape lint accepts.
type principleFile struct {
	Principles []principleSpec `yaml:"principles"`
}

type principleSpec struct {
	Name               string                 `yaml:"name"`
	PriorityWeight     float64                `yaml:"priority_weight"`
	Scope              []string               `yaml:"scope"`
	Category           string                 `yaml:"category"`
	NormativeStatement string                 `yaml:"normative_statement"`
	Constraints        []predicate.Constraint `yaml:"constraints"`
	Rationale          string                 `yaml:"rationale"`
}

// lintResult is the check outcome for one file.
type lintResult struct {
	File     string        `json:"file"`
	Valid    bool          `json:"valid"`
	Errors   []lintFinding `json:"errors,omitempty"`
	Warnings []lintFinding `json:"warnings,omitempty"`
	Rules    []lintRule    `json:"rules,omitempty"`
}

type lintFinding struct {
	Principle string `json:"principle,omitempty"`
	Message   string `json:"message"`
}

type lintRule struct {
	Principle string `json:"principle"`
	RuleID    string `json:"rule_id"`
	Effect    string `json:"effect"`
	Origin    string `json:"origin"`
}

func lintPrinciples(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(lintFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list principle files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no principle files found")
	}

	results := make([]lintResult, 0, len(files))
	for _, file := range files {
		results = append(results, lintFile(file))
	}

	if lintFlags.format == "json" {
		formatter := cli.NewFormatter(cli.FormatJSON)
		if err := formatter.FormatTo(os.Stdout, results); err != nil {
			return err
		}
		return lintExitStatus(results)
	}

	printLintText(results)
	return lintExitStatus(results)
}

func lintFile(path string) lintResult {
	result := lintResult{File: path, Valid: true}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, lintFinding{Message: err.Error()})
		return result
	}

	var pf principleFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, lintFinding{Message: fmt.Sprintf("invalid YAML: %v", err)})
		return result
	}
	if len(pf.Principles) == 0 {
		result.Warnings = append(result.Warnings, lintFinding{Message: "no principles declared"})
		return result
	}

	// Dry-run the compilation front end against throwaway stores. No
	// suggester: lint never calls out to a model.
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	principles := principle.NewMemoryStore()
	policies := store.NewMemoryStore(audit.NopSink{})
	synthesizer := synth.New(policies, nil, nil, synth.Config{}, logger)

	for _, spec := range pf.Principles {
		in := principle.Input{
			Name:               spec.Name,
			PriorityWeight:     spec.PriorityWeight,
			Scope:              spec.Scope,
			Category:           spec.Category,
			NormativeStatement: spec.NormativeStatement,
			Constraints:        spec.Constraints,
			Rationale:          spec.Rationale,
		}
		if err := in.Validate(); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, lintFinding{Principle: spec.Name, Message: err.Error()})
			continue
		}

		p, err := principles.Create(ctx, in)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, lintFinding{Principle: spec.Name, Message: err.Error()})
			continue
		}

		rules, err := synthesizer.Synthesize(ctx, []*principle.Principle{p})
		if err != nil {
			var gap *synth.GapError
			if errors.As(err, &gap) {
				result.Valid = false
				result.Errors = append(result.Errors, lintFinding{Principle: spec.Name, Message: gap.Reason})
			} else {
				result.Valid = false
				result.Errors = append(result.Errors, lintFinding{Principle: spec.Name, Message: err.Error()})
			}
			continue
		}

		rule := rules[0]
		if rule.Body == nil {
			result.Warnings = append(result.Warnings, lintFinding{
				Principle: spec.Name,
				Message:   "no structured constraints; rule has no checkable body and passes verification vacuously",
			})
		}
		result.Rules = append(result.Rules, lintRule{
			Principle: spec.Name,
			RuleID:    rule.ID,
			Effect:    string(rule.Effect),
			Origin:    string(rule.Origin),
		})
	}

	return result
}

func printLintText(results []lintResult) {
	totalErrors, totalWarnings := 0, 0

	for _, result := range results {
		fmt.Printf("Checking %s...\n", result.File)

		if len(result.Errors) == 0 && len(result.Warnings) == 0 {
			fmt.Printf("✓ %d principle(s) valid\n", len(result.Rules))
		}
		for _, rule := range result.Rules {
			fmt.Printf("✓ %s -> %s (%s, %s)\n", rule.Principle, rule.RuleID, rule.Effect, rule.Origin)
		}
		for _, e := range result.Errors {
			if e.Principle != "" {
				fmt.Printf("✗ Error: %s: %s\n", e.Principle, e.Message)
			} else {
				fmt.Printf("✗ Error: %s\n", e.Message)
			}
			totalErrors++
		}
		for _, w := range result.Warnings {
			if w.Principle != "" {
				fmt.Printf("⚠  Warning: %s: %s\n", w.Principle, w.Message)
			} else {
				fmt.Printf("⚠  Warning: %s\n", w.Message)
			}
			totalWarnings++
		}
		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  %d error(s), %d warning(s)\n", totalErrors, totalWarnings)
}

func lintExitStatus(results []lintResult) error {
	for _, result := range results {
		if !result.Valid {
			return cli.NewCommandError("lint", fmt.Errorf("validation failed"))
		}
		if lintFlags.strict && len(result.Warnings) > 0 {
			return cli.NewCommandError("lint", fmt.Errorf("validation failed (strict mode)"))
		}
	}
	return nil
}
