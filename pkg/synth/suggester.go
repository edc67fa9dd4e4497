package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"praxis-hq/charter/pkg/predicate"
)

// Suggestion is a proposed rule body for a principle the template path could
// not express.
type Suggestion struct {
	Body       *predicate.Node  `json:"body"`
	Effect     predicate.Effect `json:"effect"`
	Confidence float64          `json:"confidence"`
	Rationale  string           `json:"rationale,omitempty"`
}

// Suggester proposes rule bodies from normative prose. Implementations are
// untrusted: every proposal is re-validated against the vocabulary before it
// becomes a rule.
type Suggester interface {
	Suggest(ctx context.Context, statement, category string, scope []string) (*Suggestion, error)
}

// GenAISuggesterConfig configures the Gemini-backed suggester.
type GenAISuggesterConfig struct {
	APIKey string
	// Model defaults to gemini-2.0-flash.
	Model string
}

// GenAISuggester asks a Gemini model for a structured rule body.
type GenAISuggester struct {
	client *genai.Client
	model  string
	vocab  *predicate.Vocabulary
}

// NewGenAISuggester creates the suggester.
func NewGenAISuggester(ctx context.Context, cfg GenAISuggesterConfig, vocab *predicate.Vocabulary) (*GenAISuggester, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("synth: suggester API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("synth: create genai client: %w", err)
	}
	return &GenAISuggester{client: client, model: model, vocab: vocab}, nil
}

// Suggest proposes a rule body for the statement.
func (g *GenAISuggester) Suggest(ctx context.Context, statement, category string, scope []string) (*Suggestion, error) {
	temp := float32(0)
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(g.prompt(statement, category, scope)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      &temp,
		})
	if err != nil {
		return nil, fmt.Errorf("synth: generate: %w", err)
	}

	var suggestion Suggestion
	if err := json.Unmarshal([]byte(resp.Text()), &suggestion); err != nil {
		return nil, fmt.Errorf("synth: decode suggestion: %w", err)
	}
	if suggestion.Effect != predicate.EffectPermit && suggestion.Effect != predicate.EffectDeny {
		return nil, fmt.Errorf("synth: suggestion carries unknown effect %q", suggestion.Effect)
	}
	if suggestion.Confidence < 0 || suggestion.Confidence > 1 {
		return nil, fmt.Errorf("synth: suggestion confidence %v out of range", suggestion.Confidence)
	}
	return &suggestion, nil
}

func (g *GenAISuggester) prompt(statement, category string, scope []string) string {
	var sb strings.Builder
	sb.WriteString("Translate the following governance principle into a policy rule body.\n")
	sb.WriteString("Respond with a single JSON object of the shape\n")
	sb.WriteString(`{"body": <condition node>, "effect": "permit"|"deny", "confidence": <0..1>, "rationale": <string>}` + "\n")
	sb.WriteString("A condition node is either a comparison\n")
	sb.WriteString(`  {"type":"compare","field":<field>,"op":"=="|"!="|"<"|"<="|">"|">="|"in"|"not_in","value":{"kind":"string"|"number"|"bool",...}}` + "\n")
	sb.WriteString("or a combinator {\"type\":\"all\"|\"any\"|\"not\",\"children\":[...]}.\n\n")
	sb.WriteString("Available fields:\n")
	for _, name := range g.vocab.FieldNames() {
		fmt.Fprintf(&sb, "  %s (%s)\n", name, g.vocab.Fields[name])
	}
	fmt.Fprintf(&sb, "\nCategory: %s\nScope: %s\nPrinciple: %s\n", category, strings.Join(scope, ", "), statement)
	return sb.String()
}
