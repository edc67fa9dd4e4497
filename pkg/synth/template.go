package synth

import (
	"sort"

	"praxis-hq/charter/pkg/predicate"
)

// Template maps a principle category to the effect its rules carry.
// Restrictive categories deny the contexts their constraints describe;
// enabling categories permit them.
type Template struct {
	Category string
	Effect   predicate.Effect
}

// defaultTemplates covers the constitutional categories the synthesizer
// understands out of the box.
var defaultTemplates = map[string]Template{
	"safety":     {Category: "safety", Effect: predicate.EffectDeny},
	"privacy":    {Category: "privacy", Effect: predicate.EffectDeny},
	"compliance": {Category: "compliance", Effect: predicate.EffectDeny},
	"security":   {Category: "security", Effect: predicate.EffectDeny},
	"efficiency": {Category: "efficiency", Effect: predicate.EffectPermit},
	"access":     {Category: "access", Effect: predicate.EffectPermit},
	"enablement": {Category: "enablement", Effect: predicate.EffectPermit},
}

// TemplateLibrary resolves categories to templates.
type TemplateLibrary struct {
	templates map[string]Template
}

// NewTemplateLibrary returns the default library.
func NewTemplateLibrary() *TemplateLibrary {
	lib := &TemplateLibrary{templates: make(map[string]Template, len(defaultTemplates))}
	for k, v := range defaultTemplates {
		lib.templates[k] = v
	}
	return lib
}

// Register adds or replaces a template.
func (l *TemplateLibrary) Register(t Template) {
	l.templates[t.Category] = t
}

// Lookup returns the template for a category.
func (l *TemplateLibrary) Lookup(category string) (Template, bool) {
	t, ok := l.templates[category]
	return t, ok
}

// Categories returns the registered categories, sorted.
func (l *TemplateLibrary) Categories() []string {
	out := make([]string, 0, len(l.templates))
	for k := range l.templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// compileConstraints builds the rule body from a constraint list. The body's
// canonical form is order-independent, so authoring order never changes rule
// identity.
func compileConstraints(cs []predicate.Constraint) *predicate.Node {
	return predicate.ConjoinConstraints(cs)
}
