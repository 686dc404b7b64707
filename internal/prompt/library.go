// Package prompt implements PromptLibrary (C9): per-category templates
// with fixed grounding rules, and context injection into the rendered
// prompt sent to the ChatModel.
package prompt

import (
	"fmt"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// contextCharLimit bounds how much of a retrieved context string is folded
// into the user prompt (spec §4.4: "context[:200]").
const contextCharLimit = 200

// Template pairs a fixed system prompt with the category it grounds.
type Template struct {
	Category models.Category
	System   string
}

// Library holds one Template per category, built once at startup.
type Library struct {
	templates map[models.Category]Template
}

// New builds the PromptLibrary.
func New() *Library {
	l := &Library{templates: make(map[models.Category]Template, len(models.Categories))}
	for _, cat := range models.Categories {
		sys, ok := systemPrompts[cat]
		if !ok {
			sys = systemPrompts[models.CategoryGeneral]
		}
		l.templates[cat] = Template{Category: cat, System: sys}
	}
	return l
}

// TemplateFor returns the template for a category, falling back to general
// for an unrecognized category rather than erroring (the classifier never
// returns anything outside the closed enum, but this keeps the library
// total).
func (l *Library) TemplateFor(category models.Category) Template {
	if t, ok := l.templates[category]; ok {
		return t
	}
	return l.templates[models.CategoryGeneral]
}

// Fallback returns the canned response used when the ChatModel call fails
// (spec §4.6 step 5).
func (l *Library) Fallback(category models.Category) string {
	if s, ok := fallbackResponses[category]; ok {
		return s
	}
	return fallbackResponses[models.CategoryGeneral]
}

// Assemble builds the (system, user) prompt pair from the template, the
// rolling history (already formatted as plain text by SessionStore), the
// raw query, and the retrieved context. Context injection follows spec
// §4.4: non-empty context is appended to the user input as a
// "[참고자료: ...]" block, truncated to contextCharLimit; an empty context
// renders the query verbatim.
func (l *Library) Assemble(tpl Template, history, query, context string) (system, user string) {
	if context == "" {
		return tpl.System, withHistory(history, query)
	}

	truncated := truncateRunes(context, contextCharLimit)
	injected := fmt.Sprintf("%s\n\n[참고자료: %s]", query, truncated)
	return tpl.System, withHistory(history, injected)
}

func withHistory(history, input string) string {
	if history == "" {
		return input
	}
	return fmt.Sprintf("%s\n\n%s", history, input)
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
