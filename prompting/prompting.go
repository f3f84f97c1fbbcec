// Package prompting builds the four competing prompt variants that are sent
// to the answer generator for the same retrieved context.
package prompting

import (
	"fmt"
	"strings"

	"github.com/fabfab/rag-explorer/domain"
)

// Strategy names a prompt construction technique.
type Strategy string

const (
	ZeroShot       Strategy = "zero_shot"
	FewShot        Strategy = "few_shot"
	ChainOfThought Strategy = "chain_of_thought"
	RoleBased      Strategy = "role_based"
)

// Strategies lists the prompting strategies in canonical order.
var Strategies = []Strategy{ZeroShot, FewShot, ChainOfThought, RoleBased}

const (
	DefaultRole     = "domain expert"
	DefaultStrategy = ChainOfThought
)

// Spec is one fully rendered prompt.
type Spec struct {
	Strategy      Strategy `json:"strategy"`
	SystemPrompt  string   `json:"system_prompt"`
	UserPrompt    string   `json:"user_prompt"`
	FullPrompt    string   `json:"full_prompt"`
	TokenEstimate int      `json:"token_estimate"`
	Meta          Meta     `json:"meta"`
}

type builder func(context, question, role string) (system, user string)

var builders = map[Strategy]builder{
	ZeroShot:       zeroShot,
	FewShot:        fewShot,
	ChainOfThought: chainOfThought,
	RoleBased:      roleBased,
}

// Lookup validates a strategy name. An empty name selects the default.
func Lookup(name string) (Strategy, error) {
	if strings.TrimSpace(name) == "" {
		return DefaultStrategy, nil
	}
	s := Strategy(strings.TrimSpace(name))
	if _, ok := builders[s]; !ok {
		return "", fmt.Errorf("unknown prompting strategy %q: %w", name, domain.ErrInvalidInput)
	}
	return s, nil
}

// Build renders every strategy in canonical order.
func Build(context, question, role string) []Spec {
	specs := make([]Spec, 0, len(Strategies))
	for _, s := range Strategies {
		specs = append(specs, render(s, context, question, role))
	}
	return specs
}

// BuildOne renders a single strategy.
func BuildOne(strategy Strategy, context, question, role string) (Spec, error) {
	if _, ok := builders[strategy]; !ok {
		return Spec{}, fmt.Errorf("unknown prompting strategy %q: %w", strategy, domain.ErrInvalidInput)
	}
	return render(strategy, context, question, role), nil
}

func render(s Strategy, context, question, role string) Spec {
	if strings.TrimSpace(role) == "" {
		role = DefaultRole
	}
	system, user := builders[s](context, question, role)
	full := "[SYSTEM]\n" + system + "\n\n[USER]\n" + user
	return Spec{
		Strategy:      s,
		SystemPrompt:  system,
		UserPrompt:    user,
		FullPrompt:    full,
		TokenEstimate: len(strings.Fields(full)),
		Meta:          MetaFor(s),
	}
}

// BuildContext joins retrieved chunks into the context block. In multi
// document mode every chunk is prefixed with the label of its source.
func BuildContext(chunks []domain.RetrievedChunk, multiDoc bool) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		if multiDoc {
			parts[i] = fmt.Sprintf("[From: %s]\n%s", SourceLabel(c.SourceCollection), c.Text)
			continue
		}
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// SourceLabel turns a collection name back into a readable document label.
func SourceLabel(collection string) string {
	if collection == "" {
		return "unknown"
	}
	label := strings.ReplaceAll(collection, "rag_", "")
	return strings.ReplaceAll(label, "_", " ")
}
