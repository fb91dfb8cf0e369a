package usecase

import (
	"fmt"
	"strings"

	"persona-agent/internal/domain"
)

// personaContext carries the persona material the system prompt is built
// from. pinnedPrompt comes from Parameter Store and leads the prompt; the
// behavior rules are fixed.
type personaContext struct {
	pinnedPrompt string
}

// BuildRAGMessages assembles the message sequence for the
// retrieval-augmented branch: one system message embedding the persona and
// the numbered context sections, the filtered conversation history, then
// the current user query.
func buildRAGMessages(persona personaContext, matches []domain.ContextMatch, history []domain.Message, query string) []domain.Message {
	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: buildRAGSystemPrompt(persona, matches)},
	}
	messages = append(messages, filterHistory(history)...)
	return append(messages, domain.Message{Role: domain.RoleUser, Content: query})
}

// BuildGeneralMessages assembles the general-knowledge branch used when no
// context cleared the score threshold. The persona stays active but there
// is no context section; this is a deliberate fallback, not an error path.
func buildGeneralMessages(persona personaContext, history []domain.Message, query string) []domain.Message {
	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: buildGeneralSystemPrompt(persona)},
	}
	messages = append(messages, filterHistory(history)...)
	return append(messages, domain.Message{Role: domain.RoleUser, Content: query})
}

func buildRAGSystemPrompt(persona personaContext, matches []domain.ContextMatch) string {
	return strings.Join([]string{
		strings.TrimSpace(persona.pinnedPrompt),
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Context:",
		formatContext(matches),
	}, "\n")
}

func buildGeneralSystemPrompt(persona personaContext) string {
	return strings.Join([]string{
		strings.TrimSpace(persona.pinnedPrompt),
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"No background documents matched this question. Answer from general knowledge, staying in persona.",
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer using only the provided context when a Context section is present.",
		"2) If the answer isn't in the context, say you don't know.",
		"3) Keep responses concise (2-3 sentences).",
		"4) Always respond in first person as the person being asked about.",
		"5) Focus on the most relevant information from the context.",
	}, "\n")
}

// formatContext renders matches as numbered sections, grouped under a
// markdown heading per source document.
func formatContext(matches []domain.ContextMatch) string {
	var (
		order    []string
		bySource = make(map[string][]string)
	)
	for i, m := range matches {
		source := strings.TrimSpace(m.Source)
		if source == "" {
			source = "background"
		}
		if _, ok := bySource[source]; !ok {
			order = append(order, source)
		}
		bySource[source] = append(bySource[source], fmt.Sprintf("[%d] %s", i+1, strings.TrimSpace(m.Text)))
	}

	sections := make([]string, 0, len(order))
	for _, source := range order {
		sections = append(sections, "## "+source+"\n\n"+strings.Join(bySource[source], "\n\n"))
	}
	return strings.Join(sections, "\n\n")
}

// filterHistory drops system messages (the assembler owns the single system
// message), normalizes the rest and removes entries left empty by trimming.
func filterHistory(history []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if m.Role == domain.RoleSystem {
			continue
		}
		norm := m.Normalize()
		if norm.Content == "" {
			continue
		}
		out = append(out, norm)
	}
	return out
}
