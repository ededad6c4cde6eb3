package domain

import "strings"

const storySummarySeparator = "so that"

// UserStory es una historia generada por el LLM a partir de una transcripción.
type UserStory struct {
	Story              string   `json:"story" jsonschema:"required,description=User story in the form: As a <role> I want <goal> so that <benefit>"`
	Tags               []string `json:"tags" jsonschema:"required,minItems=1,maxItems=3,description=Short labels for the story"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty" jsonschema:"description=Ordered acceptance criteria"`
}

// Summary deriva el resumen del issue: el texto previo a la primera aparición
// de "so that", o la historia completa si la frase no aparece.
func (s UserStory) Summary() string {
	return StorySummary(s.Story)
}

// Description arma el cuerpo del issue con los criterios de aceptación.
func (s UserStory) Description() string {
	story := strings.TrimSpace(s.Story)
	if len(s.AcceptanceCriteria) == 0 {
		return story
	}
	var b strings.Builder
	b.WriteString(story)
	b.WriteString("\n\nAcceptance Criteria:")
	for _, ac := range s.AcceptanceCriteria {
		ac = strings.TrimSpace(ac)
		if ac == "" {
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(ac)
	}
	return b.String()
}

func StorySummary(story string) string {
	if idx := strings.Index(story, storySummarySeparator); idx >= 0 {
		return strings.TrimSpace(story[:idx])
	}
	return strings.TrimSpace(story)
}
