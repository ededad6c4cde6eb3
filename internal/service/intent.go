package service

import "strings"

// Intent es el propósito clasificado de un mensaje de usuario.
type Intent int

const (
	IntentFallback Intent = iota
	IntentSummarize
	IntentList
	IntentGenerate
)

func (i Intent) String() string {
	switch i {
	case IntentSummarize:
		return "summarize"
	case IntentList:
		return "list"
	case IntentGenerate:
		return "generate"
	default:
		return "fallback"
	}
}

type intentRule struct {
	intent Intent
	match  func(msg string) bool
}

// intentRules se evalúa en orden y gana la primera coincidencia.
// "summarize and list stories" cae en Summarize sólo por este orden.
var intentRules = []intentRule{
	{IntentSummarize, containsAll("summarize")},
	{IntentList, containsAll("list", "stories")},
	{IntentGenerate, containsAll("generate", "stories")},
}

// Classify devuelve el intent de un mensaje; la comparación no distingue mayúsculas.
func Classify(message string) Intent {
	msg := strings.ToLower(strings.TrimSpace(message))
	for _, rule := range intentRules {
		if rule.match(msg) {
			return rule.intent
		}
	}
	return IntentFallback
}

func containsAll(words ...string) func(string) bool {
	return func(s string) bool {
		for _, w := range words {
			if !strings.Contains(s, w) {
				return false
			}
		}
		return true
	}
}
