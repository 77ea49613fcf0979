package gate

import (
	"context"
	"strings"

	"github.com/ashureev/unichat/internal/domain"
)

// Lexical accepts a question when its lower-cased text contains any subject
// label as a plain substring. There is no word-boundary check, so "javascript"
// and "Javanese" both match "java".
type Lexical struct{}

// Name implements Gate.
func (Lexical) Name() string { return StrategyLexical }

// Check implements Gate.
func (Lexical) Check(_ context.Context, question string, subjects []domain.Subject) Verdict {
	folded := strings.ToLower(question)
	for _, s := range subjects {
		label := s.Folded()
		if label == "" {
			continue
		}
		if strings.Contains(folded, label) {
			return Verdict{InScope: true, Reasoning: "matched subject " + s.String()}
		}
	}
	return Verdict{Reasoning: "no supported subject mentioned"}
}
