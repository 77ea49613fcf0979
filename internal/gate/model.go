package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/unichat/internal/domain"
	"github.com/ashureev/unichat/internal/llm"
	"github.com/tidwall/gjson"
)

var errMalformedVerdict = errors.New("classifier returned a malformed verdict")

// classificationSchema is the structured response requested from the model.
var classificationSchema = llm.Schema{
	Name:        "subject_relevance",
	Description: "Whether a student question belongs to one of the supported subjects.",
	Fields: []llm.Field{
		{Name: "is_subject_related", Type: llm.FieldBoolean, Description: "true only if the question is about one of the listed subjects"},
		{Name: "reasoning", Type: llm.FieldString, Description: "one short sentence explaining the decision"},
	},
}

// Model delegates the relevance decision to the remote model. Any failure
// trips the guard: the verdict is out of scope.
type Model struct {
	client llm.Client
}

// NewModel returns a model-delegated gate.
func NewModel(client llm.Client) *Model {
	return &Model{client: client}
}

// Name implements Gate.
func (m *Model) Name() string { return StrategyModel }

// Check implements Gate.
func (m *Model) Check(ctx context.Context, question string, subjects []domain.Subject) Verdict {
	raw, err := m.client.CompleteJSON(ctx, llm.Prompt{
		System: classifierInstructions(subjects),
		User:   question,
	}, classificationSchema)
	if err != nil {
		return Verdict{Reasoning: "relevance check failed", Err: fmt.Errorf("classify question: %w", err)}
	}
	return parseVerdict(raw)
}

func classifierInstructions(subjects []domain.Subject) string {
	var sb strings.Builder
	sb.WriteString("You are a guardrail for a university study assistant.\n")
	sb.WriteString("Decide whether the user's question is related to any of these subjects:\n")
	for _, s := range subjects {
		sb.WriteString("- ")
		sb.WriteString(s.String())
		sb.WriteString("\n")
	}
	sb.WriteString("Reply only with a JSON object with the fields is_subject_related (boolean) and reasoning (string).")
	return sb.String()
}

// parseVerdict reads the classifier's JSON. Only a literal true is accepted.
func parseVerdict(raw string) Verdict {
	body := stripCodeFence(raw)
	if !gjson.Valid(body) {
		return Verdict{Reasoning: "relevance check failed", Err: fmt.Errorf("%w: %q", errMalformedVerdict, raw)}
	}

	flag := gjson.Get(body, "is_subject_related")
	reasoning := gjson.Get(body, "reasoning").String()
	switch flag.Type {
	case gjson.True:
		return Verdict{InScope: true, Reasoning: reasoning}
	case gjson.False:
		return Verdict{Reasoning: reasoning}
	default:
		return Verdict{Reasoning: reasoning, Err: fmt.Errorf("%w: missing is_subject_related", errMalformedVerdict)}
	}
}

// stripCodeFence removes a ```json fence some models wrap around JSON output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
