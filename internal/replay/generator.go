package replay

import (
	"context"
	"fmt"
	"strings"

	"dossier/internal/model"
	"dossier/internal/transcript"
)

const targetSystemPrompt = "You are a helpful assistant talking with a user about a personal situation. " +
	"Reply with the assistant's next message only: no preamble, no stage directions, no quotation marks around the reply."

// ModelGenerator adapts a model.Client to the TurnGenerator boundary.
// Each assistant node costs at most one backend call.
type ModelGenerator struct {
	client model.Client
}

// NewModelGenerator wraps a backend client.
func NewModelGenerator(client model.Client) *ModelGenerator {
	return &ModelGenerator{client: client}
}

// GenerateTurn asks the backend for the next assistant message given the
// conversation so far and the node's directive.
func (g *ModelGenerator) GenerateTurn(ctx context.Context, history []transcript.TurnRecord, intent string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Conversation so far:\n\n")
	for _, rec := range history {
		sb.WriteString(fmt.Sprintf("%s: %s\n\n", strings.ToUpper(string(rec.Role)), rec.Content))
	}
	sb.WriteString("Directive for your next reply: ")
	sb.WriteString(intent)
	sb.WriteString("\n\nWrite the assistant's next message.")

	text, err := g.client.CompleteWithSystem(ctx, targetSystemPrompt, sb.String())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("backend returned empty completion")
	}
	return text, nil
}
