// Package replay deterministically walks one resolved scenario path and
// materializes the transcript ledger. The scenario defines what should
// happen in each assistant turn; the model backend decides what is said.
package replay

import (
	"context"

	"dossier/internal/logging"
	"dossier/internal/scenario"
	"dossier/internal/transcript"
)

// TurnGenerator realizes one assistant turn from its content intent and
// the accumulated transcript so far.
type TurnGenerator interface {
	GenerateTurn(ctx context.Context, history []transcript.TurnRecord, intent string) (string, error)
}

// Engine walks a resolved path and appends one TurnRecord per node.
type Engine struct {
	gen TurnGenerator
}

// NewEngine creates a replay engine over the given generator.
func NewEngine(gen TurnGenerator) *Engine {
	return &Engine{gen: gen}
}

// Run replays the path in order into a fresh ledger. Generation is
// strictly sequential: turn n is fully appended before turn n+1 starts,
// since assistant generation may depend on prior turns.
//
// A backend failure or empty response for an assistant turn is non-fatal:
// the turn is emitted with empty content and downstream components treat
// it as carrying no features. There is no retry at this boundary.
func (e *Engine) Run(ctx context.Context, path []scenario.Node) (*transcript.Ledger, error) {
	log := logging.Get(logging.CategoryReplay)
	ledger := transcript.NewLedger()

	for _, node := range path {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch node.Role {
		case scenario.RoleUser:
			rec := ledger.Append(node.Role, node.Content, node.ID, node.Phase)
			log.Debugw("user turn", "turn", rec.TurnIndex, "node", node.ID, "phase", node.Phase)

		case scenario.RoleAssistant:
			text, err := e.gen.GenerateTurn(ctx, ledger.Records(), node.ContentIntent)
			if err != nil {
				log.Warnw("generation failed, emitting empty turn", "node", node.ID, "error", err)
				text = ""
			}
			rec := ledger.Append(node.Role, text, node.ID, node.Phase)
			log.Debugw("assistant turn", "turn", rec.TurnIndex, "node", node.ID, "phase", node.Phase, "content_len", len(text))
		}
	}

	log.Infow("replay complete", "turns", ledger.Len(), "max_phase", ledger.MaxPhase())
	return ledger, nil
}
