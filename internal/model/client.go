// Package model is the boundary to the external language-model backend.
// Both the target model (assistant-turn generation) and the judge model
// speak through the same minimal Client interface.
package model

import "context"

// Client is the minimal interface the pipeline uses to call an LLM.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
