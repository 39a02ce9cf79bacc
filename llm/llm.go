// Package llm defines the provider-agnostic contract for text generation.
// Concrete providers live under contrib/provider.
package llm

import (
	"context"

	"github.com/sweetpotato0/docarag/message"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Generate produces an assistant reply for the given conversation.
	Generate(ctx context.Context, messages []*message.Message) (*message.Message, error)

	// SetTemperature updates the sampling temperature for generation
	SetTemperature(temp float64)

	// SetMaxTokens updates the maximum tokens limit for generation
	SetMaxTokens(max int64)

	// SetModel updates the model to use for generation
	SetModel(model string)
}
