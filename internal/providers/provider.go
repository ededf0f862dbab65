// Package providers holds the clients that execute prompts against
// third-party AI services. The guard never looks inside a provider; it only
// meters what comes back.
package providers

import (
	"context"
	"time"
)

// Request is a normalized prompt execution request.
type Request struct {
	Model       string
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Result carries everything the metering pipeline needs from a completed
// provider call.
type Result struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	Duration     time.Duration
}

// Provider is implemented by each concrete AI provider client.
type Provider interface {
	// Name returns the provider type (openai, ...)
	Name() string

	// Complete executes a prompt and returns the result with usage attached
	Complete(ctx context.Context, req Request) (*Result, error)
}

// pricing is USD per 1K tokens.
type pricing struct {
	input  float64
	output float64
}

var modelPricing = map[string]pricing{
	"gpt-4o":        {input: 0.0025, output: 0.01},
	"gpt-4o-mini":   {input: 0.00015, output: 0.0006},
	"gpt-4-turbo":   {input: 0.01, output: 0.03},
	"gpt-3.5-turbo": {input: 0.0005, output: 0.0015},
}

// Unrecognized models get the conservative high rate.
var defaultPricing = pricing{input: 0.01, output: 0.03}

// CalculateCost computes the USD cost of a call from its token counts.
func CalculateCost(model string, inputTokens, outputTokens int64) float64 {
	p, ok := modelPricing[model]
	if !ok {
		p = defaultPricing
	}

	inputCost := float64(inputTokens) / 1000 * p.input
	outputCost := float64(outputTokens) / 1000 * p.output
	return inputCost + outputCost
}
