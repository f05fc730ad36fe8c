// Package llm implements the Conversation Loop external contract (spec §6):
// a thin adapter over the Anthropic Messages API that turns a system/user
// prompt pair plus a tool set into a stream of {text, tool_start, tool_end,
// done, interrupted} events, used by both the Worker Agent and the Lead
// Agent Supervisor.
package llm

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Model string
	// APIKey overrides the ANTHROPIC_API_KEY environment variable.
	APIKey string
}

// Client wraps the Anthropic SDK client with the model selection and token
// accounting every conversation loop in this package shares.
type Client struct {
	inner   anthropic.Client
	model   anthropic.Model
	tracker *TokenTracker
}

// NewClient builds a Client from cfg, falling back to ANTHROPIC_API_KEY when
// cfg.APIKey is empty.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("llm: no API key configured (set ANTHROPIC_API_KEY or ClientConfig.APIKey)")
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5_20250929
	}

	return &Client{
		inner:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		tracker: &TokenTracker{},
	}, nil
}

func (c *Client) sdk() anthropic.Client { return c.inner }

// Model returns the model this client calls.
func (c *Client) Model() anthropic.Model { return c.model }

// Tracker returns the client's cumulative token tracker.
func (c *Client) Tracker() *TokenTracker { return c.tracker }

// TokenTracker accumulates input/output token usage across every call made
// through a Client, so a run can report total usage regardless of how many
// workers or conversation turns it spawned.
type TokenTracker struct {
	mu        sync.Mutex
	inputSum  int64
	outputSum int64
	calls     int
}

// Add records one API call's usage.
func (t *TokenTracker) Add(in, out int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputSum += in
	t.outputSum += out
	t.calls++
}

// Total returns the cumulative input and output token counts.
func (t *TokenTracker) Total() (in, out int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputSum, t.outputSum
}

// Calls returns the number of API calls recorded.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset zeroes the tracker.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputSum, t.outputSum, t.calls = 0, 0, 0
}
