package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// EventType enumerates the stream taxonomy spec §6 assigns the conversation
// loop: {text, tool_start, tool_end, done, interrupted}.
type EventType string

const (
	EventText        EventType = "text"
	EventToolStart   EventType = "tool_start"
	EventToolEnd     EventType = "tool_end"
	EventDone        EventType = "done"
	EventInterrupted EventType = "interrupted"
)

// Event is one item in a Loop's stream.
type Event struct {
	Type EventType
	// Text carries the model's emitted text for EventText.
	Text string
	// Tool, ToolInput, ToolResult, ToolError describe a tool_start/tool_end
	// pair. ToolInput is set on tool_start; ToolResult/ToolError on tool_end.
	Tool       string
	ToolInput  json.RawMessage
	ToolResult string
	ToolError  bool
}

// Result is a Loop.Run's final outcome.
type Result struct {
	Output      string
	TokensIn    int64
	TokensOut   int64
	ToolCalls   int
	Iterations  int
	Interrupted bool
}

// Config configures a Loop.
type Config struct {
	Client  *Client
	WorkDir string
	// Executor overrides the tool-execution backend. Defaults to a
	// ToolExecutor rooted at WorkDir; the Worker Agent supplies a
	// boundary-gated Executor here instead (spec §4.F step 3).
	Executor Executor
	// MaxIterations bounds the number of model turns before Run gives up.
	// Zero means 50.
	MaxIterations int
	// Model overrides Client's default model for this Loop, letting a
	// caller route individual conversations to a different tier (e.g. the
	// Worker Agent's per-task complexity-based model selection) without
	// constructing a separate Client.
	Model string
}

// Loop is one conversation with the model: a single Run call drives it from
// the initial prompt through as many tool-use turns as the model requests,
// until it signals completion (StopReasonEndTurn), the iteration budget is
// exhausted, or ctx is cancelled. Each call to Run is a *fresh* conversation;
// the Worker Agent opens a new Loop for each of its Analyze / Decide /
// Execute phases (spec §4.F).
type Loop struct {
	client        *Client
	executor      Executor
	onEvent       func(Event)
	maxIterations int
	model         anthropic.Model
}

// New builds a Loop from cfg.
func New(cfg Config) *Loop {
	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = 50
	}
	executor := cfg.Executor
	if executor == nil {
		executor = NewToolExecutor(cfg.WorkDir)
	}
	model := cfg.Client.Model()
	if cfg.Model != "" {
		model = anthropic.Model(cfg.Model)
	}
	return &Loop{
		client:        cfg.Client,
		executor:      executor,
		maxIterations: maxIter,
		model:         model,
	}
}

// OnEvent registers a callback invoked synchronously for every Event Run
// produces. Passing nil disables streaming.
func (l *Loop) OnEvent(fn func(Event)) { l.onEvent = fn }

func (l *Loop) emit(e Event) {
	if l.onEvent != nil {
		l.onEvent(e)
	}
}

// Run drives the conversation to completion. tools may be nil for a
// tool-free turn (equivalent to SimpleCall but still event-emitting).
func (l *Loop) Run(ctx context.Context, systemPrompt, userPrompt string, tools []anthropic.ToolUnionParam) (*Result, error) {
	result := &Result{}
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
	}

	for result.Iterations < l.maxIterations {
		result.Iterations++

		// Suspension point: checked at the start of every turn (spec §5).
		if err := ctx.Err(); err != nil {
			result.Interrupted = true
			l.emit(Event{Type: EventInterrupted})
			return result, err
		}

		resp, err := l.client.sdk().Messages.New(ctx, anthropic.MessageNewParams{
			Model:     l.model,
			MaxTokens: 8192,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return result, fmt.Errorf("llm: conversation turn failed: %w", err)
		}

		result.TokensIn += resp.Usage.InputTokens
		result.TokensOut += resp.Usage.OutputTokens
		l.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion
		var textOutput string

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				textOutput += variant.Text
				l.emit(Event{Type: EventText, Text: variant.Text})
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				// Suspension point: checked between tool invocations (spec §5).
				if err := ctx.Err(); err != nil {
					result.Interrupted = true
					l.emit(Event{Type: EventInterrupted})
					return result, err
				}

				result.ToolCalls++
				l.emit(Event{Type: EventToolStart, Tool: variant.Name, ToolInput: variant.Input})

				toolResult := l.executor.Execute(ctx, variant.Name, variant.Input)
				l.emit(Event{
					Type:       EventToolEnd,
					Tool:       variant.Name,
					ToolResult: truncateForDisplay(toolResult.Content),
					ToolError:  toolResult.IsError,
				})

				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))
				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, toolResult.Content, toolResult.IsError))
			}
		}

		if resp.StopReason == anthropic.StopReasonEndTurn {
			result.Output = textOutput
			l.emit(Event{Type: EventDone})
			return result, nil
		}

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		if len(toolResultBlocks) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
		}
	}

	return result, fmt.Errorf("llm: max iterations (%d) reached", l.maxIterations)
}

// SimpleCall makes a single tool-free call and returns the model's text.
// Used for turns that only need a judgment or a small structured decision,
// like the Worker Agent's strategy turn (spec §4.F step 2).
func (l *Loop) SimpleCall(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := l.client.sdk().Messages.New(ctx, anthropic.MessageNewParams{
		Model:     l.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: simple call failed: %w", err)
	}
	l.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var out string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			out += variant.Text
		}
	}
	return out, nil
}

func truncateForDisplay(s string) string {
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
