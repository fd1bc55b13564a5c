// Package model defines the provider-agnostic abstraction for the reasoning
// model that drives cart building.
//
// Core goals:
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (Anthropic, OpenAI) implement the Model interface from this
// package so the builder stays decoupled from vendor SDKs.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// StopReason describes why the model ended its turn.
type StopReason string

// Stop reasons the loop controller branches on. Any other value is treated
// as a protocol error and terminates the run as incomplete.
const (
	StopReasonToolUse StopReason = "tool_use"
	StopReasonEndTurn StopReason = "end_turn"
)

// ToolDefinition declaratively exposes a callable operation to the model.
// Parameters is a JSON Schema object (minimal subset).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a function call request surfaced by the model. Unified across
// vendors so the loop does not need per-provider branching.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult feeds one tool execution outcome back to the model, keyed to
// the originating call. Content is the JSON-serialized payload; IsError
// marks failures so the model can adapt rather than abort.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Content    string `json:"content"`
	IsError    bool   `json:"isError"`
}

// Message is one turn of the growing conversation history.
type Message struct {
	Role        string       `json:"role"` // "user" or "assistant"
	Text        string       `json:"text,omitempty"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`   // assistant turns
	ToolResults []ToolResult `json:"toolResults,omitempty"` // user turns carrying results
}

// Request captures the normalized model input for one invocation.
type Request struct {
	System   string           `json:"system"`
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// Response is the model's reply to one invocation.
type Response struct {
	StopReason StopReason `json:"stopReason"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface the builder requires to drive generation.
// Invoke blocks until the model produces a full turn.
type Model interface {
	Invoke(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests. Responses
// (or errors) are consumed in FIFO order; every received request is recorded
// for assertions.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	queue    []queuedTurn
	requests []Request
}

type queuedTurn struct {
	resp *Response
	err  error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
	}
}

// QueueResponse appends a canned response to the FIFO queue.
func (m *MockModel) QueueResponse(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, queuedTurn{resp: &resp})
}

// QueueError appends an error turn to the FIFO queue.
func (m *MockModel) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, queuedTurn{err: err})
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Invoke implements Model. When the queue is exhausted it keeps replaying
// the last queued turn, which lets tests exercise round caps without
// enqueueing 50 identical responses.
func (m *MockModel) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.queue) == 0 {
		return nil, fmt.Errorf("mock model: no responses queued")
	}

	turn := m.queue[0]
	if len(m.queue) > 1 {
		m.queue = m.queue[1:]
	}
	if turn.err != nil {
		return nil, turn.err
	}
	resp := *turn.resp
	return &resp, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
