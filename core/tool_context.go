package core

import (
	"context"

	"github.com/hupe1980/cartpilot/logging"
)

// ToolContext provides a constrained surface for tool implementations
// invoked during a cart-building run: the request context, a logger and the
// function call id correlating the model's request with its execution.
type ToolContext struct {
	ctx            context.Context
	logger         logging.Logger
	functionCallID string
}

// NewToolContext constructs a tool context bound to a request context and a
// unique functionCallID. A nil logger is replaced with a NoOpLogger.
func NewToolContext(ctx context.Context, logger logging.Logger, functionCallID string) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{ctx: ctx, logger: logger, functionCallID: functionCallID}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }
