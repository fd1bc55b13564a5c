package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/instamart"
	"github.com/hupe1980/cartpilot/logging"
	"github.com/hupe1980/cartpilot/model"
	"github.com/hupe1980/cartpilot/tool"
)

// DefaultMaxRounds bounds the agent loop. The cap is the sole safety valve
// against unbounded cost and latency; there is no external cancellation
// signal beyond the request context.
const DefaultMaxRounds = 50

// AgentOptions configures an AgentCartBuilder instance.
type AgentOptions struct {
	// MaxRounds caps the number of model invocations per run.
	MaxRounds int
	// RoundTimeout, when > 0, bounds the wall-clock time of a single round
	// (model invocation plus its tool calls).
	RoundTimeout time.Duration
	// Logger receives structured progress events.
	Logger logging.Logger
}

// AgentCartBuilder drives a reasoning model through repeated tool-call
// rounds against the remote cart until the model signals completion via the
// order_complete tool or the round cap is reached.
//
// The loop is resilient by design:
//   - a model that never calls a tool (immediate end turn) completes the run
//     with a best-effort cart fetch
//   - a model that calls tools indefinitely is stopped by the round cap
//   - a single failed tool call never aborts the run; the error is fed back
//     to the model as context so it can adapt
//
// Tool calls within a round execute sequentially: add/remove effects on the
// shared remote cart make parallel mutation unsafe.
type AgentCartBuilder struct {
	llm          model.Model
	api          instamart.API
	tools        map[string]tool.Tool
	maxRounds    int
	roundTimeout time.Duration
	logger       logging.Logger
}

var _ CartBuilder = (*AgentCartBuilder)(nil)

// NewAgentCartBuilder constructs a builder around an injected reasoning
// model and cart API. Defaults: 50 rounds, no round timeout, no-op logger.
func NewAgentCartBuilder(llm model.Model, api instamart.API, optFns ...func(o *AgentOptions)) *AgentCartBuilder {
	opts := AgentOptions{
		MaxRounds: DefaultMaxRounds,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &AgentCartBuilder{
		llm:          llm,
		api:          api,
		tools:        tool.CartBuildingTools(api),
		maxRounds:    opts.MaxRounds,
		roundTimeout: opts.RoundTimeout,
		logger:       opts.Logger,
	}
}

// runState accumulates the outcome of one loop invocation.
type runState struct {
	complete      bool
	itemsAdded    int
	notFound      []string
	failedAdds    []string
	finalCart     *core.CartSnapshot
	protocolError *ProtocolError
}

// Build implements CartBuilder. It returns an error only for invalid input,
// an expired remote session or a model API failure; everything else,
// including a partially built cart, is reported in the Result.
func (b *AgentCartBuilder) Build(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	messages := []model.Message{{Role: "user", Text: userMessage(req)}}
	defs := b.toolDefinitions()
	state := &runState{}

	b.logger.Info("builder.run.start", "items", len(req.Items), "allergens", len(req.Allergens), "max_rounds", b.maxRounds)

	round := 0
loop:
	for !state.complete && round < b.maxRounds {
		round++

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := b.invoke(ctx, model.Request{
			System:   systemPrompt,
			Messages: messages,
			Tools:    defs,
		})
		if err != nil {
			return nil, fmt.Errorf("reasoning model round %d: %w", round, err)
		}

		b.logger.Debug("builder.round.response", "round", round, "stop_reason", string(resp.StopReason), "tool_calls", len(resp.ToolCalls))

		switch resp.StopReason {
		case model.StopReasonToolUse:
			results := b.executeRound(ctx, resp.ToolCalls, state)
			messages = append(messages,
				model.Message{Role: "assistant", Text: resp.Text, ToolCalls: resp.ToolCalls},
				model.Message{Role: "user", ToolResults: results},
			)

		case model.StopReasonEndTurn:
			// The model finished without tools: nothing (more) to add.
			// Fetch the cart anyway so a partial build is still usable.
			if !state.complete {
				b.fetchCart(ctx, state)
				state.complete = true
			}
			break loop

		default:
			state.protocolError = &ProtocolError{StopReason: string(resp.StopReason)}
			b.logger.Warn("builder.run.protocol_error", "stop_reason", string(resp.StopReason))
			break loop
		}
	}

	if !state.complete {
		b.logger.Warn("builder.run.incomplete", "rounds", round)
		b.fetchCart(ctx, state)
	}

	return b.buildResult(req, state), nil
}

// invoke runs one model turn, applying the per-round wall-clock timeout when
// configured.
func (b *AgentCartBuilder) invoke(ctx context.Context, req model.Request) (*model.Response, error) {
	if b.roundTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.roundTimeout)
		defer cancel()
	}
	return b.llm.Invoke(ctx, req)
}

// executeRound dispatches every tool call of one round sequentially and
// returns the matching tool results. A failing call produces an error result
// fed back to the model; it never aborts the round.
func (b *AgentCartBuilder) executeRound(ctx context.Context, calls []model.ToolCall, state *runState) []model.ToolResult {
	results := make([]model.ToolResult, 0, len(calls))

	for _, call := range calls {
		args := decodeArgs(call.Arguments)

		result, err := b.executeTool(ctx, call, args)
		if err != nil {
			b.logger.Warn("builder.tool.error", "tool", call.Name, "error", err.Error())
			if call.Name == tool.AddToCartToolName {
				state.failedAdds = append(state.failedAdds, addItemContext(args))
			}
			payload, _ := json.Marshal(map[string]any{"error": err.Error()})
			results = append(results, model.ToolResult{
				ToolCallID: call.ID,
				Content:    string(payload),
				IsError:    true,
			})
			continue
		}

		switch call.Name {
		case tool.AddToCartToolName:
			state.itemsAdded++
		case tool.OrderCompleteToolName:
			state.complete = true
			state.notFound = completionNotFound(args)
			b.fetchCart(ctx, state)
		}

		payload, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			payload = []byte(fmt.Sprintf("%v", result))
		}
		results = append(results, model.ToolResult{
			ToolCallID: call.ID,
			Content:    string(payload),
		})
	}

	return results
}

// executeTool looks up and invokes one tool from the registry.
func (b *AgentCartBuilder) executeTool(ctx context.Context, call model.ToolCall, args map[string]any) (any, error) {
	impl, ok := b.tools[call.Name]
	if !ok {
		return nil, tool.NewToolError(call.Name, "unknown tool", "NOT_FOUND")
	}

	toolCtx := core.NewToolContext(ctx, b.logger, call.ID)
	return impl.Call(toolCtx, args)
}

// fetchCart captures the latest cart snapshot, best-effort: failures are
// logged and the run continues without one.
func (b *AgentCartBuilder) fetchCart(ctx context.Context, state *runState) {
	cart, err := b.api.GetCart(ctx)
	if err != nil {
		b.logger.Warn("builder.cart.fetch_failed", "error", err.Error())
		return
	}
	state.finalCart = cart
}

// buildResult aggregates the run state into the caller-facing Result.
func (b *AgentCartBuilder) buildResult(req Request, state *runState) *Result {
	notFound := mergeNotFound(state.notFound, state.failedAdds)

	result := &Result{
		Success:       state.complete && state.itemsAdded > 0,
		CartID:        b.api.CartID(),
		ItemsAdded:    state.itemsAdded,
		ItemsNotFound: notFound,
		Cart:          state.finalCart,
	}
	if state.finalCart != nil {
		result.EstimatedTotal = state.finalCart.Total
	}

	switch {
	case state.protocolError != nil:
		result.Message = fmt.Sprintf("Cart building incomplete: %s.", state.protocolError.Error())
	case !state.complete:
		result.Message = "Cart building incomplete. Please try again."
	case len(notFound) > 0:
		result.Message = fmt.Sprintf("Added %d items to the cart. Could not find: %s", state.itemsAdded, strings.Join(notFound, ", "))
	default:
		result.Message = fmt.Sprintf("Added %d items to the cart.", state.itemsAdded)
	}

	b.logger.Info("builder.run.done",
		"success", result.Success,
		"items_added", result.ItemsAdded,
		"items_not_found", len(result.ItemsNotFound),
		"cart_id", result.CartID,
	)

	return result
}

// toolDefinitions exposes the registry as schema declarations in a stable
// order.
func (b *AgentCartBuilder) toolDefinitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(b.tools))
	for _, t := range b.tools {
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// decodeArgs parses the model-supplied argument JSON, tolerating empty input.
func decodeArgs(raw json.RawMessage) map[string]any {
	args := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	return args
}

// addItemContext names the grocery item an add_to_cart failure relates to,
// falling back to the product reference.
func addItemContext(args map[string]any) string {
	if name, ok := args["itemName"].(string); ok && name != "" {
		return name
	}
	if id, ok := args["productId"].(string); ok && id != "" {
		return id
	}
	return "unknown item"
}

// completionNotFound extracts the not-found list from an order_complete
// call: the structured items_not_found array takes precedence, the prose
// summary is the lossy fallback.
func completionNotFound(args map[string]any) []string {
	if raw, ok := args["items_not_found"].([]any); ok && len(raw) > 0 {
		items := make([]string, 0, len(raw))
		for _, entry := range raw {
			if s, ok := entry.(string); ok && s != "" {
				items = append(items, s)
			}
		}
		if len(items) > 0 {
			return items
		}
	}

	summary, _ := args["summary"].(string)
	return parseNotFound(summary)
}

// mergeNotFound deduplicates the structured/parsed not-found list with the
// items whose add_to_cart calls failed, so a failed add never disappears
// from the result.
func mergeNotFound(reported, failed []string) []string {
	seen := make(map[string]struct{}, len(reported)+len(failed))
	merged := make([]string, 0, len(reported)+len(failed))
	for _, name := range append(append([]string{}, reported...), failed...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		merged = append(merged, name)
	}
	return merged
}
