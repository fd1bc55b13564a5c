package chatflow

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/hupe1980/cartpilot/builder"
	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/instamart"
	"github.com/hupe1980/cartpilot/logging"
)

var (
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
)

// Authenticator covers the pre-session operations the flow needs from the
// remote grocery service.
type Authenticator interface {
	SendOTP(ctx context.Context, phone string) (*instamart.OTPResult, error)
	VerifyOTP(ctx context.Context, phone, otp string) (*instamart.AuthResult, error)
	GetAddresses(ctx context.Context, accessToken string) ([]core.DeliveryAddress, error)
}

var _ Authenticator = (*instamart.Auth)(nil)

// Options configures a Flow instance.
type Options struct {
	// AccessToken is an existing remote session credential. When set, the
	// connection check tries it before asking the user to log in.
	AccessToken string
	// SettleDelay is the pause in the transient processing step before the
	// handoff message appears.
	SettleDelay time.Duration
	// Logger receives structured progress events.
	Logger logging.Logger
}

// Flow is the scripted ordering conversation for one session. It is not
// safe for concurrent use; a session owns exactly one flow.
type Flow struct {
	auth        Authenticator
	req         builder.Request
	accessToken string
	settleDelay time.Duration
	logger      logging.Logger

	state     State
	messages  []Message
	phone     string
	addresses []core.DeliveryAddress
	selected  *core.DeliveryAddress
	estimate  core.EstimateRange
	handoff   []string
}

// NewFlow creates a flow over the given grocery request. Defaults: no
// access token, a 2 second settle delay, no-op logger.
func NewFlow(auth Authenticator, req builder.Request, optFns ...func(o *Options)) *Flow {
	opts := Options{
		SettleDelay: 2 * time.Second,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Flow{
		auth:        auth,
		req:         req,
		accessToken: opts.AccessToken,
		settleDelay: opts.SettleDelay,
		logger:      opts.Logger,
		state:       StateCheckingConnection,
	}
}

// State returns the current conversation state.
func (f *Flow) State() State { return f.state }

// Messages returns a copy of the conversation history.
func (f *Flow) Messages() []Message {
	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Estimate returns the computed price band. Valid once the flow has
// reached cart review.
func (f *Flow) Estimate() core.EstimateRange { return f.estimate }

// SelectedAddress returns the chosen delivery address, or nil.
func (f *Flow) SelectedAddress() *core.DeliveryAddress { return f.selected }

// HandoffPrompts returns the generated shopping instructions. Valid once
// the flow has reached handoff.
func (f *Flow) HandoffPrompts() []string {
	out := make([]string, len(f.handoff))
	copy(out, f.handoff)
	return out
}

// Start runs the connection check: with a usable session and at least one
// saved address the flow jumps straight to address selection, otherwise it
// asks the user to log in.
func (f *Flow) Start(ctx context.Context) (*Message, error) {
	if err := f.require("start", StateCheckingConnection); err != nil {
		return nil, err
	}
	if err := f.req.Validate(); err != nil {
		return nil, err
	}

	if f.accessToken != "" {
		addresses, err := f.auth.GetAddresses(ctx, f.accessToken)
		if err == nil && len(addresses) > 0 {
			f.addresses = addresses
			return f.welcome(), nil
		}
		f.logger.Debug("chatflow.connection.stale", "error", errText(err), "addresses", len(addresses))
	}

	f.state = StateSwiggyLogin
	return f.bot("Let's connect your Swiggy account first. Please enter your 10-digit phone number.", nil), nil
}

// SubmitPhone validates the phone number and dispatches a login OTP.
// An invalid number keeps the flow in the login state with an inline error.
func (f *Flow) SubmitPhone(ctx context.Context, phone string) (*Message, error) {
	if err := f.require("submit phone", StateSwiggyLogin); err != nil {
		return nil, err
	}

	f.user(phone)

	if !phonePattern.MatchString(phone) {
		f.bot("That doesn't look like a valid phone number. Please enter exactly 10 digits.", nil)
		return nil, core.NewValidationError(core.ReasonInvalidPhone, "phone number must be exactly 10 digits")
	}

	if _, err := f.auth.SendOTP(ctx, phone); err != nil {
		f.bot("Couldn't send the OTP right now. Please try again.", nil)
		return nil, fmt.Errorf("send otp: %w", err)
	}

	f.phone = phone
	f.state = StateSwiggyOTP
	f.logger.Info("chatflow.otp.sent")
	return f.bot("We've sent a 6-digit OTP to your phone. Please enter it here.", nil), nil
}

// SubmitOTP validates the code locally, verifies it remotely and loads the
// address book. A failed verification keeps the flow in the OTP state.
func (f *Flow) SubmitOTP(ctx context.Context, otp string) (*Message, error) {
	if err := f.require("submit otp", StateSwiggyOTP); err != nil {
		return nil, err
	}

	f.user(otp)

	if !otpPattern.MatchString(otp) {
		f.bot("The OTP must be exactly 6 digits. Please try again.", nil)
		return nil, core.NewValidationError(core.ReasonInvalidOTP, "otp must be exactly 6 digits")
	}

	auth, err := f.auth.VerifyOTP(ctx, f.phone, otp)
	if err != nil || !auth.Success {
		f.bot("That OTP didn't work. Please check the code and try again.", nil)
		if err == nil {
			err = fmt.Errorf("otp verification failed: %s", auth.Error)
		}
		return nil, err
	}

	f.accessToken = auth.AccessToken

	// The OTP is consumed at this point; failures past here cannot be
	// retried within the conversation.
	addresses, err := f.auth.GetAddresses(ctx, f.accessToken)
	if err != nil {
		f.state = StateError
		f.logger.Error("chatflow.addresses.failed", "error", err.Error())
		f.bot("Logged in, but we couldn't load your addresses. Please start the order again.", nil)
		return nil, fmt.Errorf("load addresses: %w", err)
	}
	if len(addresses) == 0 {
		f.state = StateError
		f.bot("You're logged in, but there's no saved delivery address. Please add one in the Swiggy app and start the order again.", nil)
		return nil, core.NewValidationError(core.ReasonNeedsAddress, "no saved delivery address")
	}

	f.addresses = addresses
	f.logger.Info("chatflow.login.done", "addresses", len(addresses))
	return f.welcome(), nil
}

// SelectAddress picks a delivery address and moves to cart review with the
// price band computed from the category price table.
func (f *Flow) SelectAddress(addressID string) (*Message, error) {
	if err := f.require("select address", StateWelcome); err != nil {
		return nil, err
	}

	var selected *core.DeliveryAddress
	for i := range f.addresses {
		if f.addresses[i].ID == addressID {
			selected = &f.addresses[i]
			break
		}
	}
	if selected == nil {
		return nil, core.NewValidationError(core.ReasonNeedsAddress, "unknown address %q", addressID)
	}

	f.user(selected.Label)
	f.selected = selected
	f.estimate = core.CalculateEstimate(f.req.Items)

	return f.review(), nil
}

// ConfirmOrder moves through the transient processing step into handoff,
// generating the shopping instructions for the user to carry into the
// Swiggy app. The processing pause is purely presentational.
func (f *Flow) ConfirmOrder(ctx context.Context) (*Message, error) {
	if err := f.require("confirm order", StateCartReview); err != nil {
		return nil, err
	}

	f.user("Place Order")
	f.state = StateProcessing
	f.bot("Preparing your shopping list...", nil)

	if f.settleDelay > 0 {
		select {
		case <-time.After(f.settleDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.handoff = HandoffPrompts(f.req)
	f.state = StateHandoff
	f.logger.Info("chatflow.handoff", "batches", len(f.handoff))

	text := "Your shopping list is ready! Open the Swiggy app and paste the instructions to complete your order."
	if len(f.handoff) > 1 {
		text = fmt.Sprintf("Your shopping list is ready in %d parts, grouped by category. Paste each part into the Swiggy app in turn.", len(f.handoff))
	}
	return f.bot(text, []QuickAction{{Label: "Done", Value: "done"}}), nil
}

// Finish acknowledges the handoff and closes the conversation.
func (f *Flow) Finish() (*Message, error) {
	if err := f.require("finish", StateHandoff); err != nil {
		return nil, err
	}

	f.user("Done")
	f.state = StateComplete
	return f.bot("Happy cooking! Your order is on its way once you check out in the Swiggy app.", nil), nil
}

// EditCart switches to the item listing sub-flow.
func (f *Flow) EditCart() (*Message, error) {
	if err := f.require("edit cart", StateCartReview); err != nil {
		return nil, err
	}

	f.user("Edit Cart")
	f.state = StateEditCart

	text := "Here's what's on your list:\n"
	for _, item := range f.req.Items {
		text += fmt.Sprintf("- %s: %s %s\n", item.Name, item.Quantity, item.Unit)
	}
	text += "\nUse the meal planner to change items, then come back to the cart."
	return f.bot(text, []QuickAction{{Label: "Back to Cart", Value: "back"}}), nil
}

// BackToCart returns from editing to the cart review.
func (f *Flow) BackToCart() (*Message, error) {
	if err := f.require("back to cart", StateEditCart); err != nil {
		return nil, err
	}

	f.user("Back to Cart")
	return f.review(), nil
}

// Cancel ends the conversation. Permitted from any non-terminal state.
func (f *Flow) Cancel() (*Message, error) {
	if f.state.Terminal() {
		return nil, fmt.Errorf("chatflow: cancel not allowed in state %s", f.state)
	}

	f.user("Cancel")
	f.state = StateCancelled
	f.logger.Info("chatflow.cancelled")
	return f.bot("No problem, I've cancelled the order. Your meal plan is untouched.", nil), nil
}

// welcome transitions to address selection, offering one quick action per
// saved address.
func (f *Flow) welcome() *Message {
	f.state = StateWelcome

	actions := make([]QuickAction, 0, len(f.addresses))
	for _, addr := range f.addresses {
		label := addr.Label
		if label == "" {
			label = addr.Address
		}
		actions = append(actions, QuickAction{Label: label, Value: addr.ID})
	}

	return f.bot(fmt.Sprintf("Welcome back! I have %d items from your meal plan ready to order. Where should we deliver?", len(f.req.Items)), actions)
}

// review transitions to cart review with the estimate band summary.
func (f *Flow) review() *Message {
	f.state = StateCartReview

	text := fmt.Sprintf("Here's your order: %d items, estimated between ₹%.0f and ₹%.0f. The final price depends on the products you pick.",
		len(f.req.Items), f.estimate.Min, f.estimate.Max)

	return f.bot(text, []QuickAction{
		{Label: "Place Order", Value: "confirm"},
		{Label: "Edit Cart", Value: "edit"},
		{Label: "Cancel", Value: "cancel"},
	})
}

// require guards an operation against being invoked outside its state.
func (f *Flow) require(op string, allowed ...State) error {
	for _, s := range allowed {
		if f.state == s {
			return nil
		}
	}
	return fmt.Errorf("chatflow: %s not allowed in state %s", op, f.state)
}

// bot appends one bot message and returns a copy of it.
func (f *Flow) bot(text string, actions []QuickAction) *Message {
	msg := Message{
		Role:      RoleBot,
		Text:      text,
		Actions:   actions,
		Timestamp: time.Now(),
	}
	f.messages = append(f.messages, msg)
	return &msg
}

// user appends one user message.
func (f *Flow) user(text string) {
	f.messages = append(f.messages, Message{
		Role:      RoleUser,
		Text:      text,
		Timestamp: time.Now(),
	})
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
