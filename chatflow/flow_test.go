package chatflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cartpilot/builder"
	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/instamart"
)

// fakeAuth is an in-memory Authenticator for flow tests.
type fakeAuth struct {
	addresses   []core.DeliveryAddress
	sendErr     error
	verifyErr   error
	addrErr     error
	sendCalls   int
	verifyCalls int
}

func (a *fakeAuth) SendOTP(_ context.Context, _ string) (*instamart.OTPResult, error) {
	a.sendCalls++
	if a.sendErr != nil {
		return &instamart.OTPResult{Success: false, Message: a.sendErr.Error()}, a.sendErr
	}
	return &instamart.OTPResult{Success: true, Message: "OTP sent"}, nil
}

func (a *fakeAuth) VerifyOTP(_ context.Context, _, _ string) (*instamart.AuthResult, error) {
	a.verifyCalls++
	if a.verifyErr != nil {
		return &instamart.AuthResult{Success: false, Error: a.verifyErr.Error()}, a.verifyErr
	}
	return &instamart.AuthResult{Success: true, AccessToken: "token-1"}, nil
}

func (a *fakeAuth) GetAddresses(_ context.Context, _ string) ([]core.DeliveryAddress, error) {
	if a.addrErr != nil {
		return nil, a.addrErr
	}
	return a.addresses, nil
}

func homeAddress() core.DeliveryAddress {
	return core.DeliveryAddress{ID: "addr-1", Label: "Home", Address: "12 MG Road", City: "Bengaluru", Pincode: "560001", IsDefault: true}
}

func flowRequest() builder.Request {
	return builder.Request{
		Items: []core.GroceryItem{
			{Name: "Milk", Quantity: "1", Unit: "l", Category: core.CategoryDairy},
			{Name: "Rice", Quantity: "2", Unit: "kg", Category: core.CategoryGrains},
		},
		FamilySize: 4,
	}
}

func noDelay(o *Options) { o.SettleDelay = 0 }

func loggedInFlow(t *testing.T, auth *fakeAuth) *Flow {
	t.Helper()

	f := NewFlow(auth, flowRequest(), noDelay, func(o *Options) {
		o.AccessToken = "token-1"
	})
	_, err := f.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateWelcome, f.State())
	return f
}

func TestFlowStartWithSessionSkipsLogin(t *testing.T) {
	auth := &fakeAuth{addresses: []core.DeliveryAddress{homeAddress()}}
	f := NewFlow(auth, flowRequest(), noDelay, func(o *Options) {
		o.AccessToken = "token-1"
	})

	msg, err := f.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateWelcome, f.State())
	require.Len(t, msg.Actions, 1)
	assert.Equal(t, "addr-1", msg.Actions[0].Value)
}

func TestFlowStartWithoutSessionAsksForLogin(t *testing.T) {
	f := NewFlow(&fakeAuth{}, flowRequest(), noDelay)

	msg, err := f.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateSwiggyLogin, f.State())
	assert.Contains(t, msg.Text, "phone")
}

func TestFlowStartRejectsEmptyList(t *testing.T) {
	f := NewFlow(&fakeAuth{}, builder.Request{}, noDelay)

	_, err := f.Start(context.Background())
	require.Error(t, err)

	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, core.ReasonEmptyGroceryList, vErr.Reason)
}

func TestFlowLoginHappyPath(t *testing.T) {
	auth := &fakeAuth{addresses: []core.DeliveryAddress{homeAddress()}}
	f := NewFlow(auth, flowRequest(), noDelay)

	_, err := f.Start(context.Background())
	require.NoError(t, err)

	_, err = f.SubmitPhone(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, StateSwiggyOTP, f.State())
	assert.Equal(t, 1, auth.sendCalls)

	_, err = f.SubmitOTP(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, StateWelcome, f.State())
}

func TestFlowRejectsInvalidPhoneLocally(t *testing.T) {
	auth := &fakeAuth{}
	f := NewFlow(auth, flowRequest(), noDelay)
	_, err := f.Start(context.Background())
	require.NoError(t, err)

	for _, phone := range []string{"12345", "98765432101", "98765abc10", ""} {
		_, err := f.SubmitPhone(context.Background(), phone)
		require.Error(t, err, phone)

		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, core.ReasonInvalidPhone, vErr.Reason)
	}

	// Validation never hit the remote service and the flow stayed put.
	assert.Zero(t, auth.sendCalls)
	assert.Equal(t, StateSwiggyLogin, f.State())
}

func TestFlowRejectsShortOTPLocally(t *testing.T) {
	auth := &fakeAuth{addresses: []core.DeliveryAddress{homeAddress()}}
	f := NewFlow(auth, flowRequest(), noDelay)
	_, err := f.Start(context.Background())
	require.NoError(t, err)
	_, err = f.SubmitPhone(context.Background(), "9876543210")
	require.NoError(t, err)

	_, err = f.SubmitOTP(context.Background(), "12345")
	require.Error(t, err)

	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, core.ReasonInvalidOTP, vErr.Reason)

	assert.Zero(t, auth.verifyCalls)
	assert.Equal(t, StateSwiggyOTP, f.State())
}

func TestFlowFailedVerificationStaysInOTP(t *testing.T) {
	auth := &fakeAuth{verifyErr: errors.New("wrong otp")}
	f := NewFlow(auth, flowRequest(), noDelay)
	_, err := f.Start(context.Background())
	require.NoError(t, err)
	_, err = f.SubmitPhone(context.Background(), "9876543210")
	require.NoError(t, err)

	_, err = f.SubmitOTP(context.Background(), "123456")
	require.Error(t, err)
	assert.Equal(t, StateSwiggyOTP, f.State())

	// The inline error is the latest bot message.
	msgs := f.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, RoleBot, last.Role)
	assert.Contains(t, last.Text, "didn't work")
}

func TestFlowVerifiedWithoutAddresses(t *testing.T) {
	auth := &fakeAuth{}
	f := NewFlow(auth, flowRequest(), noDelay)
	_, err := f.Start(context.Background())
	require.NoError(t, err)
	_, err = f.SubmitPhone(context.Background(), "9876543210")
	require.NoError(t, err)

	_, err = f.SubmitOTP(context.Background(), "123456")
	require.Error(t, err)

	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, core.ReasonNeedsAddress, vErr.Reason)

	// The OTP is spent; the conversation cannot recover.
	assert.Equal(t, StateError, f.State())
	assert.True(t, f.State().Terminal())
}

func TestFlowAddressLoadFailureIsTerminal(t *testing.T) {
	auth := &fakeAuth{addrErr: errors.New("service unavailable")}
	f := NewFlow(auth, flowRequest(), noDelay)
	_, err := f.Start(context.Background())
	require.NoError(t, err)
	_, err = f.SubmitPhone(context.Background(), "9876543210")
	require.NoError(t, err)

	_, err = f.SubmitOTP(context.Background(), "123456")
	require.Error(t, err)
	assert.Equal(t, StateError, f.State())

	// Terminal: no further operation is accepted, cancel included.
	_, err = f.Cancel()
	require.Error(t, err)
}

func TestFlowSelectAddressComputesEstimateBand(t *testing.T) {
	auth := &fakeAuth{addresses: []core.DeliveryAddress{homeAddress()}}
	f := loggedInFlow(t, auth)

	msg, err := f.SelectAddress("addr-1")
	require.NoError(t, err)

	assert.Equal(t, StateCartReview, f.State())
	require.NotNil(t, f.SelectedAddress())
	assert.Equal(t, "addr-1", f.SelectedAddress().ID)

	// Dairy 50 + grains 80 = 130; band is ±20%.
	assert.Equal(t, float64(104), f.Estimate().Min)
	assert.Equal(t, float64(156), f.Estimate().Max)
	assert.Contains(t, msg.Text, "104")
	assert.Contains(t, msg.Text, "156")
}

func TestFlowSelectUnknownAddress(t *testing.T) {
	auth := &fakeAuth{addresses: []core.DeliveryAddress{homeAddress()}}
	f := loggedInFlow(t, auth)

	_, err := f.SelectAddress("addr-nope")
	require.Error(t, err)

	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, core.ReasonNeedsAddress, vErr.Reason)
	assert.Equal(t, StateWelcome, f.State())
}

func TestFlowConfirmProducesHandoff(t *testing.T) {
	auth := &fakeAuth{addresses: []core.DeliveryAddress{homeAddress()}}
	f := loggedInFlow(t, auth)

	_, err := f.SelectAddress("addr-1")
	require.NoError(t, err)

	msg, err := f.ConfirmOrder(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateHandoff, f.State())
	require.Len(t, f.HandoffPrompts(), 1)
	assert.Contains(t, f.HandoffPrompts()[0], "Milk")
	assert.Contains(t, f.HandoffPrompts()[0], "Rice")
	require.Len(t, msg.Actions, 1)

	_, err = f.Finish()
	require.NoError(t, err)
	assert.Equal(t, StateComplete, f.State())
}

func TestFlowEditCartRoundTrip(t *testing.T) {
	auth := &fakeAuth{addresses: []core.DeliveryAddress{homeAddress()}}
	f := loggedInFlow(t, auth)

	_, err := f.SelectAddress("addr-1")
	require.NoError(t, err)

	msg, err := f.EditCart()
	require.NoError(t, err)
	assert.Equal(t, StateEditCart, f.State())
	assert.Contains(t, msg.Text, "Milk")

	_, err = f.BackToCart()
	require.NoError(t, err)
	assert.Equal(t, StateCartReview, f.State())
}

func TestFlowCancelFromAnyNonTerminalState(t *testing.T) {
	auth := &fakeAuth{addresses: []core.DeliveryAddress{homeAddress()}}
	f := loggedInFlow(t, auth)

	msg, err := f.Cancel()
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, f.State())
	assert.Contains(t, msg.Text, "cancelled")

	// Terminal: nothing else is allowed.
	_, err = f.Cancel()
	require.Error(t, err)
	_, err = f.SelectAddress("addr-1")
	require.Error(t, err)
}

func TestFlowMessagesAreAppendOnly(t *testing.T) {
	auth := &fakeAuth{addresses: []core.DeliveryAddress{homeAddress()}}
	f := loggedInFlow(t, auth)

	before := f.Messages()

	_, err := f.SelectAddress("addr-1")
	require.NoError(t, err)

	after := f.Messages()
	require.Greater(t, len(after), len(before))
	for i := range before {
		assert.Equal(t, before[i].Text, after[i].Text)
		assert.Equal(t, before[i].Role, after[i].Role)
	}

	// Each user-triggered transition records the user turn first.
	assert.Equal(t, RoleUser, after[len(after)-2].Role)
	assert.Equal(t, RoleBot, after[len(after)-1].Role)
}

func TestFlowOperationsGuardedByState(t *testing.T) {
	f := NewFlow(&fakeAuth{}, flowRequest(), noDelay)

	_, err := f.SubmitPhone(context.Background(), "9876543210")
	require.Error(t, err)
	_, err = f.SubmitOTP(context.Background(), "123456")
	require.Error(t, err)
	_, err = f.ConfirmOrder(context.Background())
	require.Error(t, err)
}

func TestHandoffPromptsBatchLargeLists(t *testing.T) {
	items := make([]core.GroceryItem, 0, 12)
	for i := 0; i < 6; i++ {
		items = append(items, core.GroceryItem{Name: fmt.Sprintf("Veg %d", i), Quantity: "1", Unit: "kg", Category: core.CategoryVegetables})
	}
	for i := 0; i < 6; i++ {
		items = append(items, core.GroceryItem{Name: fmt.Sprintf("Fruit %d", i), Quantity: "1", Unit: "kg", Category: core.CategoryFruits})
	}

	prompts := HandoffPrompts(builder.Request{Items: items, FamilySize: 2})
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "Veg 0")
	assert.NotContains(t, prompts[0], "Fruit 0")
	assert.Contains(t, prompts[1], "Fruit 0")
}

func TestHandoffPromptsSmallListStaysSingle(t *testing.T) {
	prompts := HandoffPrompts(flowRequest())
	require.Len(t, prompts, 1)
}
