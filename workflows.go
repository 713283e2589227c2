package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Per-workflow tables mapping client-error statuses to guidance. 401 and
// 429 are handled uniformly by classifyStatus before these are consulted.
var (
	loginMessages = map[int]string{
		400: "Invalid phone number or PIN. Double-check your credentials.",
		404: "No merchant account found for that phone number.",
	}
	verifyMessages = map[int]string{
		400: "The portal rejected that national ID. Check the 16 digits and try again.",
		404: "No customer is registered under that national ID.",
	}
	profileMessages = map[int]string{
		404: "No merchant profile is registered for this account.",
	}
	productsMessages = map[int]string{
		404: "No product stock is registered for this merchant.",
	}
	transactionMessages = map[int]string{
		400: "The portal rejected the order. The quantity may exceed the customer's remaining quota.",
		404: "The portal could not find the customer or product for this order.",
	}
)

// Workflows implements the portal's business operations as short linear
// state machines over a Driver: navigate, fill, act, await the matching
// XHR response, validate its status, transform its body. Every failure is
// returned as a classified *WorkflowError value, never an exception-style
// propagation, so callers branch on the kind.
type Workflows struct {
	config *Config
	auth   *AuthManager
	logger *zap.Logger
}

func NewWorkflows(config *Config, logger *zap.Logger) *Workflows {
	return &Workflows{
		config: config,
		auth:   NewAuthManager(config, logger),
		logger: logger,
	}
}

func (w *Workflows) establish(drv Driver, session *Session) *WorkflowError {
	if err := w.auth.EstablishSession(drv, session); err != nil {
		return browserErr("establish session", err)
	}
	return nil
}

// Login submits credentials on the login form and turns the intercepted
// login response plus the browser's cookie jar into a new Session. The
// caller decides whether to persist it; nothing is written on failure.
func (w *Workflows) Login(drv Driver, phoneNumber, pin string) (*Session, error) {
	if !isValidPhoneNumber(phoneNumber) {
		return nil, validationErr("Phone number must be 10 to 13 digits without a country code prefix.")
	}
	if !isValidPIN(pin) {
		return nil, validationErr("PIN must be exactly 6 digits.")
	}

	if err := drv.Navigate(w.config.LoginURL); err != nil {
		return nil, browserErr("open login page", err)
	}
	// The login form mounts asynchronously after the document load event.
	time.Sleep(w.config.LoginSettleDelay())

	sel := w.config.Selectors
	if err := drv.FillField(sel.PhoneNumberField, phoneNumber); err != nil {
		return nil, browserErr("fill phone number", err)
	}
	if err := drv.FillField(sel.PINField, pin); err != nil {
		return nil, browserErr("fill pin", err)
	}

	wait := drv.ExpectResponse(matchEndpoint(w.config.Endpoints.Login))
	if err := drv.Click(sel.LoginSubmit); err != nil {
		return nil, browserErr("submit login", err)
	}

	resp, err := wait()
	if err != nil {
		return nil, coerceWorkflowErr(err)
	}
	if !resp.OK() {
		return nil, classifyStatus(resp.Status, loginMessages)
	}

	data, err := decodeResponse[loginData](resp.Body)
	if err != nil {
		return nil, &WorkflowError{Kind: ErrKindRemote, Message: "The portal returned an unreadable login response.", cause: err}
	}

	cookies, err := drv.Cookies()
	if err != nil {
		return nil, browserErr("extract cookies", err)
	}

	w.logger.Info("login succeeded", zap.String("merchant_type", data.MyptmMerchantType))
	return sessionFromLogin(data, cookies), nil
}

// Logout drives the portal's logout UI: the menu entry, then the dialog
// confirmation. There is no response body to parse; success is the absence
// of a failure.
func (w *Workflows) Logout(drv Driver, session *Session) error {
	if e := w.establish(drv, session); e != nil {
		return e
	}
	if err := drv.Navigate(w.config.VerificationURL); err != nil {
		return browserErr("open verification page", err)
	}
	if err := w.auth.DetectExpiry(drv, w.config.VerificationURL); err != nil {
		return err
	}

	sel := w.config.Selectors
	if err := drv.Click(sel.LogoutMenu); err != nil {
		return browserErr("open logout menu", err)
	}
	if err := drv.Click(sel.LogoutDialog); err != nil {
		return browserErr("confirm logout", err)
	}

	w.logger.Info("logout succeeded", zap.String("session", session.ID))
	return nil
}

// GetProfile fetches the merchant registration info. The profile XHR fires
// during the page load, so the wait is registered before navigating.
func (w *Workflows) GetProfile(drv Driver, session *Session) (*Profile, error) {
	if e := w.establish(drv, session); e != nil {
		return nil, e
	}

	wait := drv.ExpectResponse(matchEndpoint(w.config.Endpoints.Profile))
	if err := drv.Navigate(w.config.ProfileURL); err != nil {
		return nil, browserErr("open profile page", err)
	}
	if err := w.auth.DetectExpiry(drv, w.config.ProfileURL); err != nil {
		return nil, err
	}

	resp, err := wait()
	if err != nil {
		return nil, coerceWorkflowErr(err)
	}
	if !resp.OK() {
		return nil, classifyStatus(resp.Status, profileMessages)
	}

	data, err := decodeResponse[profileData](resp.Body)
	if err != nil {
		return nil, &WorkflowError{Kind: ErrKindRemote, Message: "The portal returned an unreadable profile response.", cause: err}
	}
	return profileFromResponse(data), nil
}

// GetStock fetches the current product stock snapshot.
func (w *Workflows) GetStock(drv Driver, session *Session) (*Product, error) {
	if e := w.establish(drv, session); e != nil {
		return nil, e
	}

	wait := drv.ExpectResponse(matchEndpoint(w.config.Endpoints.Products))
	if err := drv.Navigate(w.config.ManageProductURL); err != nil {
		return nil, browserErr("open manage product page", err)
	}
	if err := w.auth.DetectExpiry(drv, w.config.ManageProductURL); err != nil {
		return nil, err
	}

	resp, err := wait()
	if err != nil {
		return nil, coerceWorkflowErr(err)
	}
	if !resp.OK() {
		return nil, classifyStatus(resp.Status, productsMessages)
	}

	data, err := decodeResponse[productData](resp.Body)
	if err != nil {
		return nil, &WorkflowError{Kind: ErrKindRemote, Message: "The portal returned an unreadable stock response.", cause: err}
	}
	return productFromResponse(data), nil
}

// VerifyCustomer checks a national ID's eligibility. The response wait is
// keyed to the submitted ID so a stale verify response for a different ID
// can never satisfy it.
func (w *Workflows) VerifyCustomer(drv Driver, session *Session, nationalityID string) (*Customer, error) {
	if !isValidNationalityID(nationalityID) {
		return nil, validationErr("National ID must be exactly 16 digits, got %q.", nationalityID)
	}

	if e := w.establish(drv, session); e != nil {
		return nil, e
	}
	if err := drv.Navigate(w.config.VerificationURL); err != nil {
		return nil, browserErr("open verification page", err)
	}
	if err := w.auth.DetectExpiry(drv, w.config.VerificationURL); err != nil {
		return nil, err
	}

	sel := w.config.Selectors
	if err := drv.FillField(sel.NationalityIDField, nationalityID); err != nil {
		return nil, browserErr("fill national id", err)
	}

	wait := drv.ExpectResponse(matchEndpointQuery(w.config.Endpoints.VerifyCustomer, "nationalityId", nationalityID))
	if err := drv.Click(sel.CheckButton); err != nil {
		return nil, browserErr("submit national id", err)
	}

	resp, err := wait()
	if err != nil {
		return nil, coerceWorkflowErr(err)
	}
	if !resp.OK() {
		return nil, classifyStatus(resp.Status, verifyMessages)
	}

	data, err := decodeResponse[verifyData](resp.Body)
	if err != nil {
		return nil, &WorkflowError{Kind: ErrKindRemote, Message: "The portal returned an unreadable verification response.", cause: err}
	}
	return customerFromVerify(data, nationalityID), nil
}

// CreateOrder redeems a quantity against a customer's quota. The customer
// is re-verified inline, the quantity is validated against the fresh quota
// before any stepper click, and the transaction response is merged with
// the local customer and product context.
func (w *Workflows) CreateOrder(drv Driver, session *Session, req OrderRequest) (*Order, error) {
	if !isValidNationalityID(req.NationalityID) {
		return nil, validationErr("National ID must be exactly 16 digits, got %q.", req.NationalityID)
	}
	if req.Quantity < 1 || req.Quantity > maxOrderQuantity {
		return nil, validationErr("Order quantity must be between 1 and %d, got %d.", maxOrderQuantity, req.Quantity)
	}

	customer, err := w.VerifyCustomer(drv, session, req.NationalityID)
	if err != nil {
		return nil, err
	}

	if !isValidOrderQuantity(req.Quantity, customer.Quota.Remaining) {
		return nil, validationErr("Order quantity %d exceeds the customer's remaining quota of %d.",
			req.Quantity, customer.Quota.Remaining)
	}

	if err := w.selectCustomerType(drv, customer, req.CustomerType); err != nil {
		return nil, err
	}

	// The stepper starts at quantity 1.
	sel := w.config.Selectors
	for i := 1; i < req.Quantity; i++ {
		if err := drv.Click(sel.QuantityStepper); err != nil {
			return nil, browserErr("increment quantity", err)
		}
	}

	wait := drv.ExpectResponse(matchEndpoint(w.config.Endpoints.Transactions))
	if err := drv.Click(sel.ConfirmButton); err != nil {
		return nil, browserErr("confirm order", err)
	}
	if err := drv.Click(sel.PayButton); err != nil {
		return nil, browserErr("pay order", err)
	}

	resp, err := wait()
	if err != nil {
		return nil, coerceWorkflowErr(err)
	}
	if !resp.OK() {
		return nil, classifyStatus(resp.Status, transactionMessages)
	}

	data, err := decodeResponse[transactionData](resp.Body)
	if err != nil {
		return nil, &WorkflowError{Kind: ErrKindRemote, Message: "The portal returned an unreadable transaction response.", cause: err}
	}

	w.logger.Info("order created",
		zap.String("transaction", data.TransactionID),
		zap.String("customer", customer.NationalityID),
		zap.Int("quantity", req.Quantity))
	return orderFromTransaction(data, customer, w.config.ProductID, w.config.ProductName, req.Quantity), nil
}

// selectCustomerType picks the eligibility radio only when the portal
// renders a choice, which it does exactly when the customer carries two
// eligible types. A single type needs no selection. More than two is a
// portal state this client has never observed, so it refuses rather than
// guess a radio selector.
func (w *Workflows) selectCustomerType(drv Driver, customer *Customer, requested string) error {
	if len(customer.Types) < 2 {
		return nil
	}
	if len(customer.Types) > 2 {
		return &WorkflowError{
			Kind: ErrKindRemote,
			Message: fmt.Sprintf("Customer %s carries %d eligible types; unable to determine which to order under.",
				customer.NationalityID, len(customer.Types)),
		}
	}

	chosen := customer.Types[0]
	if requested != "" {
		found := false
		for _, t := range customer.Types {
			if string(t) == requested {
				chosen = t
				found = true
				break
			}
		}
		if !found {
			return validationErr("Customer %s is not eligible as %q.", customer.NationalityID, requested)
		}
	}

	selector := fmt.Sprintf(w.config.Selectors.CustomerTypeRadio, chosen)
	if err := drv.Click(selector); err != nil {
		return browserErr("select customer type", err)
	}
	return nil
}
