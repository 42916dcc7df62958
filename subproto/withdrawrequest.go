package subproto

import (
	"context"
	"strconv"
	"strings"

	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lnurld/lnurld/lnnode"
	"github.com/lnurld/lnurld/secrets"
)

const (
	// TagWithdrawRequest is the withdrawRequest subprotocol tag.
	TagWithdrawRequest = "withdrawRequest"

	fieldMinWithdrawable    = "minWithdrawable"
	fieldMaxWithdrawable    = "maxWithdrawable"
	fieldDefaultDescription = "defaultDescription"
	fieldPaymentRequest     = "pr"
)

// WithdrawRequest implements the withdrawRequest subprotocol: the secret
// binds a withdrawable amount range (in millisatoshis) that a wallet resolves
// by submitting one or more invoices for the node to pay.
type WithdrawRequest struct{}

// A compile time check to ensure WithdrawRequest implements the Subprotocol
// interface.
var _ Subprotocol = (*WithdrawRequest)(nil)

// Tag returns the subprotocol tag.
//
// NOTE: Part of the Subprotocol interface.
func (w *WithdrawRequest) Tag() string {
	return TagWithdrawRequest
}

// ValidateCreate checks the withdrawal range parameters.
//
// NOTE: Part of the Subprotocol interface.
func (w *WithdrawRequest) ValidateCreate(params Params) (Params, error) {
	required := []string{
		fieldMinWithdrawable, fieldMaxWithdrawable,
		fieldDefaultDescription,
	}
	for _, field := range required {
		if !params.Has(field) {
			return nil, ErrMissingParam(field)
		}
	}

	minAmt, err := strconv.ParseInt(params[fieldMinWithdrawable], 10, 64)
	if err != nil {
		return nil, ErrIntegerExpected(fieldMinWithdrawable)
	}
	maxAmt, err := strconv.ParseInt(params[fieldMaxWithdrawable], 10, 64)
	if err != nil {
		return nil, ErrIntegerExpected(fieldMaxWithdrawable)
	}

	if minAmt <= 0 {
		return nil, ErrGreaterThanZero(fieldMinWithdrawable)
	}
	if maxAmt < minAmt {
		return nil, ErrFieldOrdering(
			fieldMaxWithdrawable, fieldMinWithdrawable,
		)
	}

	return Params{
		fieldMinWithdrawable:    params[fieldMinWithdrawable],
		fieldMaxWithdrawable:    params[fieldMaxWithdrawable],
		fieldDefaultDescription: params[fieldDefaultDescription],
	}, nil
}

// WithdrawInfo is the wallet-facing info response for a withdrawRequest
// secret. The amounts are in millisatoshis.
type WithdrawInfo struct {
	MinWithdrawable    int64  `json:"minWithdrawable"`
	MaxWithdrawable    int64  `json:"maxWithdrawable"`
	DefaultDescription string `json:"defaultDescription"`
	Callback           string `json:"callback"`
	K1                 string `json:"k1"`
	Tag                string `json:"tag"`
}

// Info echoes the withdrawal range bound to the secret.
//
// NOTE: Part of the Subprotocol interface.
func (w *WithdrawRequest) Info(_ context.Context, secret *secrets.Secret,
	callback string, _ lnnode.Backend) (interface{}, error) {

	minAmt, err := strconv.ParseInt(
		secret.Params[fieldMinWithdrawable], 10, 64,
	)
	if err != nil {
		return nil, err
	}
	maxAmt, err := strconv.ParseInt(
		secret.Params[fieldMaxWithdrawable], 10, 64,
	)
	if err != nil {
		return nil, err
	}

	return &WithdrawInfo{
		MinWithdrawable:    minAmt,
		MaxWithdrawable:    maxAmt,
		DefaultDescription: secret.Params[fieldDefaultDescription],
		Callback:           callback,
		K1:                 secret.Token,
		Tag:                TagWithdrawRequest,
	}, nil
}

// ValidateAction decodes the submitted invoices and checks that their total
// amount falls within the withdrawable range bound to the secret. The range
// check runs against the sum over all invoices, not each invoice
// individually, and must pass before any payment is attempted.
//
// NOTE: Part of the Subprotocol interface.
func (w *WithdrawRequest) ValidateAction(ctx context.Context,
	secret *secrets.Secret, params Params, backend lnnode.Backend) error {

	if !params.Has(fieldPaymentRequest) ||
		params[fieldPaymentRequest] == "" {

		return ErrMissingParam(fieldPaymentRequest)
	}

	var total lnwire.MilliSatoshi
	for _, invoice := range splitInvoices(params[fieldPaymentRequest]) {
		decoded, err := backend.DecodeInvoice(ctx, invoice)
		if err != nil {
			log.Debugf("Failed to decode invoice %q: %v",
				invoice, err)
			return NewValidationError("Invalid parameter (%q): "+
				"Lightning payment request expected",
				fieldPaymentRequest)
		}
		total += decoded.AmountMsat
	}

	minAmt, err := strconv.ParseInt(
		secret.Params[fieldMinWithdrawable], 10, 64,
	)
	if err != nil {
		return err
	}
	maxAmt, err := strconv.ParseInt(
		secret.Params[fieldMaxWithdrawable], 10, 64,
	)
	if err != nil {
		return err
	}

	if total < lnwire.MilliSatoshi(minAmt) {
		return NewValidationError("Amount in invoice(s) must be "+
			"greater than or equal to %q", fieldMinWithdrawable)
	}
	if total > lnwire.MilliSatoshi(maxAmt) {
		return NewValidationError("Amount in invoice(s) must be "+
			"less than or equal to %q", fieldMaxWithdrawable)
	}

	return nil
}

// Action pays the submitted invoices in the order supplied. The first failed
// payment aborts the action; invoices after it are not attempted.
//
// NOTE: Part of the Subprotocol interface.
func (w *WithdrawRequest) Action(ctx context.Context, _ *secrets.Secret,
	params Params, backend lnnode.Backend) error {

	for _, invoice := range splitInvoices(params[fieldPaymentRequest]) {
		if err := backend.PayInvoice(ctx, invoice); err != nil {
			return err
		}
	}
	return nil
}

// splitInvoices splits the pr parameter into its comma-separated invoices.
func splitInvoices(pr string) []string {
	return strings.Split(pr, ",")
}
