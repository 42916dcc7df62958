package subproto

import (
	"context"
	"errors"
	"testing"

	"github.com/lnurld/lnurld/secrets"
	"github.com/stretchr/testify/require"
)

// withdrawSecret returns a secret allowing withdrawals of 1000 to 5000 msat.
func withdrawSecret() *secrets.Secret {
	return &secrets.Secret{
		Token: "ddeeff",
		Tag:   TagWithdrawRequest,
		Params: map[string]string{
			"minWithdrawable":    "1000",
			"maxWithdrawable":    "5000",
			"defaultDescription": "test withdrawal",
		},
	}
}

// TestWithdrawRequestValidateCreate exercises the creation-time validation
// order and contract error strings.
func TestWithdrawRequestValidateCreate(t *testing.T) {
	t.Parallel()

	sub := &WithdrawRequest{}

	valid := Params{
		"minWithdrawable":    "1000",
		"maxWithdrawable":    "5000",
		"defaultDescription": "",
	}

	tests := []struct {
		name   string
		params Params
		err    string
	}{{
		name: "missing minWithdrawable",
		params: Params{
			"maxWithdrawable":    "5000",
			"defaultDescription": "",
		},
		err: `Missing required parameter: "minWithdrawable"`,
	}, {
		name: "missing defaultDescription",
		params: Params{
			"minWithdrawable": "1000",
			"maxWithdrawable": "5000",
		},
		err: `Missing required parameter: "defaultDescription"`,
	}, {
		name: "non integer maxWithdrawable",
		params: Params{
			"minWithdrawable":    "1000",
			"maxWithdrawable":    "lots",
			"defaultDescription": "",
		},
		err: `Invalid parameter ("maxWithdrawable"): Integer expected`,
	}, {
		name: "zero minWithdrawable",
		params: Params{
			"minWithdrawable":    "0",
			"maxWithdrawable":    "5000",
			"defaultDescription": "",
		},
		err: `"minWithdrawable" must be greater than zero`,
	}, {
		name: "max below min",
		params: Params{
			"minWithdrawable":    "1000",
			"maxWithdrawable":    "999",
			"defaultDescription": "",
		},
		err: `"maxWithdrawable" must be greater than or equal to ` +
			`"minWithdrawable"`,
	}, {
		name:   "valid with empty description",
		params: valid,
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			validated, err := sub.ValidateCreate(test.params)
			if test.err != "" {
				require.EqualError(t, err, test.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.params, validated)
		})
	}
}

// TestWithdrawRequestAmountRange asserts that the invoice amount check runs
// against the sum over all invoices and makes zero payment calls when it
// fails.
func TestWithdrawRequestAmountRange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sub := &WithdrawRequest{}
	secret := withdrawSecret()

	tests := []struct {
		name     string
		invoices map[string]int64
		pr       string
		err      string
	}{{
		name:     "sum below minimum",
		invoices: map[string]int64{"inv1": 500, "inv2": 499},
		pr:       "inv1,inv2",
		err: `Amount in invoice(s) must be greater than or equal ` +
			`to "minWithdrawable"`,
	}, {
		name:     "sum above maximum",
		invoices: map[string]int64{"inv1": 3000, "inv2": 2001},
		pr:       "inv1,inv2",
		err: `Amount in invoice(s) must be less than or equal to ` +
			`"maxWithdrawable"`,
	}, {
		name:     "single invoice below minimum",
		invoices: map[string]int64{"inv1": 999},
		pr:       "inv1",
		err: `Amount in invoice(s) must be greater than or equal ` +
			`to "minWithdrawable"`,
	}, {
		name:     "sum exactly at minimum",
		invoices: map[string]int64{"inv1": 600, "inv2": 400},
		pr:       "inv1,inv2",
	}, {
		name:     "sum exactly at maximum",
		invoices: map[string]int64{"inv1": 5000},
		pr:       "inv1",
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			backend := newMockBackend()
			for invoice, amount := range test.invoices {
				backend.addInvoice(invoice, amount)
			}

			err := sub.ValidateAction(ctx, secret, Params{
				"pr": test.pr,
			}, backend)
			if test.err != "" {
				require.EqualError(t, err, test.err)
			} else {
				require.NoError(t, err)
			}

			// Validation never pays anything.
			require.Zero(t, backend.numPayments())
		})
	}
}

// TestWithdrawRequestValidateActionMissingPr asserts the pr parameter is
// required.
func TestWithdrawRequestValidateActionMissingPr(t *testing.T) {
	t.Parallel()

	sub := &WithdrawRequest{}
	err := sub.ValidateAction(
		context.Background(), withdrawSecret(), Params{},
		newMockBackend(),
	)
	require.EqualError(t, err, `Missing required parameter: "pr"`)
}

// TestWithdrawRequestAction asserts invoices are paid in the order supplied
// and that the first failure stops further payments.
func TestWithdrawRequestAction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sub := &WithdrawRequest{}
	secret := withdrawSecret()

	backend := newMockBackend()
	backend.addInvoice("inv1", 600)
	backend.addInvoice("inv2", 400)

	params := Params{"pr": "inv1,inv2"}
	require.NoError(t, sub.ValidateAction(ctx, secret, params, backend))
	require.NoError(t, sub.Action(ctx, secret, params, backend))
	require.Equal(t, []string{"inv1", "inv2"}, backend.paidInvoices)

	// With the backend failing payments, the action fails and no further
	// invoices are attempted.
	failing := newMockBackend()
	failing.addInvoice("inv1", 600)
	failing.addInvoice("inv2", 400)
	failing.payErr = errors.New("no route")

	require.NoError(t, sub.ValidateAction(ctx, secret, params, failing))
	require.Error(t, sub.Action(ctx, secret, params, failing))
	require.Zero(t, failing.numPayments())
}
