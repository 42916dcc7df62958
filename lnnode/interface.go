package lnnode

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
)

// DecodedInvoice is the result of decoding a BOLT11 payment request.
type DecodedInvoice struct {
	// AmountMsat is the amount the invoice asks for. Zero for amountless
	// invoices.
	AmountMsat lnwire.MilliSatoshi

	// PaymentHash is the hex-encoded payment hash.
	PaymentHash string

	// Description is the invoice description, if any.
	Description string
}

// Backend is the uniform capability surface the dispatch engine requires from
// a Lightning node implementation. Exactly one backend is selected by
// configuration; the engine holds no backend-specific logic.
type Backend interface {
	// NodeURI returns the node's public URI (pubkey@host:port), used in
	// channelRequest info responses.
	NodeURI(ctx context.Context) (string, error)

	// OpenChannel opens a channel to the node identified by the given
	// hex-encoded public key, funding it with localAmt and pushing pushAmt
	// to the remote side.
	OpenChannel(ctx context.Context, remoteID string, localAmt,
		pushAmt btcutil.Amount, private bool) error

	// PayInvoice pays the given BOLT11 invoice.
	PayInvoice(ctx context.Context, invoice string) error

	// DecodeInvoice decodes the given BOLT11 invoice.
	DecodeInvoice(ctx context.Context,
		invoice string) (*DecodedInvoice, error)
}
