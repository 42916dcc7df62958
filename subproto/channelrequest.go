package subproto

import (
	"context"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lnurld/lnurld/lnnode"
	"github.com/lnurld/lnurld/secrets"
)

const (
	// TagChannelRequest is the channelRequest subprotocol tag.
	TagChannelRequest = "channelRequest"

	// We use field names in our errors for the exact contract strings.
	// Create consts for them here so that we can exactly match in our
	// unit tests.
	fieldLocalAmt = "localAmt"
	fieldPushAmt  = "pushAmt"
	fieldRemoteID = "remoteid"
	fieldPrivate  = "private"
)

// ChannelRequest implements the channelRequest subprotocol: the secret binds
// a channel offer (local and pushed amount, in satoshis) that a wallet
// resolves to have the node open a channel back to it.
type ChannelRequest struct{}

// A compile time check to ensure ChannelRequest implements the Subprotocol
// interface.
var _ Subprotocol = (*ChannelRequest)(nil)

// Tag returns the subprotocol tag.
//
// NOTE: Part of the Subprotocol interface.
func (c *ChannelRequest) Tag() string {
	return TagChannelRequest
}

// ValidateCreate checks the channel offer parameters.
//
// NOTE: Part of the Subprotocol interface.
func (c *ChannelRequest) ValidateCreate(params Params) (Params, error) {
	for _, field := range []string{fieldLocalAmt, fieldPushAmt} {
		if !params.Has(field) {
			return nil, ErrMissingParam(field)
		}
	}

	localAmt, err := strconv.ParseInt(params[fieldLocalAmt], 10, 64)
	if err != nil {
		return nil, ErrIntegerExpected(fieldLocalAmt)
	}
	pushAmt, err := strconv.ParseInt(params[fieldPushAmt], 10, 64)
	if err != nil {
		return nil, ErrIntegerExpected(fieldPushAmt)
	}

	if localAmt <= 0 {
		return nil, ErrGreaterThanZero(fieldLocalAmt)
	}
	if pushAmt < 0 {
		return nil, ErrGreaterThanOrEqualZero(fieldPushAmt)
	}
	if localAmt < pushAmt {
		return nil, ErrFieldOrdering(fieldLocalAmt, fieldPushAmt)
	}

	return Params{
		fieldLocalAmt: params[fieldLocalAmt],
		fieldPushAmt:  params[fieldPushAmt],
	}, nil
}

// ChannelInfo is the wallet-facing info response for a channelRequest secret.
type ChannelInfo struct {
	URI      string `json:"uri"`
	Callback string `json:"callback"`
	K1       string `json:"k1"`
	Tag      string `json:"tag"`
}

// Info reports the node URI the wallet should connect to before requesting
// the channel open.
//
// NOTE: Part of the Subprotocol interface.
func (c *ChannelRequest) Info(ctx context.Context, secret *secrets.Secret,
	callback string, backend lnnode.Backend) (interface{}, error) {

	uri, err := backend.NodeURI(ctx)
	if err != nil {
		return nil, err
	}

	return &ChannelInfo{
		URI:      uri,
		Callback: callback,
		K1:       secret.Token,
		Tag:      TagChannelRequest,
	}, nil
}

// ValidateAction checks the wallet-supplied open parameters.
//
// NOTE: Part of the Subprotocol interface.
func (c *ChannelRequest) ValidateAction(_ context.Context,
	_ *secrets.Secret, params Params, _ lnnode.Backend) error {

	if !params.Has(fieldRemoteID) || params[fieldRemoteID] == "" {
		return ErrMissingParam(fieldRemoteID)
	}

	// The private flag is optional but must be an integer when present.
	if params.Has(fieldPrivate) {
		if _, err := strconv.ParseInt(
			params[fieldPrivate], 10, 64,
		); err != nil {
			return ErrIntegerExpected(fieldPrivate)
		}
	}

	return nil
}

// Action opens the channel with the amounts bound to the secret.
//
// NOTE: Part of the Subprotocol interface.
func (c *ChannelRequest) Action(ctx context.Context, secret *secrets.Secret,
	params Params, backend lnnode.Backend) error {

	localAmt, err := strconv.ParseInt(secret.Params[fieldLocalAmt], 10, 64)
	if err != nil {
		return err
	}
	pushAmt, err := strconv.ParseInt(secret.Params[fieldPushAmt], 10, 64)
	if err != nil {
		return err
	}

	private := params[fieldPrivate] == "1"

	return backend.OpenChannel(
		ctx, params[fieldRemoteID], btcutil.Amount(localAmt),
		btcutil.Amount(pushAmt), private,
	)
}
