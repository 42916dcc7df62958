package subproto

import (
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/lnurld/lnurld/lnnode"
	"github.com/lnurld/lnurld/secrets"
)

const (
	// TagLogin is the login subprotocol tag.
	TagLogin = "login"

	fieldSig = "sig"
	fieldKey = "key"
)

var (
	// errLoginInstructions is the fixed instructional error returned
	// whenever a login secret is resolved without a complete signature
	// querystring. Login secrets have no natural info representation.
	errLoginInstructions = NewValidationError("Invalid request. " +
		"Expected querystring as follows: " +
		"k1=SECRET&sig=SIGNATURE&key=LINKING_PUBKEY")

	// errInvalidLoginSignature is returned when the submitted signature
	// does not verify against the linking key and the secret's token.
	errInvalidLoginSignature = NewValidationError("Invalid signature")
)

// Login implements the login subprotocol (LNURL-auth). A login secret carries
// no parameters; resolving it proves control of the private key behind the
// submitted linking key by signing the secret's own token. No node action is
// performed.
type Login struct{}

// A compile time check to ensure Login implements the Subprotocol interface.
var _ Subprotocol = (*Login)(nil)

// Tag returns the subprotocol tag.
//
// NOTE: Part of the Subprotocol interface.
func (l *Login) Tag() string {
	return TagLogin
}

// ValidateCreate accepts the empty parameter set; login secrets bind no
// creation-time parameters.
//
// NOTE: Part of the Subprotocol interface.
func (l *Login) ValidateCreate(_ Params) (Params, error) {
	return Params{}, nil
}

// Info returns the fixed instructional error: login has no info response.
//
// NOTE: Part of the Subprotocol interface.
func (l *Login) Info(_ context.Context, _ *secrets.Secret, _ string,
	_ lnnode.Backend) (interface{}, error) {

	return nil, errLoginInstructions
}

// ValidateAction verifies that sig is a valid DER-encoded secp256k1 ECDSA
// signature by key over the secret's token interpreted as raw bytes. A
// failed verification does not consume the secret.
//
// NOTE: Part of the Subprotocol interface.
func (l *Login) ValidateAction(_ context.Context, secret *secrets.Secret,
	params Params, _ lnnode.Backend) error {

	if params[fieldSig] == "" || params[fieldKey] == "" {
		return errLoginInstructions
	}

	keyBytes, err := hex.DecodeString(params[fieldKey])
	if err != nil {
		return errInvalidLoginSignature
	}
	linkingKey, err := btcec.ParsePubKey(keyBytes)
	if err != nil {
		return errInvalidLoginSignature
	}

	sigBytes, err := hex.DecodeString(params[fieldSig])
	if err != nil {
		return errInvalidLoginSignature
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return errInvalidLoginSignature
	}

	// The signed message is the raw token itself, not a hash of it.
	token, err := hex.DecodeString(secret.Token)
	if err != nil {
		return err
	}
	if !sig.Verify(token, linkingKey) {
		log.Debugf("Login signature mismatch for key %v",
			params[fieldKey])
		return errInvalidLoginSignature
	}

	log.Infof("Login verified for linking key %v", params[fieldKey])

	return nil
}

// Action is a no-op: a successful login only confirms that the caller
// controls the linking key's private counterpart.
//
// NOTE: Part of the Subprotocol interface.
func (l *Login) Action(_ context.Context, _ *secrets.Secret, _ Params,
	_ lnnode.Backend) error {

	return nil
}
