package lnurl

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// hrp is the human-readable part of bech32-encoded LNURLs.
const hrp = "lnurl"

// Encode encodes a URL into its bech32 LNURL form, uppercased for efficient
// QR encoding.
func Encode(url string) (string, error) {
	converted, err := bech32.ConvertBits([]byte(url), 8, 5, true)
	if err != nil {
		return "", err
	}

	encoded, err := bech32.Encode(hrp, converted)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(encoded), nil
}

// Decode decodes a bech32 LNURL back into the URL it wraps. LNURLs routinely
// exceed the 90 character bech32 limit, so no length limit is applied.
func Decode(lnurl string) (string, error) {
	prefix, data, err := bech32.DecodeNoLimit(strings.ToLower(lnurl))
	if err != nil {
		return "", err
	}
	if prefix != hrp {
		return "", fmt.Errorf("unexpected bech32 prefix %q", prefix)
	}

	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}
	return string(converted), nil
}
