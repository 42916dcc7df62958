package lnauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidSignature is the only error surfaced by VerifyRequest.
	// Unknown key IDs, malformed or stale timestamps, missing nonces and
	// signature mismatches are deliberately indistinguishable so that the
	// endpoint cannot be used as an oracle to enumerate key IDs or probe
	// the clock window.
	ErrInvalidSignature = errors.New("Invalid API key signature")
)

// CanonicalQueryString builds the string that request signatures commit to:
// every parameter except the signature itself, sorted lexicographically by
// key, URL-encoded and concatenated as key=value&key=value.
func CanonicalQueryString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "s" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, url.QueryEscape(key)+"="+
			url.QueryEscape(params[key]))
	}
	return strings.Join(pairs, "&")
}

// Sign computes the hex-encoded HMAC-SHA256 of the payload under the given
// key secret.
func Sign(key []byte, payload string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignQuery signs a set of query parameters with the given API key, filling
// in the id parameter and returning the hex signature to be sent as "s". The
// caller is expected to have set the nonce (n) and timestamp (t) parameters.
func SignQuery(apiKey *APIKey, params map[string]string) string {
	params["id"] = apiKey.ID
	return Sign(apiKey.Key, CanonicalQueryString(params))
}

// Verifier checks API-key signed requests against a set of known keys and a
// timestamp freshness window. It is stateless and safe for concurrent use.
type Verifier struct {
	keys map[string]*APIKey

	// timeThreshold is the maximum allowed skew between the signed
	// timestamp parameter and the server clock.
	timeThreshold time.Duration
}

// NewVerifier creates a Verifier for the given API keys.
func NewVerifier(keys []*APIKey, timeThreshold time.Duration) *Verifier {
	keyMap := make(map[string]*APIKey, len(keys))
	for _, key := range keys {
		keyMap[key.ID] = key
	}
	return &Verifier{
		keys:          keyMap,
		timeThreshold: timeThreshold,
	}
}

// VerifyRequest checks the signature, timestamp and nonce of a signed request
// given the current time. Any failure is reported as ErrInvalidSignature; the
// specific cause is only logged at debug level.
func (v *Verifier) VerifyRequest(params map[string]string,
	now time.Time) error {

	apiKey, ok := v.keys[params["id"]]
	if !ok {
		log.Debugf("Signed request with unknown api key id %q",
			params["id"])
		return ErrInvalidSignature
	}

	// A nonce must be present even though no replay cache is kept; replay
	// exposure is bounded by the timestamp window below.
	if params["n"] == "" {
		log.Debug("Signed request missing nonce")
		return ErrInvalidSignature
	}

	timestamp, err := strconv.ParseInt(params["t"], 10, 64)
	if err != nil {
		log.Debugf("Signed request with bad timestamp %q", params["t"])
		return ErrInvalidSignature
	}

	skew := now.UnixMilli() - timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > v.timeThreshold.Milliseconds() {
		log.Debugf("Signed request timestamp outside threshold: "+
			"skew=%dms threshold=%v", skew, v.timeThreshold)
		return ErrInvalidSignature
	}

	expected := Sign(apiKey.Key, CanonicalQueryString(params))
	if !hmac.Equal([]byte(expected), []byte(params["s"])) {
		log.Debugf("Signed request with bad signature for key id %v",
			apiKey.ID)
		return ErrInvalidSignature
	}

	return nil
}
