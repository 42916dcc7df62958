package lnurl

import (
	"context"
	"encoding/hex"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lnurld/lnurld/lnauth"
	"github.com/lnurld/lnurld/secrets"
	"github.com/lnurld/lnurld/subproto"
	"github.com/stretchr/testify/require"
)

var (
	testTime     = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	testCallback = "https://example.com/lnurl"
)

// testHarness bundles a server with its injected collaborators.
type testHarness struct {
	t       *testing.T
	server  *Server
	store   secrets.Store
	backend *mockBackend
	apiKey  *lnauth.APIKey
	clock   *clock.TestClock
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	apiKey, err := lnauth.GenerateAPIKey()
	require.NoError(t, err)

	testClock := clock.NewTestClock(testTime)
	store := secrets.NewMemoryStore(testClock)
	backend := newMockBackend()

	server := NewServer(&Config{
		Callback:          testCallback,
		APIKeys:           []*lnauth.APIKey{apiKey},
		AuthTimeThreshold: 5 * time.Minute,
		Store:             store,
		Backend:           backend,
		Clock:             testClock,
	})

	return &testHarness{
		t:       t,
		server:  server,
		store:   store,
		backend: backend,
		apiKey:  apiKey,
		clock:   testClock,
	}
}

// handle dispatches a request against the harness server.
func (h *testHarness) handle(params subproto.Params) interface{} {
	return h.server.Handle(context.Background(), params)
}

// signedParams builds a correctly signed creation request for the given tag.
func (h *testHarness) signedParams(tag string,
	tagParams map[string]string) subproto.Params {

	params := subproto.Params{
		"tag": tag,
		"n":   "0123456789abcdef",
		"t":   strconv.FormatInt(testTime.UnixMilli(), 10),
	}
	for key, value := range tagParams {
		params[key] = value
	}
	params["s"] = lnauth.SignQuery(h.apiKey, params)
	return params
}

// requireError asserts that the response is an error with the given reason.
func requireError(t *testing.T, resp interface{}, reason string) {
	t.Helper()

	require.Equal(t, ErrorResponse(reason), resp)
}

// TestHandleMissingSecret asserts the baseline failure when neither a secret
// reference nor a signed creation request is present.
func TestHandleMissingSecret(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)

	requireError(t, h.handle(subproto.Params{}), ReasonMissingSecret)
	requireError(t, h.handle(subproto.Params{"foo": "bar"}),
		ReasonMissingSecret)

	// An id without the rest of the signed parameter set and no secret
	// reference falls through to the same failure.
	requireError(t, h.handle(subproto.Params{"id": "abc"}),
		ReasonMissingSecret)
}

// TestSignedCreationChannelRequest exercises the signed creation mode end to
// end for channelRequest.
func TestSignedCreationChannelRequest(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)

	// A valid signed request creates a secret and answers with the info
	// response in one round trip.
	resp := h.handle(h.signedParams(subproto.TagChannelRequest,
		map[string]string{"localAmt": "1000", "pushAmt": "0"}))

	info, ok := resp.(*subproto.ChannelInfo)
	require.True(t, ok, "expected channel info, got %T", resp)
	require.Equal(t, subproto.TagChannelRequest, info.Tag)
	require.Equal(t, testCallback, info.Callback)
	require.Equal(t, h.backend.uri, info.URI)
	require.NotEmpty(t, info.K1)

	// The created secret is resolvable and carries the validated params.
	secret, err := h.store.Get(info.K1)
	require.NoError(t, err)
	require.Equal(t, subproto.TagChannelRequest, secret.Tag)
	require.Equal(t, "1000", secret.Params["localAmt"])

	// Validation failures surface the contract messages verbatim.
	resp = h.handle(h.signedParams(subproto.TagChannelRequest,
		map[string]string{"localAmt": "0", "pushAmt": "0"}))
	requireError(t, resp, `"localAmt" must be greater than zero`)

	resp = h.handle(h.signedParams(subproto.TagChannelRequest,
		map[string]string{"localAmt": "1000", "pushAmt": "1001"}))
	requireError(t, resp,
		`"localAmt" must be greater than or equal to "pushAmt"`)

	// Unknown tags are rejected after signature verification.
	resp = h.handle(h.signedParams("payRequest", nil))
	requireError(t, resp, `Unknown subprotocol: "payRequest"`)
}

// TestSignedCreationBadSignature asserts that tampered or stale signed
// requests all fail with the single generic auth reason.
func TestSignedCreationBadSignature(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)

	// Tampering with a signed parameter invalidates the signature.
	params := h.signedParams(subproto.TagChannelRequest,
		map[string]string{"localAmt": "1000", "pushAmt": "0"})
	params["localAmt"] = "999999"
	requireError(t, h.handle(params), ReasonInvalidSignature)

	// A signature from an unknown key fails identically.
	unknownKey, err := lnauth.GenerateAPIKey()
	require.NoError(t, err)

	params = subproto.Params{
		"tag":      subproto.TagChannelRequest,
		"n":        "0123456789abcdef",
		"t":        strconv.FormatInt(testTime.UnixMilli(), 10),
		"localAmt": "1000",
		"pushAmt":  "0",
	}
	params["s"] = lnauth.SignQuery(unknownKey, params)
	requireError(t, h.handle(params), ReasonInvalidSignature)

	// A stale timestamp fails identically, even with a valid signature.
	params = subproto.Params{
		"tag":      subproto.TagChannelRequest,
		"n":        "0123456789abcdef",
		"t": strconv.FormatInt(
			testTime.Add(-time.Hour).UnixMilli(), 10,
		),
		"localAmt": "1000",
		"pushAmt":  "0",
	}
	params["s"] = lnauth.SignQuery(h.apiKey, params)
	requireError(t, h.handle(params), ReasonInvalidSignature)
}

// TestWithdrawRoundTrip asserts that every field accepted at creation time is
// echoed unchanged by subsequent info lookups, and that lookups are
// idempotent.
func TestWithdrawRoundTrip(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)

	created := h.handle(h.signedParams(subproto.TagWithdrawRequest,
		map[string]string{
			"minWithdrawable":    "1000",
			"maxWithdrawable":    "5000",
			"defaultDescription": "rainy day fund",
		}))

	info, ok := created.(*subproto.WithdrawInfo)
	require.True(t, ok, "expected withdraw info, got %T", created)
	require.Equal(t, &subproto.WithdrawInfo{
		MinWithdrawable:    1000,
		MaxWithdrawable:    5000,
		DefaultDescription: "rainy day fund",
		Callback:           testCallback,
		K1:                 info.K1,
		Tag:                subproto.TagWithdrawRequest,
	}, info)

	// Info lookups echo the identical object, any number of times,
	// without consuming the secret.
	for i := 0; i < 3; i++ {
		resp := h.handle(subproto.Params{"q": info.K1})
		require.Equal(t, info, resp)
	}

	secret, err := h.store.Get(info.K1)
	require.NoError(t, err)
	require.False(t, secret.Used())

	// Unknown secrets are indistinguishable from used ones.
	requireError(t, h.handle(subproto.Params{"q": "deadbeef"}),
		ReasonInvalidSecret)
}

// TestWithdrawActionExecution exercises the one-time withdrawal flow.
func TestWithdrawActionExecution(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	h.backend.addInvoice("inv1", 600)
	h.backend.addInvoice("inv2", 400)

	newURL, err := h.server.GenerateNewURL(
		subproto.TagWithdrawRequest, subproto.Params{
			"minWithdrawable":    "1000",
			"maxWithdrawable":    "5000",
			"defaultDescription": "",
		},
	)
	require.NoError(t, err)
	token := newURL.Secret.Token

	// A sum below the minimum fails with the contract message, makes no
	// payment and leaves the secret spendable.
	h.backend.addInvoice("small", 999)
	resp := h.handle(subproto.Params{"k1": token, "pr": "small"})
	requireError(t, resp, `Amount in invoice(s) must be greater than `+
		`or equal to "minWithdrawable"`)
	require.Zero(t, h.backend.numPayments())

	secret, err := h.store.Get(token)
	require.NoError(t, err)
	require.False(t, secret.Used())

	// Invoices summing to exactly the minimum succeed, with one backend
	// payment call per invoice, in order.
	resp = h.handle(subproto.Params{"k1": token, "pr": "inv1,inv2"})
	require.Equal(t, OKResponse(), resp)
	require.Equal(t, []string{"inv1", "inv2"}, h.backend.paidInvoices)

	// The secret is now spent: repeating the request and looking it up
	// both fail identically.
	resp = h.handle(subproto.Params{"k1": token, "pr": "inv1,inv2"})
	requireError(t, resp, ReasonInvalidSecret)
	requireError(t, h.handle(subproto.Params{"q": token}),
		ReasonInvalidSecret)
	require.Equal(t, 2, h.backend.numPayments())
}

// TestBackendFailureSpendsSecret asserts the fail-closed policy: a failed
// backend action surfaces a generic error and still leaves the secret spent.
func TestBackendFailureSpendsSecret(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	h.backend.addInvoice("inv1", 1000)
	h.backend.payErr = errors.New("FAILURE_REASON_NO_ROUTE")

	newURL, err := h.server.GenerateNewURL(
		subproto.TagWithdrawRequest, subproto.Params{
			"minWithdrawable":    "1000",
			"maxWithdrawable":    "5000",
			"defaultDescription": "",
		},
	)
	require.NoError(t, err)
	token := newURL.Secret.Token

	// The raw backend error must not leak.
	resp := h.handle(subproto.Params{"k1": token, "pr": "inv1"})
	requireError(t, resp, ReasonUnexpected)

	secret, err := h.store.Get(token)
	require.NoError(t, err)
	require.True(t, secret.Used())

	// Retrying hits the spent secret, not the backend.
	h.backend.payErr = nil
	resp = h.handle(subproto.Params{"k1": token, "pr": "inv1"})
	requireError(t, resp, ReasonInvalidSecret)
	require.Zero(t, h.backend.numPayments())
}

// TestActionExecutionConcurrent asserts that concurrent executions against
// the same unused secret yield exactly one success.
func TestActionExecutionConcurrent(t *testing.T) {
	t.Parallel()

	const numRequests = 8

	h := newTestHarness(t)

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	linkingKey := hex.EncodeToString(privKey.PubKey().SerializeCompressed())

	newURL, err := h.server.GenerateNewURL(
		subproto.TagLogin, subproto.Params{},
	)
	require.NoError(t, err)
	token := newURL.Secret.Token

	tokenBytes, err := hex.DecodeString(token)
	require.NoError(t, err)
	sig := hex.EncodeToString(ecdsa.Sign(privKey, tokenBytes).Serialize())

	var (
		wg        sync.WaitGroup
		mtx       sync.Mutex
		successes int
		failures  int
	)
	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp := h.handle(subproto.Params{
				"k1": token, "sig": sig, "key": linkingKey,
			})

			mtx.Lock()
			defer mtx.Unlock()
			switch {
			case resp == nil:
			case equalResponse(resp, OKResponse()):
				successes++
			case equalResponse(
				resp, ErrorResponse(ReasonInvalidSecret),
			):
				failures++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, numRequests-1, failures)
}

// equalResponse compares two status responses by value.
func equalResponse(a interface{}, b *StatusResponse) bool {
	resp, ok := a.(*StatusResponse)
	return ok && *resp == *b
}

// TestLoginFlow exercises LNURL-auth end to end.
func TestLoginFlow(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)

	newURL, err := h.server.GenerateNewURL(
		subproto.TagLogin, subproto.Params{},
	)
	require.NoError(t, err)
	token := newURL.Secret.Token

	// Login URLs carry the token directly as k1.
	require.Contains(t, newURL.URL, "tag=login")
	require.Contains(t, newURL.URL, "k1="+token)

	// Info lookups have no representation for login.
	requireError(t, h.handle(subproto.Params{"q": token}),
		"Invalid request. Expected querystring as follows: "+
			"k1=SECRET&sig=SIGNATURE&key=LINKING_PUBKEY")

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	linkingKey := hex.EncodeToString(privKey.PubKey().SerializeCompressed())

	otherKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	tokenBytes, err := hex.DecodeString(token)
	require.NoError(t, err)

	// A signature by the wrong key fails and does not consume the secret.
	badSig := hex.EncodeToString(
		ecdsa.Sign(otherKey, tokenBytes).Serialize(),
	)
	resp := h.handle(subproto.Params{
		"k1": token, "sig": badSig, "key": linkingKey,
	})
	requireError(t, resp, "Invalid signature")

	// The correct signature then succeeds.
	goodSig := hex.EncodeToString(
		ecdsa.Sign(privKey, tokenBytes).Serialize(),
	)
	resp = h.handle(subproto.Params{
		"k1": token, "sig": goodSig, "key": linkingKey,
	})
	require.Equal(t, OKResponse(), resp)

	// Logging in consumed the secret.
	resp = h.handle(subproto.Params{
		"k1": token, "sig": goodSig, "key": linkingKey,
	})
	requireError(t, resp, ReasonInvalidSecret)
}

// TestGenerateNewURL asserts validation and encoding of administratively
// generated URLs.
func TestGenerateNewURL(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)

	newURL, err := h.server.GenerateNewURL(
		subproto.TagWithdrawRequest, subproto.Params{
			"minWithdrawable":    "1000",
			"maxWithdrawable":    "5000",
			"defaultDescription": "",
		},
	)
	require.NoError(t, err)
	require.Equal(t,
		testCallback+"?q="+newURL.Secret.Token, newURL.URL)

	decoded, err := Decode(newURL.Encoded)
	require.NoError(t, err)
	require.Equal(t, newURL.URL, decoded)

	// The creation validator runs on the administrative path too.
	_, err = h.server.GenerateNewURL(
		subproto.TagWithdrawRequest, subproto.Params{
			"minWithdrawable":    "0",
			"maxWithdrawable":    "5000",
			"defaultDescription": "",
		},
	)
	require.EqualError(t, err,
		`"minWithdrawable" must be greater than zero`)

	_, err = h.server.GenerateNewURL("payRequest", nil)
	require.Error(t, err)
}
