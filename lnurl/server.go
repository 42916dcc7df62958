package lnurl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lnurld/lnurld/lnauth"
	"github.com/lnurld/lnurld/lnnode"
	"github.com/lnurld/lnurld/secrets"
	"github.com/lnurld/lnurld/subproto"
)

// Config groups the dependencies and settings of a Server. Store and Backend
// are required; the remaining fields have working defaults.
type Config struct {
	// Callback is the externally visible URL of the endpoint, used to
	// build the callback fields of info responses and generated URLs.
	Callback string

	// APIKeys are the credentials accepted for signed creation requests.
	APIKeys []*lnauth.APIKey

	// AuthTimeThreshold is the maximum allowed skew between a signed
	// request's timestamp and the server clock.
	AuthTimeThreshold time.Duration

	// Registry holds the supported subprotocols. Defaults to the three
	// built-in ones.
	Registry *subproto.Registry

	// Store persists secrets.
	Store secrets.Store

	// Backend executes node actions.
	Backend lnnode.Backend

	// Clock is the time source, mockable in tests. Defaults to the wall
	// clock.
	Clock clock.Clock
}

// DefaultAuthTimeThreshold is the signed-request timestamp window used when
// the config does not specify one.
const DefaultAuthTimeThreshold = 5 * time.Minute

// Server is the LNURL dispatch engine. It resolves every request into
// exactly one of three modes (signed creation, info lookup, action
// execution), enforcing signature checks, parameter validation and the
// one-time-use guarantee on secrets. It holds no mutable state of its own and
// is safe for concurrent use.
type Server struct {
	cfg      *Config
	verifier *lnauth.Verifier
}

// NewServer creates a Server from the given config.
func NewServer(cfg *Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = subproto.DefaultRegistry()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.AuthTimeThreshold == 0 {
		cfg.AuthTimeThreshold = DefaultAuthTimeThreshold
	}

	return &Server{
		cfg: cfg,
		verifier: lnauth.NewVerifier(
			cfg.APIKeys, cfg.AuthTimeThreshold,
		),
	}
}

// Handle resolves a single request into a JSON-marshalable response. Every
// failure path is converted into a {status:"ERROR", reason} object; no error
// escapes to the transport layer.
//
// Mode resolution, in priority order: a request without any of q, k1 or a
// signature id fails with "Missing secret"; a complete signed parameter set
// (id, s, n, tag) triggers signed creation; otherwise q triggers info lookup
// and k1 triggers action execution.
func (s *Server) Handle(ctx context.Context,
	params subproto.Params) interface{} {

	switch {
	case !params.Has("q") && !params.Has("k1") && !params.Has("id"):
		return ErrorResponse(ReasonMissingSecret)

	case params.Has("id") && params.Has("s") && params.Has("n") &&
		params.Has("tag"):

		return s.handleSignedCreation(ctx, params)

	case params.Has("q"):
		return s.handleInfoLookup(ctx, params["q"])

	case params.Has("k1"):
		return s.handleActionExecution(ctx, params)

	default:
		// An id without the rest of the signed parameter set and no
		// secret reference.
		return ErrorResponse(ReasonMissingSecret)
	}
}

// handleSignedCreation verifies the request signature, validates the
// creation parameters, mints a secret and answers with the subprotocol's
// info response. Create and describe happen in one round trip.
func (s *Server) handleSignedCreation(ctx context.Context,
	params subproto.Params) interface{} {

	err := s.verifier.VerifyRequest(params, s.cfg.Clock.Now())
	if err != nil {
		return ErrorResponse(ReasonInvalidSignature)
	}

	tag := params["tag"]
	sub, ok := s.cfg.Registry.Lookup(tag)
	if !ok {
		return ErrorResponse(UnknownSubprotocolReason(tag))
	}

	validated, err := sub.ValidateCreate(creationParams(params))
	if err != nil {
		return s.errorResponse(err)
	}

	secret, err := s.cfg.Store.Create(tag, validated)
	if err != nil {
		log.Errorf("Unable to create %v secret: %v", tag, err)
		return ErrorResponse(ReasonUnexpected)
	}

	log.Infof("Created %v secret via signed request from api key %v",
		tag, params["id"])

	return s.infoResponse(ctx, sub, secret)
}

// handleInfoLookup answers the subprotocol's info response for an unused
// secret. The lookup is idempotent and never mutates the secret.
func (s *Server) handleInfoLookup(ctx context.Context,
	token string) interface{} {

	secret, err := s.lookupSecret(token)
	if err != nil {
		return s.errorResponse(err)
	}

	sub, ok := s.cfg.Registry.Lookup(secret.Tag)
	if !ok {
		return ErrorResponse(UnknownSubprotocolReason(secret.Tag))
	}

	return s.infoResponse(ctx, sub, secret)
}

// handleActionExecution validates the action parameters, atomically claims
// the secret and runs the subprotocol's action. The claim happens before the
// backend action so that concurrent retries cannot execute it twice; a failed
// action therefore leaves the secret spent.
func (s *Server) handleActionExecution(ctx context.Context,
	params subproto.Params) interface{} {

	token := params["k1"]
	secret, err := s.lookupSecret(token)
	if err != nil {
		return s.errorResponse(err)
	}

	sub, ok := s.cfg.Registry.Lookup(secret.Tag)
	if !ok {
		return ErrorResponse(UnknownSubprotocolReason(secret.Tag))
	}

	err = sub.ValidateAction(ctx, secret, params, s.cfg.Backend)
	if err != nil {
		return s.errorResponse(err)
	}

	claimed, err := s.cfg.Store.Claim(token)
	if err != nil {
		return s.errorResponse(err)
	}
	if !claimed {
		// Lost the race against a concurrent execution; treated
		// identically to an unknown secret.
		return ErrorResponse(ReasonInvalidSecret)
	}

	if err := sub.Action(ctx, secret, params, s.cfg.Backend); err != nil {
		log.Errorf("Action for %v secret %v failed: %v", secret.Tag,
			token, err)
		return ErrorResponse(ReasonUnexpected)
	}

	log.Infof("Executed %v action for secret %v", secret.Tag, token)

	return OKResponse()
}

// NewURL is the result of the administrative generate-new-URL operation.
type NewURL struct {
	// URL is the wallet-facing URL resolving to the minted secret.
	URL string

	// Encoded is the bech32 LNURL encoding of the URL.
	Encoded string

	// Secret is the minted secret.
	Secret *secrets.Secret
}

// GenerateNewURL mints a new secret for the given tag and parameters and
// returns the wallet-facing URL. This is the administrative creation path;
// it bypasses request signing but runs the same creation validator.
func (s *Server) GenerateNewURL(tag string,
	params subproto.Params) (*NewURL, error) {

	sub, ok := s.cfg.Registry.Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("unknown subprotocol %q", tag)
	}

	validated, err := sub.ValidateCreate(params)
	if err != nil {
		return nil, err
	}

	secret, err := s.cfg.Store.Create(tag, validated)
	if err != nil {
		return nil, err
	}

	rawURL := s.walletURL(secret)
	encoded, err := Encode(rawURL)
	if err != nil {
		return nil, err
	}

	log.Infof("Generated new %v URL for secret %v", tag, secret.Token)

	return &NewURL{
		URL:     rawURL,
		Encoded: encoded,
		Secret:  secret,
	}, nil
}

// walletURL builds the URL a wallet resolves for the given secret. Login
// secrets carry the token directly as k1 since they have no info round trip;
// all other tags go through the q info lookup.
func (s *Server) walletURL(secret *secrets.Secret) string {
	separator := "?"
	if strings.Contains(s.cfg.Callback, "?") {
		separator = "&"
	}

	if secret.Tag == subproto.TagLogin {
		return fmt.Sprintf("%s%stag=%s&k1=%s", s.cfg.Callback,
			separator, subproto.TagLogin, secret.Token)
	}
	return fmt.Sprintf("%s%sq=%s", s.cfg.Callback, separator,
		secret.Token)
}

// lookupSecret fetches an unused secret, folding unknown and already-used
// secrets into the same error.
func (s *Server) lookupSecret(token string) (*secrets.Secret, error) {
	secret, err := s.cfg.Store.Get(token)
	switch {
	case errors.Is(err, secrets.ErrSecretNotFound):
		return nil, errInvalidSecret

	case err != nil:
		log.Errorf("Unable to look up secret %v: %v", token, err)
		return nil, err
	}

	if secret.Used() {
		return nil, errInvalidSecret
	}
	return secret, nil
}

// infoResponse builds a subprotocol's info response, folding validation
// errors (such as login's fixed instructional message) into error responses.
func (s *Server) infoResponse(ctx context.Context, sub subproto.Subprotocol,
	secret *secrets.Secret) interface{} {

	info, err := sub.Info(ctx, secret, s.cfg.Callback, s.cfg.Backend)
	if err != nil {
		return s.errorResponse(err)
	}
	return info
}

// errInvalidSecret is the internal marker for the uniform invalid-secret
// failure.
var errInvalidSecret = errors.New(ReasonInvalidSecret)

// errorResponse maps an internal error to its user-facing response.
// Validation errors surface verbatim; secret lookup misses surface as
// "Invalid secret"; everything else is folded into the generic reason.
func (s *Server) errorResponse(err error) *StatusResponse {
	var validationErr *subproto.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return ErrorResponse(validationErr.Error())

	case errors.Is(err, errInvalidSecret),
		errors.Is(err, secrets.ErrSecretNotFound):

		return ErrorResponse(ReasonInvalidSecret)

	default:
		return ErrorResponse(ReasonUnexpected)
	}
}

// creationParams strips the authentication parameters from a signed request,
// leaving only the subprotocol's creation parameters.
func creationParams(params subproto.Params) subproto.Params {
	stripped := make(subproto.Params, len(params))
	for key, value := range params {
		switch key {
		case "id", "s", "n", "t", "tag":
		default:
			stripped[key] = value
		}
	}
	return stripped
}
