package subproto

import (
	"context"

	"github.com/lnurld/lnurld/lnnode"
	"github.com/lnurld/lnurld/secrets"
)

// Params is the raw string-keyed query parameter view handed to validators.
// Presence of a key distinguishes an empty parameter from an absent one.
type Params map[string]string

// Has reports whether the parameter was supplied at all.
func (p Params) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// Subprotocol is one supported LNURL action type. Implementations are
// registered once at startup and the dispatch engine is polymorphic over this
// interface only: a new subprotocol is added by adding an implementation,
// never by modifying the engine.
type Subprotocol interface {
	// Tag returns the subprotocol's tag, e.g. "withdrawRequest".
	Tag() string

	// ValidateCreate validates creation-time parameters in order:
	// presence, integer coercion, range, then cross-field constraints.
	// The first failing check short-circuits. On success the validated
	// subset of the parameters is returned, which is what gets bound to
	// the minted secret.
	ValidateCreate(params Params) (Params, error)

	// Info builds the wallet-facing info response for the given unused
	// secret. Subprotocols without a natural info representation return a
	// *ValidationError carrying their fixed instructional message.
	Info(ctx context.Context, secret *secrets.Secret, callback string,
		backend lnnode.Backend) (interface{}, error)

	// ValidateAction validates action-execution parameters against the
	// secret. It must not cause any node state change; the engine only
	// claims the secret and runs Action once validation has passed.
	ValidateAction(ctx context.Context, secret *secrets.Secret,
		params Params, backend lnnode.Backend) error

	// Action executes the subprotocol's node action for a claimed secret.
	Action(ctx context.Context, secret *secrets.Secret, params Params,
		backend lnnode.Backend) error
}

// Registry is the static table of supported subprotocols, keyed by tag.
type Registry struct {
	subprotocols map[string]Subprotocol
}

// NewRegistry creates a registry holding the given subprotocols.
func NewRegistry(subs ...Subprotocol) *Registry {
	registry := &Registry{
		subprotocols: make(map[string]Subprotocol, len(subs)),
	}
	for _, sub := range subs {
		registry.Register(sub)
	}
	return registry
}

// DefaultRegistry creates a registry with the three built-in subprotocols.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&ChannelRequest{},
		&WithdrawRequest{},
		&Login{},
	)
}

// Register adds a subprotocol to the registry, replacing any existing
// subprotocol with the same tag.
func (r *Registry) Register(sub Subprotocol) {
	r.subprotocols[sub.Tag()] = sub
}

// Lookup returns the subprotocol registered for the given tag.
func (r *Registry) Lookup(tag string) (Subprotocol, bool) {
	sub, ok := r.subprotocols[tag]
	return sub, ok
}

// Tags returns the tags of all registered subprotocols.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.subprotocols))
	for tag := range r.subprotocols {
		tags = append(tags, tag)
	}
	return tags
}
