package resolver

import (
	"reflect"

	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/globalid"
	"github.com/openmerce/catalogql/internal/gqlerr"
)

// withChannelSlug runs fn with the channel slug in scope: the explicit
// channel argument, else the slug the parent entity was wrapped with, else
// the configured default channel. The default-channel path is a load, so the
// result comes back deferred; a missing default fails loudly.
func withChannelSlug(s *Session, source any, args map[string]any, fn func(slug string) (any, error)) (any, error) {
	if slug := argString(args, "channel"); slug != "" {
		return fn(slug)
	}
	if _, slug := catalog.Unwrap(source); slug != "" {
		return fn(slug)
	}
	return s.loaders.DefaultChannel.Load(unitKey{}).Then(func(v any) (any, error) {
		ch, _ := v.(*catalog.Channel)
		if ch == nil {
			return nil, gqlerr.Configuration("no default channel is configured")
		}
		return fn(ch.Slug)
	}), nil
}

// scopeSlug is the channel slug the parent entity is viewed through, without
// a default fallback. Pricing-style fields return empty results when no
// channel is in scope.
func scopeSlug(source any, args map[string]any) string {
	if slug := argString(args, "channel"); slug != "" {
		return slug
	}
	_, slug := catalog.Unwrap(source)
	return slug
}

// wrapAs is a loader continuation that wraps a loaded record in the given
// channel scope, mapping absent records to GraphQL null.
func wrapAs[R catalog.Record](slug string) func(any) (any, error) {
	return func(v any) (any, error) {
		r, ok := v.(R)
		if !ok || reflect.ValueOf(r).IsNil() {
			return nil, nil
		}
		return catalog.Wrap(r, slug), nil
	}
}

// decodeArgID decodes a typed global id argument, enforcing the type tag.
func decodeArgID(args map[string]any, name, wantType string) (int64, error) {
	raw := argString(args, name)
	if raw == "" {
		return 0, gqlerr.NotFound("missing %s id", wantType)
	}
	return globalid.DecodeAs(raw, wantType)
}
