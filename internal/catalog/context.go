package catalog

import (
	"context"
	"time"

	"github.com/openmerce/catalogql/internal/auth"
)

// RequestContext carries the presentation context of one request: who asks,
// from where, in which currency and language, and at what instant the
// request is evaluated (discount activity is keyed by this time).
type RequestContext struct {
	Requester   auth.Requester
	Country     string
	Currency    string // local display currency, may differ from channel currency
	Language    string
	RequestTime time.Time
}

// NewRequestContext returns a context for an anonymous requester at now.
func NewRequestContext(now time.Time) *RequestContext {
	return &RequestContext{Requester: auth.Anonymous{}, RequestTime: now}
}

type requestCtxKey struct{}

// WithRequestContext attaches rc to ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, rc)
}

// RequestContextFrom returns the request context attached to ctx, or an
// anonymous one when absent (tests, background use).
func RequestContextFrom(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestCtxKey{}).(*RequestContext); ok {
		return rc
	}
	return NewRequestContext(time.Now())
}

// ChannelContext wraps a record together with the channel it is being viewed
// through, so one record can be presented differently per query. The wrapper
// never outlives field resolution and never mutates the record.
type ChannelContext struct {
	Node        Record
	ChannelSlug string // empty when the query carries no channel scope
}

// Wrap builds a channel-scoped view of rec.
func Wrap(rec Record, channelSlug string) *ChannelContext {
	return &ChannelContext{Node: rec, ChannelSlug: channelSlug}
}

// WrapAll builds channel-scoped views for a batch of records.
func WrapAll[R Record](recs []R, channelSlug string) []*ChannelContext {
	out := make([]*ChannelContext, len(recs))
	for i, r := range recs {
		out[i] = Wrap(r, channelSlug)
	}
	return out
}

// PK returns the wrapped record's primary key. Identity belongs to the
// record, not the wrapper.
func (c *ChannelContext) PK() int64 { return c.Node.PK() }

// TypeName delegates type membership to the wrapped record.
func (c *ChannelContext) TypeName() string { return c.Node.TypeName() }

// Attr resolves a field against the wrapper first (context-dependent
// overrides such as the channel slug), falling back to the record's
// attribute table.
func (c *ChannelContext) Attr(name string) (any, bool) {
	if name == "channel" {
		if c.ChannelSlug == "" {
			return nil, true
		}
		return c.ChannelSlug, true
	}
	return c.Node.Attr(name)
}

// Unwrap returns the raw record behind root, unwrapping a channel context if
// present, and the channel slug in scope.
func Unwrap(root any) (Record, string) {
	switch v := root.(type) {
	case *ChannelContext:
		return v.Node, v.ChannelSlug
	case Record:
		return v, ""
	}
	return nil, ""
}
