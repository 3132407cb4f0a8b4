package domain

import "context"

// Requester identifies the user behind the message currently being processed.
// Tools read it from the context so per-request identity never leaks into
// tool constructors.
type Requester struct {
	UserID       int64
	DisplayName  string
	IsAdmin      bool
	ReplyAddress string
	GroupChatID  string // set when the request came from a group chat
}

type ctxKey string

const requesterCtxKey ctxKey = "requester"

// ContextWithRequester returns a new context carrying the requester identity.
func ContextWithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, requesterCtxKey, r)
}

// RequesterFromContext extracts the requester from the context.
// The zero Requester is returned if none was set.
func RequesterFromContext(ctx context.Context) Requester {
	if v, ok := ctx.Value(requesterCtxKey).(Requester); ok {
		return v
	}
	return Requester{}
}
