package audit

import (
	"context"
	"time"
)

// Action enumerates the audited event kinds.
type Action string

const (
	ActionLogin             Action = "auth.login"
	ActionLoginFailed       Action = "auth.login_failed"
	ActionLogout            Action = "auth.logout"
	ActionSessionRefresh    Action = "auth.session_refresh"
	ActionSessionError      Action = "auth.session_error"
	ActionAuthRejected      Action = "security.auth_rejected"
	ActionCSRFRejected      Action = "security.csrf_rejected"
	ActionRateLimited       Action = "security.rate_limited"
	ActionRateLimitFailOpen Action = "security.rate_limit_fail_open"
	ActionChatRequest       Action = "data.chat_request"
)

// Event is a single security or data-operation audit record.
type Event struct {
	Action    Action
	Identity  string
	Resource  string
	Detail    map[string]any
	SourceIP  string
	UserAgent string
	At        time.Time
}

// Sink receives audit events. Implementations must never surface an error
// to the request path; recording is best effort.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// NopSink discards all events.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, Event) {}
