package ratelimit

// KeyFor builds a limiter key for a caller. Authenticated callers are keyed
// by user ID; anonymous callers fall back to their client IP. The prefixes
// keep the two namespaces from colliding. The IP fallback only takes effect
// on metered routes that admit anonymous callers; routes that require
// authentication reject those callers before any quota check.
func KeyFor(userKey, clientIP string) string {
	if userKey != "" {
		return "user:" + userKey
	}
	return "ip:" + clientIP
}
