package gate

import "strings"

// Route classes evaluated by the gate. Page routes redirect on denial; API
// routes answer with JSON envelopes.
var (
	// CSRFProtectedPrefixes cover every state-changing API call, the login
	// endpoint included.
	CSRFProtectedPrefixes = []string{"/api/"}

	quotaMeteredPrefixes  = []string{"/api/chat"}
	protectedAPIPrefixes  = []string{"/api/chat", "/api/plans", "/api/account"}
	protectedPagePrefixes = []string{"/plans", "/account"}
	authPages             = map[string]bool{"/login": true, "/signup": true}
)

func hasPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isAPIRoute(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

func isQuotaMetered(path string) bool {
	return hasPrefix(path, quotaMeteredPrefixes)
}

func isProtectedAPI(path string) bool {
	return hasPrefix(path, protectedAPIPrefixes)
}

func isProtectedPage(path string) bool {
	return hasPrefix(path, protectedPagePrefixes)
}

func isAuthPage(path string) bool {
	return authPages[path]
}
