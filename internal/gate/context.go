package gate

import (
	"github.com/gin-gonic/gin"
	"github.com/lumenplan/chatgate/internal/session"
)

const identityContextKey = "gate.session"

// SessionFrom returns the session result stashed by the gate middleware.
func SessionFrom(c *gin.Context) session.Result {
	if v, ok := c.Get(identityContextKey); ok {
		if result, okCast := v.(session.Result); okCast {
			return result
		}
	}
	return session.Result{}
}
