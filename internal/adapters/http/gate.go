package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avdeev/micbridge/internal/app"
	"github.com/avdeev/micbridge/internal/domain"
)

// Being on the right network is the entire credential: passing this
// middleware is the only way a session ever gets created.
const deniedPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Access denied</title></head>
<body style="font-family:sans-serif;text-align:center;padding-top:4em">
<h1>403 &mdash; Not on this network</h1>
<p>This microphone bridge only accepts devices on %s.</p>
<p>Connect to the same Wi-Fi network as the server and reload.</p>
</body>
</html>`

// NetAccessMiddleware gates every route except /health, the admin surface
// (it has its own password check) and the captive-portal probes (the OS must
// reach those to auto-open the page). The client address comes from the
// transport connection; forwarded headers are never consulted.
func NetAccessMiddleware(auth app.Authorizer, store *app.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || strings.HasPrefix(path, "/admin") || isProbePath(path) {
			c.Next()
			return
		}

		if token, err := c.Cookie(domain.CookieName); err == nil && token != "" {
			if sess, ok := store.Lookup(domain.SessionToken(token)); ok && sess.Authorized {
				c.Next()
				return
			}
		}

		remote := c.RemoteIP()
		if !auth.Allow(remote) {
			log.Warn().Str("module", "adapters.http").Str("remote", remote).Str("path", path).Msg("denied: outside subnet")
			c.Data(http.StatusForbidden, "text/html; charset=utf-8",
				[]byte(fmt.Sprintf(deniedPage, requiredNetwork(auth))))
			c.Abort()
			return
		}

		sess := store.Issue()
		c.SetCookie(domain.CookieName, string(sess.Token), int(store.TTL().Seconds()), "/", "", false, true)
		log.Info().Str("module", "adapters.http").Str("remote", remote).Msg("session issued")
		c.Next()
	}
}

func requiredNetwork(auth app.Authorizer) string {
	if s := auth.Subnet(); s != "" {
		return "the " + s + " network"
	}
	return "the server's local network"
}
