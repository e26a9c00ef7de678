package http

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avdeev/micbridge/internal/app"
	"github.com/avdeev/micbridge/internal/config"
)

const adminSessionKey = "admin_ok"

// registerAdmin wires the password-gated operator surface. It sits outside
// the network gate on purpose: an operator may need to reach it from another
// subnet, and the password is its credential.
func registerAdmin(r *gin.Engine, cfg *config.Config, store *app.SessionStore, streams *app.StreamRegistry) {
	limiter := newLoginRateLimiter(5, time.Minute)

	g := r.Group("/admin")

	g.POST("/login", func(c *gin.Context) {
		if cfg.AdminPassword == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin surface disabled"})
			return
		}
		remote := c.RemoteIP()
		if !limiter.Allow(remote) {
			log.Warn().Str("module", "adapters.http").Str("remote", remote).Msg("admin login throttled")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
			return
		}

		var req struct {
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(req.Password), []byte(cfg.AdminPassword)) != 1 {
			log.Warn().Str("module", "adapters.http").Str("remote", remote).Msg("admin login failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
			return
		}

		sess := sessions.Default(c)
		sess.Set(adminSessionKey, true)
		if err := sess.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("admin session save")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session save failed"})
			return
		}
		log.Info().Str("module", "adapters.http").Str("remote", remote).Msg("admin login ok")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := g.Group("", adminRequired())

	auth.GET("/streams", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"streams": streams.List()})
	})

	auth.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"count": store.Len()})
	})

	auth.POST("/sessions/revoke", func(c *gin.Context) {
		n := store.RevokeAll()
		c.JSON(http.StatusOK, gin.H{"revoked": n})
	})

	auth.POST("/logout", func(c *gin.Context) {
		sess := sessions.Default(c)
		sess.Delete(adminSessionKey)
		_ = sess.Save()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		if ok, _ := sess.Get(adminSessionKey).(bool); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin login required"})
			return
		}
		c.Next()
	}
}
