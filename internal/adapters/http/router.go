package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avdeev/micbridge/internal/adapters/stream"
	"github.com/avdeev/micbridge/internal/app"
	"github.com/avdeev/micbridge/internal/config"
	"github.com/avdeev/micbridge/internal/domain"
)

// CanonicalURL is the address clients should open, used for the QR code and
// the captive-portal redirects.
func CanonicalURL(cfg *config.Config, serverIP string) string {
	scheme := "http"
	if cfg.TLSEnabled() {
		scheme = "https"
	}
	host := serverIP
	if host == "" {
		host = "127.0.0.1"
	}
	if (scheme == "http" && cfg.Port == 80) || (scheme == "https" && cfg.Port == 443) {
		return fmt.Sprintf("%s://%s/", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d/", scheme, host, cfg.Port)
}

func SetupRouter(ctx context.Context, cfg *config.Config, auth app.Authorizer, store *app.SessionStore, ctl *stream.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	adminStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("mb_admin", adminStore))
	r.Use(NetAccessMiddleware(auth, store))

	canonical := CanonicalURL(cfg, auth.ServerIP)

	r.Static("/static", cfg.StaticPath+"/static")
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	registerPortal(r, canonical)
	registerAdmin(r, cfg, store, ctl.Streams)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Str("url", canonical).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws/stream", func(c *gin.Context) {
		ctl.HandleStream(ctx, c)
	})

	api.GET("/qr", qrHandler(canonical))

	api.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"url":       canonical,
			"target":    ctl.Sink.Target(),
			"auth_mode": auth.Mode.String(),
			"subnet":    auth.Subnet(),
		})
	})

	api.POST("/logout", func(c *gin.Context) {
		if token, err := c.Cookie(domain.CookieName); err == nil && token != "" {
			store.Revoke(domain.SessionToken(token))
		}
		c.SetCookie(domain.CookieName, "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
