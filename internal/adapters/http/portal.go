package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

// Probe paths the major OSes hit to detect a captive portal. Answering with
// a redirect makes phones auto-open the page when they join the network.
var probePaths = []string{
	"/generate_204",              // Android
	"/gen_204",                   // Android
	"/hotspot-detect.html",       // iOS / macOS
	"/library/test/success.html", // older iOS
	"/ncsi.txt",                  // Windows
	"/connecttest.txt",           // Windows 10+
	"/success.txt",               // Firefox
}

var probeSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(probePaths))
	for _, p := range probePaths {
		m[p] = struct{}{}
	}
	return m
}()

func isProbePath(path string) bool {
	_, ok := probeSet[path]
	return ok
}

// registerPortal wires the probe redirects and the health check. Both stay
// reachable regardless of authorization state.
func registerPortal(r *gin.Engine, canonicalURL string) {
	redirect := func(c *gin.Context) {
		c.Redirect(http.StatusFound, canonicalURL)
	}
	for _, p := range probePaths {
		r.GET(p, redirect)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// qrHandler renders the canonical URL as a PNG so a phone can join by
// pointing its camera at the screen.
func qrHandler(canonicalURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		png, err := qrcode.Encode(canonicalURL, qrcode.Medium, 256)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("qr encode")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "qr generation failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	}
}
