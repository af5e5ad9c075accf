// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, a hardening middleware that attaches a
// conservative set of HTTP security headers suitable for JSON APIs running
// behind a reverse proxy. HSTS is opt-in and only emitted when the request
// actually arrived over HTTPS.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures the headers emitted by SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security for HTTPS requests. Only
	// enable when traffic is HTTPS end-to-end, including proxy to app.
	EnableHSTS bool
	// HSTSMaxAge is the HSTS lifetime; non-positive values default to 180 days.
	HSTSMaxAge time.Duration
	// NoStore adds Cache-Control: no-store (plus legacy Pragma/Expires) to
	// prevent caching of sensitive responses.
	NoStore bool
	// EnablePolicy includes Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies. Browser-only, harmless elsewhere.
	EnablePolicy bool
}

// SecurityHeaders returns a Gin middleware that adds conservative HTTP
// security headers to each response. It always sets nosniff, frame denial
// and a no-referrer policy; the remaining headers follow SecurityOptions.
// Safe to use alongside the CORS and logging middlewares.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		// Never for plain HTTP.
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security",
				"max-age="+strconv.Itoa(maxAge)+"; includeSubDomains; preload")
		}

		// Expose X-Request-ID so browser clients can correlate logs.
		if rid := h.Get("X-Request-ID"); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			if cur == "" {
				h.Set(hdr, "X-Request-ID")
			} else if !strings.Contains(cur, "X-Request-ID") {
				h.Set(hdr, cur+", X-Request-ID")
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request used HTTPS either directly or via a
// reverse proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
