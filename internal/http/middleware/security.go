// Package middleware contains the shared Gin middleware of the HTTP layer.
//
// This file provides SecurityHeaders, the hardening middleware applied to
// every response. The API serves JSON to a browser SPA, so the header set is
// tuned for that: anti-sniffing and framing protection always, HSTS only
// when the deployment really terminates TLS end-to-end, and no CSP (the SPA
// is served elsewhere; a policy here would only confuse API clients).
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
//
// EnableHSTS emits Strict-Transport-Security, but only on requests that
// arrived over HTTPS (directly or behind a proxy that says so). Leave it off
// for localhost and for deployments where the proxy talks plain HTTP to the
// app. HSTSMaxAge defaults to 180 days when unset.
//
// NoStore adds Cache-Control: no-store and the legacy Pragma/Expires pair.
// The TMDB proxy responses are cacheable, so the router leaves this off and
// relies on Redis TTLs instead.
//
// EnablePolicy adds the browser feature policies; harmless for non-browser
// clients.
type SecurityOptions struct {
	EnableHSTS   bool          // only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // e.g. 180 * 24h
	NoStore      bool          // add Cache-Control: no-store
	EnablePolicy bool          // include Permissions-Policy, etc.
}

// SecurityHeaders returns a middleware that stamps the configured security
// headers on each response.
//
// Always set:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//
// The catalog never needs camera, microphone, geolocation or payment access,
// so EnablePolicy locks all four. When an earlier middleware stamped
// X-Request-ID, it is appended to Access-Control-Expose-Headers so the SPA
// can read it for error reports.
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

		// Never advertise HSTS on a plain-HTTP request.
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security",
				"max-age="+strconv.Itoa(maxAge)+"; includeSubDomains; preload")
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			switch cur := h.Get(hdr); {
			case cur == "":
				h.Set(hdr, "X-Request-ID")
			case !strings.Contains(cur, "X-Request-ID"):
				h.Set(hdr, cur+", X-Request-ID")
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request used HTTPS, directly (r.TLS set) or
// through a proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
