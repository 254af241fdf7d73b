// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package middleware

import (
	"net/http"

	"github.com/vendora/vendora/internal/platform/apperr"
	"github.com/vendora/vendora/internal/platform/constants"
	"github.com/vendora/vendora/internal/platform/respond"
	"github.com/vendora/vendora/internal/platform/sec"
)

// CSRFProtect enforces the double-submit cookie pattern on state-changing requests.
//
// # Flow
//  1. Safe methods (GET, HEAD, OPTIONS) pass through untouched.
//  2. The token must appear in the CSRF cookie AND the x-csrf-token header
//     (or the "csrf_token" form field as a fallback for form posts).
//  3. Both copies must be byte-identical, correctly signed, and within TTL.
//
// Verification is a pure function over the token's own contents — no
// server-side lookup, so the check costs one HMAC per mutating request.
func CSRFProtect(service *sec.CSRFService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Safe methods skip verification ─────────────────────────────
			switch request.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Collect both token copies ──────────────────────────────────
			cookieToken := ""
			if cookie, err := request.Cookie(constants.CSRFCookieName); err == nil {
				cookieToken = cookie.Value
			}

			headerToken := request.Header.Get(constants.CSRFHeaderName)
			if headerToken == "" {
				headerToken = request.PostFormValue("csrf_token")
			}

			// ── 3. Verify signature, equality, and TTL ────────────────────────
			if !service.Verify(cookieToken, headerToken) {
				respond.Error(writer, request, apperr.Forbidden("CSRF token missing or invalid"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
