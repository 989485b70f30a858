// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	mux.HandleFunc("GET /candidates", middleware.WithLogging(handler))

Logs request start (method, path, client IP) and completion (duration_ms).
Request bodies are never logged.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux, cfg.CORSOrigin),
	}

Credentials are allowed so the kiosk frontend can carry the session
cookie. Allowed headers include X-Voting-Session and X-Admin-Key.

# Voting Sessions

The session token travels in the voting_session cookie (HttpOnly,
SameSite=Lax, Max-Age 1800) or the X-Voting-Session header:

	middleware.SetSessionCookie(w, token)
	token := middleware.SessionToken(r)

# Operator Endpoints

	mux.HandleFunc("GET /admin/settlements",
		middleware.WithLogging(middleware.RequireAdmin(cfg.AdminKey, h.List)))

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
*/
package middleware
