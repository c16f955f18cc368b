package middleware

import (
	"net/http"
	"time"
)

// CookieSettings describes how the session cookie is issued. Name and
// Secure come from configuration; the rest are fixed safe defaults.
type CookieSettings struct {
	Name   string
	Secure bool
}

func SetSessionCookie(w http.ResponseWriter, cs CookieSettings, signedToken string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     cs.Name,
		Value:    signedToken,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, cs CookieSettings) {
	http.SetCookie(w, &http.Cookie{
		Name:     cs.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
