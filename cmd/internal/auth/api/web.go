package authapi

import (
	"net/http"
	"strings"
	"time"
)

func (h *Handler) setSessionCookies(w http.ResponseWriter, accessToken, refreshToken string, now time.Time) {
	if h == nil || w == nil || !h.cfg.CookiesEnabled {
		return
	}
	h.setCookie(w, h.cfg.AccessCookieName, accessToken, now.Add(h.accessMaxAge))
	h.setCookie(w, h.cfg.RefreshCookieName, refreshToken, now.Add(h.accessMaxAge))
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	if h == nil || w == nil || !h.cfg.CookiesEnabled {
		return
	}
	h.expireCookie(w, h.cfg.AccessCookieName)
	h.expireCookie(w, h.cfg.RefreshCookieName)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) (string, bool) {
	if h == nil || r == nil || !h.cfg.CookiesEnabled {
		return "", false
	}
	c, err := r.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

// accessTokenFromRequest prefers the Authorization header; browser
// clients fall back to the access cookie.
func (h *Handler) accessTokenFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
		const prefix = "Bearer "
		if len(raw) > len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
			return strings.TrimSpace(raw[len(prefix):]), true
		}
		return "", false
	}
	if h == nil || !h.cfg.CookiesEnabled {
		return "", false
	}
	c, err := r.Cookie(h.cfg.AccessCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}
