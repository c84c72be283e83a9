package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API transport behavior.
type Config struct {
	MaxBodyBytes int64

	// Cookie transport for browser clients. Tokens are additionally
	// returned in the response body for non-browser clients.
	CookiesEnabled    bool
	AccessCookieName  string
	RefreshCookieName string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite
}

// LoadConfigFromEnv loads auth API config with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:      envInt64("LQ_AUTH_MAX_BODY_BYTES", defaultMaxBodyBytes),
		CookiesEnabled:    envBool("LQ_AUTH_COOKIES_ENABLED", true),
		AccessCookieName:  envString("LQ_AUTH_ACCESS_COOKIE", "accessToken"),
		RefreshCookieName: envString("LQ_AUTH_REFRESH_COOKIE", "refreshToken"),
		CookiePath:        envString("LQ_AUTH_COOKIE_PATH", "/"),
		CookieDomain:      strings.TrimSpace(os.Getenv("LQ_AUTH_COOKIE_DOMAIN")),
		CookieSecure:      envBool("LQ_AUTH_COOKIE_SECURE", true),
		CookieSameSite:    http.SameSiteLaxMode,
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
