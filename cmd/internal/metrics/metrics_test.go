package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_ScrapeExposesCollectors(t *testing.T) {
	m := New()

	m.Logins.WithLabelValues(LoginResultSuccess).Inc()
	m.TokensIssued.WithLabelValues("refresh").Inc()
	m.CodesIssued.WithLabelValues("verification").Inc()
	m.ObserveHTTP("/auth/login", "2xx", 42*time.Millisecond)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"userservice_logins_total",
		"userservice_tokens_issued_total",
		"userservice_codes_issued_total",
		"userservice_http_request_duration_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape output missing %q", want)
		}
	}
}
