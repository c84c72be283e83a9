package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lerniqo/user-service/cmd/internal/metrics"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{}).Validate(); err == nil {
		t.Fatal("empty secret must be rejected")
	}
	if err := (Config{SecretKey: "unit-test-secret-key-0123456789"}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   string
	}{
		{status: 200, want: "2xx"},
		{status: 302, want: "3xx"},
		{status: 404, want: "4xx"},
		{status: 503, want: "5xx"},
		{status: 42, want: "other"},
	}
	for _, tc := range cases {
		if got := statusClass(tc.status); got != tc.want {
			t.Fatalf("statusClass(%d)=%q want=%q", tc.status, got, tc.want)
		}
	}
}

func TestEnvStringList(t *testing.T) {
	t.Setenv("LQ_TEST_LIST", " a, b ,,c ")
	got := EnvStringList("LQ_TEST_LIST")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("EnvStringList = %v", got)
	}
	if EnvStringList("LQ_TEST_LIST_UNSET") != nil {
		t.Fatal("unset list must be nil")
	}
}

func TestRegisterHTTP_HealthAndMetrics(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	met := metrics.New()

	mux := http.NewServeMux()
	registerHTTP(mux, log, Config{}, nil, false, met, nil)

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/metrics": http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Fatalf("%s status = %d, want %d", path, rec.Code, want)
		}
	}
}

func TestRegisterHTTP_ReadyzRequiresDB(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	mux := http.NewServeMux()
	registerHTTP(mux, log, Config{ReadinessRequireDB: true}, nil, false, nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db status = %d, want 503", rec.Code)
	}
}

func TestWithSecurityHeaders(t *testing.T) {
	h := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing nosniff: %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("missing frame options: %q", got)
	}
}
