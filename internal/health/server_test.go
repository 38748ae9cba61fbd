package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRoutes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "renamer_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	h := NewServer(0, reg).Handler()

	tests := []struct {
		method   string
		path     string
		status   int
		contains string
	}{
		{http.MethodGet, "/", http.StatusOK, "OK"},
		{http.MethodHead, "/", http.StatusOK, ""},
		{http.MethodGet, "/health", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/metrics", http.StatusOK, "renamer_test_total 1"},
		{http.MethodGet, "/missing", http.StatusNotFound, ""},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			require := require.New(t)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			require.Equal(tc.status, rec.Code)
			if tc.contains != "" {
				require.Contains(rec.Body.String(), tc.contains)
			}
		})
	}
}
