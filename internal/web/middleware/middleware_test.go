package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"untrusted source keeps address", "203.0.113.9:5555", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9:5555"},
		{"trusted proxy real ip", "10.1.2.3:5555", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted proxy forwarded for", "10.1.2.3:5555", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.1.2.3"}, "5.6.7.8"},
		{"trusted proxy bad header", "10.1.2.3:5555", map[string]string{"X-Real-IP": "garbage"}, "10.1.2.3:5555"},
		{"bare ip entry", "192.168.1.1:80", map[string]string{"X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
	}

	mw := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.1", "not-a-cidr"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogger_CapturesStatusAndFlushes(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.(http.Flusher).Flush()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if !rec.Flushed {
		t.Error("Flush was not forwarded to the underlying writer")
	}
}
