package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIdentity(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "first forwarded-for hop wins",
			remoteAddr: "10.0.0.9:5555",
			headers:    map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8", "X-Real-IP": "9.9.9.9"},
			want:       "1.2.3.4",
		},
		{
			name:       "real ip when no forwarded-for",
			remoteAddr: "10.0.0.9:5555",
			headers:    map[string]string{"X-Real-IP": "9.9.9.9"},
			want:       "9.9.9.9",
		},
		{
			name:       "empty forwarded-for entry falls through",
			remoteAddr: "10.0.0.9:5555",
			headers:    map[string]string{"X-Forwarded-For": " , 5.6.7.8"},
			want:       "10.0.0.9",
		},
		{
			name:       "remote host without port",
			remoteAddr: "10.0.0.9:5555",
			want:       "10.0.0.9",
		},
		{
			name:       "remote addr that is not host:port",
			remoteAddr: "pipe",
			want:       "pipe",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[::1]:8080",
			want:       "::1",
		},
		{
			name: "unknown sentinel",
			want: UnknownClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "http://example/api/chat", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, ClientIdentity(r))
		})
	}
}
