package web

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https allowed", "https://go.dev/doc/effective_go", false},
		{"http allowed", "http://example.com/about", false},
		{"ftp rejected", "ftp://example.com/file", true},
		{"file rejected", "file:///etc/passwd", true},
		{"missing host", "https:///path", true},
		{"localhost rejected", "https://localhost:8080", true},
		{"loopback rejected", "http://127.0.0.1/admin", true},
		{"ipv6 loopback rejected", "http://[::1]/", true},
		{"private ip rejected", "https://192.168.1.1/path", true},
		{"metadata endpoint rejected", "http://169.254.169.254/latest/meta-data", true},
		{"cgnat rejected", "http://100.64.1.1/", true},
		{"local domain rejected", "https://printer.local/", true},
		{"internal domain rejected", "https://wiki.corp.internal/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBlockedURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"10.0.0.1", true},
		{"172.16.5.4", true},
		{"192.168.0.10", true},
		{"127.0.0.1", true},
		{"0.0.0.0", true},
		{"::ffff:10.0.0.1", true},
		{"fd00::1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"2606:4700:4700::1111", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.private, IsPrivateIP(net.ParseIP(tt.ip)))
		})
	}
}

func TestSameHost(t *testing.T) {
	assert.True(t, SameHost("https://acme.com/a", "https://www.acme.com/b"))
	assert.True(t, SameHost("https://ACME.com", "https://acme.com:443/x"))
	assert.False(t, SameHost("https://acme.com", "https://blog.acme.com"))
	assert.False(t, SameHost("https://acme.com", "://bad"))
}
