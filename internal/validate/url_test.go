package validate

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func mustParseIP(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s)
	if ip == nil {
		t.Fatalf("failed to parse IP %q", s)
	}
	return ip
}

func TestURL(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints URLConstraints
		wantErr     error
	}{
		{
			name:        "valid https URL",
			input:       "https://example.com/path",
			constraints: URLConstraints{AllowedSchemes: []string{"https"}, MaxLength: 2048},
		},
		{
			name:        "scheme not allowed",
			input:       "http://example.com",
			constraints: URLConstraints{AllowedSchemes: []string{"https"}},
			wantErr:     ErrDisallowedScheme,
		},
		{
			name:        "empty URL",
			input:       "",
			constraints: URLConstraints{},
			wantErr:     ErrEmpty,
		},
		{
			name:        "missing hostname",
			input:       "https://",
			constraints: URLConstraints{AllowedSchemes: []string{"https"}},
			wantErr:     ErrInvalidURL,
		},
		{
			name:        "URL too long",
			input:       "https://example.com/" + strings.Repeat("a", 2048),
			constraints: URLConstraints{AllowedSchemes: []string{"https"}, MaxLength: 2048},
			wantErr:     ErrStringTooLong,
		},
		{
			name:        "localhost blocked when private blocked",
			input:       "https://localhost/hook",
			constraints: URLConstraints{AllowedSchemes: []string{"https"}, BlockPrivate: true},
			wantErr:     ErrSSRFRisk,
		},
		{
			name:        "localhost allowed when private allowed",
			input:       "ws://localhost:6008/xrpc/subscribe",
			constraints: URLConstraints{AllowedSchemes: []string{"ws", "wss"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := URL(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("URL(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("URL(%q) unexpected error: %v", tt.input, err)
			}
		})
	}
}

func TestFirehoseURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "wss endpoint", input: "wss://firehose.example.com/subscribe"},
		{name: "plain ws endpoint", input: "ws://10.0.0.5:6008/subscribe"},
		{name: "https rejected", input: "https://firehose.example.com/subscribe", wantErr: ErrDisallowedScheme},
		{name: "empty rejected", input: "", wantErr: ErrEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FirehoseURL(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("FirehoseURL(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("FirehoseURL(%q) unexpected error: %v", tt.input, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "172.31.255.255", "192.168.1.1", "169.254.0.1"}
	public := []string{"8.8.8.8", "1.1.1.1", "172.32.0.1", "93.184.216.34"}

	for _, addr := range private {
		if !isPrivateIP(mustParseIP(t, addr)) {
			t.Errorf("isPrivateIP(%s) = false, want true", addr)
		}
	}
	for _, addr := range public {
		if isPrivateIP(mustParseIP(t, addr)) {
			t.Errorf("isPrivateIP(%s) = true, want false", addr)
		}
	}
}
