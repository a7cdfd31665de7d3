package util

import (
	"strings"
	"testing"
)

func TestTruncateURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "[dQw4w9WgXcQ]"},
		{"youtube with params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1", "[dQw4w9WgXcQ]"},
		{"youtu.be short", "https://youtu.be/dQw4w9WgXcQ", "[dQw4w9WgXcQ]"},
		{"youtu.be with query", "https://youtu.be/dQw4w9WgXcQ?t=42", "[dQw4w9WgXcQ]"},
		{"short last segment", "https://vimeo.com/12345", "12345"},
		{"long last segment", "https://example.com/" + strings.Repeat("x", 40), "https://example.com/xxxxxxx..."},
		{"short url no slash tail", "https://a.io/v", "v"},
		{"plain short string", "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateURL(tt.in); got != tt.want {
				t.Errorf("TruncateURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
