package cryptoutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHexString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", true},
		{"lowercase", "0badf00d", true},
		{"uppercase", "0BADF00D", true},
		{"mixed case", "0bAdF00d", true},
		{"64 char signing key", strings.Repeat("a7", 32), true},
		{"g is not hex", "abcg", false},
		{"embedded space", "ab cd", false},
		{"hex prefix notation", "0x1234", false},
		{"trailing newline", "abcd\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHexString(tt.in))
		})
	}
}
