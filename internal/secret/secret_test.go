package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMask(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "empty", value: "", want: ""},
		{name: "one char", value: "a", want: "*"},
		{name: "four chars all masked", value: "abcd", want: "****"},
		{name: "five chars keeps edges", value: "abcde", want: "ab*de"},
		{name: "password", value: "hunter2secret", want: "hu*********et"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mask(tt.value))
		})
	}
}
