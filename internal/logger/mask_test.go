package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"full length e164", "+491521234567", "+491****4567"},
		{"fifteen digits", "+123456789012345", "+123****2345"},
		{"nine characters", "+12345678", "+123****5678"},
		{"eight characters", "+1234567", "+12****67"},
		{"short number", "+12", "****"},
		{"five characters", "+1234", "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskPhone(tt.input))
		})
	}
}

func TestMaskPhoneNeverEchoesMiddle(t *testing.T) {
	number := "+491521234567"
	masked := MaskPhone(number)
	assert.NotEqual(t, number, masked)
	assert.NotContains(t, masked, "52123")
}
