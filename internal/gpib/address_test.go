package gpib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"18", 18},
		{" 0 ", 0},
		{"GPIB0::18::INSTR", 18},
		{"gpib1::19::instr", 19},
		{"GPIB0::30", 30},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAddressErrors(t *testing.T) {
	for _, input := range []string{"", "abc", "31", "-1", "GPIB0", "GPIB0::x::INSTR", "GPIB0::18::SOCKET", "GPIB0::1::2::3"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseAddress(input)
			assert.Error(t, err)
		})
	}
}
