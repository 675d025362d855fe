package gocvcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCycleRange(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"1-6", []int{1, 2, 3, 4, 5, 6}},
		{"1-4,6,8", []int{1, 2, 3, 4, 6, 8}},
		{" 3 , 1 ,2 ", []int{1, 2, 3}},
		{"2-4,3-5", []int{2, 3, 4, 5}},
		{"7", []int{7}},
		{"0-1,", []int{0, 1}},
	}
	for _, tt := range tests {
		got, err := ParseCycleRange(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseCycleRange_Invalid(t *testing.T) {
	for _, in := range []string{"", ",", "a", "1-", "4-2", "1-x", "-3", "1.5", "1-20000"} {
		_, err := ParseCycleRange(in)
		assert.ErrorIs(t, err, ErrInvalidCycleRange, in)
	}
}
