package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		amount, rate, want int
	}{
		{9400, 21, 1974},
		{250, 21, 53},   // 52.5
		{50, 21, 11},    // 10.5
		{-250, 21, -53}, // -52.5
		{0, 21, 0},
		{1000, 0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Percent(tc.amount, tc.rate), "amount=%d rate=%d", tc.amount, tc.rate)
	}
}

func TestProrate(t *testing.T) {
	assert.Equal(t, 1974, Prorate(1974, 9900, 9900))
	assert.Equal(t, 987, Prorate(1974, 4950, 9900))
	assert.Equal(t, 2, Prorate(3, 1, 2)) // 1.5
	assert.Zero(t, Prorate(100, 5, 0))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "98.99 EUR", Format(9899, "eur"))
	assert.Equal(t, "-4.99 EUR", Format(-499, "EUR"))
	assert.Equal(t, "0.05", Format(5, ""))
}
