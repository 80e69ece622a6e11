package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRayToPercent(t *testing.T) {
	cases := []struct {
		name string
		rate *big.Int
		want float64
	}{
		{"zero rate", big.NewInt(0), 0},
		// 5% APY in ray: 0.05 * 1e27
		{"five percent", new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(25), nil)), 5},
		// 12.34% APY in ray
		{"fractional percent", new(big.Int).Div(
			new(big.Int).Mul(big.NewInt(1234), new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)),
			big.NewInt(10000),
		), 12.34},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, rayToPercent(tc.rate), 0.01)
		})
	}
}

func TestShareAmountToUint256Overflow(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 257)
	_, err := ShareAmountToUint256(tooBig)
	require.Error(t, err)

	fine := big.NewInt(1_000_000)
	u, err := ShareAmountToUint256(fine)
	require.NoError(t, err)
	require.Equal(t, fine.String(), u.ToBig().String())
}
