package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleAmount(t *testing.T) {
	cases := []struct {
		value    string
		decimals uint8
		want     string
	}{
		{"0", 0, "0"},
		{"1234", 0, "1234"},
		{"1", 18, "0.000000000000000001"},
		{"1500000", 6, "1.500000"},
		{"-25", 1, "-2.5"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ScaleAmount(bi(tc.value), tc.decimals), tc.value)
	}
	assert.Equal(t, "0", ScaleAmount(nil, 18))
}

func TestScaleAmountRoundTrip(t *testing.T) {
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(999),
		bi("123456789012345678901234567890"),
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)),
	}
	for decimals := uint8(0); decimals <= 18; decimals++ {
		for _, v := range values {
			scaled := ScaleAmount(v, decimals)
			back, err := UnscaleAmount(scaled, decimals)
			require.NoError(t, err, "%s with %d decimals", v, decimals)
			assert.Equal(t, 0, v.Cmp(back), "%s with %d decimals came back as %s", v, decimals, back)
		}
	}
}

func TestUnscaleAmountRejectsExcessPrecision(t *testing.T) {
	_, err := UnscaleAmount("1.2345", 2)
	require.Error(t, err)

	_, err = UnscaleAmount("abc", 2)
	require.Error(t, err)

	v, err := UnscaleAmount("1.25", 4)
	require.NoError(t, err)
	assert.Equal(t, "12500", v.String())
}

func TestTokenAmountDescriptor(t *testing.T) {
	amount := tokenAmount(tokenFixture(), userX, big.NewInt(255))
	assert.Equal(t, tokenA+"-"+userX+"-0xff", amount.ID)
	assert.Equal(t, "0.000000000000000255", amount.Scaled)
	assert.Equal(t, "255", amount.Amount.String())
}
