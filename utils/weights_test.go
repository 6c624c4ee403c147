package utils_test

import (
	"errors"
	"testing"

	"subspace-client/core"
	"subspace-client/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWeights(t *testing.T) {
	out, err := utils.NormalizeWeights([]uint16{0, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint16{32768, 32767}, out)

	out, err = utils.NormalizeWeights([]uint16{4, 5, 6}, []decimal.Decimal{
		decimal.NewFromInt(1), decimal.NewFromInt(0), decimal.NewFromInt(3),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint16{16384, 0, 49151}, out)

	out, err = utils.NormalizeWeights([]uint16{1}, []decimal.Decimal{decimal.Zero})
	require.NoError(t, err)
	assert.Equal(t, []uint16{0}, out)
}

func TestNormalizeWeightsSumToMax(t *testing.T) {
	for n := 1; n <= 9; n++ {
		uids := make([]uint16, n)
		for i := range uids {
			uids[i] = uint16(i)
		}
		out, err := utils.NormalizeWeights(uids, nil)
		require.NoError(t, err)
		sum := 0
		for _, w := range out {
			sum += int(w)
		}
		assert.Equal(t, utils.U16Max, sum, "n=%d", n)
	}

	out, err := utils.NormalizeWeights([]uint16{1, 2, 3}, []decimal.Decimal{
		decimal.RequireFromString("0.1"), decimal.RequireFromString("0.2"), decimal.RequireFromString("0.7"),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint16{6554, 13107, 45874}, out)
}

func TestNormalizeWeightsRejects(t *testing.T) {
	_, err := utils.NormalizeWeights([]uint16{1, 2}, []decimal.Decimal{decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	_, err = utils.NormalizeWeights([]uint16{1}, []decimal.Decimal{decimal.NewFromInt(-1)})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}
