package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "10.13", Round(decimal.RequireFromString("10.125")).String())
	assert.Equal(t, "-10.13", Round(decimal.RequireFromString("-10.125")).String())
	assert.Equal(t, "3", Round(decimal.NewFromInt(3)).String())
}

func TestPercent(t *testing.T) {
	assert.True(t, decimal.RequireFromString("12.35").Equal(Percent(decimal.RequireFromString("123.45"), decimal.NewFromInt(10))))
	assert.True(t, decimal.Zero.Equal(Percent(decimal.NewFromInt(500), decimal.Zero)))
}

func TestLineAmountAndSum(t *testing.T) {
	a := LineAmount(decimal.RequireFromString("2.5"), decimal.RequireFromString("19.99"))
	b := LineAmount(decimal.NewFromInt(3), decimal.RequireFromString("0.10"))
	assert.Equal(t, "49.98", a.String())
	assert.Equal(t, "50.28", Sum(a, b).String())
	assert.True(t, Sum().IsZero())
}

func TestJSONIsNumber(t *testing.T) {
	out, err := json.Marshal(struct {
		Total decimal.Decimal `json:"total"`
	}{decimal.RequireFromString("10.50")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":10.5}`, string(out))
}
