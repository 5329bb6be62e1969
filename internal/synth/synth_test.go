package synth_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tapeingest/internal/synth"
	"tapeingest/internal/tape"
)

func smallConfig() synth.Config {
	cfg := synth.Default()
	cfg.Pairs = 500
	return cfg
}

func TestGenerate_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := synth.Generate(smallConfig())
	require.NoError(t, err)
	second, err := synth.Generate(smallConfig())
	require.NoError(t, err)
	require.Equal(t, first, second)

	other := smallConfig()
	other.Seed = 7
	third, err := synth.Generate(other)
	require.NoError(t, err)
	require.NotEqual(t, first[0].Ticks, third[0].Ticks)
}

func TestGenerate_ShapeAndBounds(t *testing.T) {
	t.Parallel()

	// Arrange
	cfg := smallConfig()

	// Act
	streams, err := synth.Generate(cfg)

	// Assert
	require.NoError(t, err)
	require.Len(t, streams, 2)
	a, b := streams[0], streams[1]
	require.Equal(t, "SYM_A", a.Label)
	require.Equal(t, 0, a.Rank)
	require.Equal(t, "SYM_B", b.Label)
	require.Equal(t, 1, b.Rank)
	require.Len(t, a.Ticks, cfg.Pairs)
	require.Len(t, b.Ticks, cfg.Pairs)

	lo, hi := decimal.NewFromInt(50), decimal.NewFromInt(150)
	for i := range cfg.Pairs {
		ta, tb := a.Ticks[i], b.Ticks[i]
		require.Equal(t, synth.DefaultStart+int64(2*i), ta.Timestamp)
		require.Equal(t, ta.Timestamp+1, tb.Timestamp)
		require.Equal(t, int64(50+(i*17+13)%150), ta.Volume)
		require.Equal(t, int64(50+(i*23+7)%150), tb.Volume)
		for _, p := range []decimal.Decimal{ta.Price, tb.Price} {
			require.False(t, p.LessThan(lo), "price %s below floor", p)
			require.False(t, p.GreaterThan(hi), "price %s above ceiling", p)
			require.Equal(t, int32(-4), p.Exponent())
		}
	}
}

func TestGenerate_MergesInterleaved(t *testing.T) {
	t.Parallel()

	streams, err := synth.Generate(smallConfig())
	require.NoError(t, err)

	merged, err := tape.Merge(streams, tape.StrategyHeap)
	require.NoError(t, err)
	require.Len(t, merged, 1000)
	require.NoError(t, tape.Verify(merged, map[string]int{"SYM_A": 0, "SYM_B": 1}))
	for i, tk := range merged {
		want := "SYM_A"
		if i%2 == 1 {
			want = "SYM_B"
		}
		require.Equal(t, want, tk.Label)
	}
}

func TestGenerate_Invalid(t *testing.T) {
	t.Parallel()

	cfg := smallConfig()
	cfg.Pairs = -1
	_, err := synth.Generate(cfg)
	require.Error(t, err)

	cfg = smallConfig()
	cfg.LabelB = cfg.LabelA
	_, err = synth.Generate(cfg)
	require.Error(t, err)

	cfg = smallConfig()
	cfg.Pairs = 0
	streams, err := synth.Generate(cfg)
	require.NoError(t, err)
	require.Empty(t, streams[0].Ticks)
}
