package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	btc := Ledger{ID: "ckbtc", Symbol: "ckBTC", Decimals: 8}

	assert.Equal(t, "1.5", btc.FormatAmount(150_000_000))
	assert.Equal(t, "0.00000001", btc.FormatAmount(1))
	assert.Equal(t, "0", btc.FormatAmount(0))
	assert.Equal(t, "184467440737.09551615", btc.FormatAmount(^uint64(0)))

	whole := Ledger{ID: "pts", Decimals: 0}
	assert.Equal(t, "42", whole.FormatAmount(42))
}

func TestParseAmount(t *testing.T) {
	btc := Ledger{ID: "ckbtc", Symbol: "ckBTC", Decimals: 8}

	tests := []struct {
		input string
		want  uint64
		ok    bool
	}{
		{"1.5", 150_000_000, true},
		{"0.00000001", 1, true},
		{"100", 10_000_000_000, true},
		{"184467440737.09551615", ^uint64(0), true},
		{"184467440737.09551616", 0, false},
		{"0.000000001", 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := btc.ParseAmount(tt.input)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(Ledger{ID: "icp"}, Ledger{ID: "ckbtc"})
	require.NoError(t, err)

	_, ok := r.Lookup("icp")
	assert.True(t, ok)
	_, ok = r.Lookup("eth")
	assert.False(t, ok)
	assert.Equal(t, []string{"ckbtc", "icp"}, r.IDs())

	_, err = NewRegistry(Ledger{ID: "icp"}, Ledger{ID: "icp"})
	assert.ErrorContains(t, err, "duplicate")

	var empty *Registry
	_, ok = empty.Lookup("icp")
	assert.False(t, ok)
}
