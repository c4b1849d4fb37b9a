package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"yen sign with commas", "¥1,234", 1234},
		{"fullwidth yen sign", "￥980", 980},
		{"trailing en", "12,800円", 12800},
		{"current bid", "現在 500円", 500},
		{"current bid with commas", "現在1,250円", 1250},
		{"plain digits", "300", 300},
		{"surrounding whitespace", "  ¥2,000  ", 2000},
		{"price with shipping note", "1,480円 送料無料", 1480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizePrice(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePrice_Errors(t *testing.T) {
	for _, input := range []string{"", "   ", "価格未定", "---"} {
		_, err := normalizePrice(input)
		assert.Error(t, err, "input %q", input)
	}
}
