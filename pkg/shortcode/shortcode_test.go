package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Run("default length", func(t *testing.T) {
		code, err := Generate(0)

		require.NoError(t, err)
		assert.Len(t, code, DefaultLength)
	})

	t.Run("custom length", func(t *testing.T) {
		code, err := Generate(12)

		require.NoError(t, err)
		assert.Len(t, code, 12)
	})

	t.Run("url-safe alphabet", func(t *testing.T) {
		const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

		for i := 0; i < 100; i++ {
			code, err := Generate(DefaultLength)
			require.NoError(t, err)

			for _, r := range code {
				assert.True(t, strings.ContainsRune(alphabet, r), "unexpected character %q in code %q", r, code)
			}
		}
	})

	t.Run("codes differ", func(t *testing.T) {
		seen := make(map[string]struct{})

		for i := 0; i < 1000; i++ {
			code, err := Generate(DefaultLength)
			require.NoError(t, err)

			_, dup := seen[code]
			assert.False(t, dup, "duplicate code %q", code)
			seen[code] = struct{}{}
		}
	})
}

func TestValidateAlias(t *testing.T) {
	tests := []struct {
		name    string
		alias   string
		wantErr error
	}{
		{name: "valid", alias: "my-link_42", wantErr: nil},
		{name: "minimum length", alias: "abc", wantErr: nil},
		{name: "maximum length", alias: strings.Repeat("a", MaxAliasLength), wantErr: nil},
		{name: "too short", alias: "ab", wantErr: ErrAliasLength},
		{name: "too long", alias: strings.Repeat("a", MaxAliasLength+1), wantErr: ErrAliasLength},
		{name: "spaces", alias: "my link", wantErr: ErrAliasCharset},
		{name: "slash", alias: "my/link", wantErr: ErrAliasCharset},
		{name: "unicode", alias: "ссылка", wantErr: ErrAliasCharset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAlias(tt.alias)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "my-link", Normalize("My-Link"))
	assert.Equal(t, "already", Normalize("already"))
}
