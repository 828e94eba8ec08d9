package identity

import (
	"testing"

	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
)

func TestValidateCanonicalizes(t *testing.T) {
	lower, err := Validate("0x00000000000000000000000000000000000000a1")
	assert.NoError(t, err)
	upper, err := Validate("0x00000000000000000000000000000000000000A1")
	assert.NoError(t, err)
	// both casings map to the same canonical form
	assert.Equal(t, lower, upper)
	assert.Len(t, lower, 42)
}

func TestValidateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "inj1xyz", "0x123", "not-an-address"} {
		_, err := Validate(in)
		if err == nil {
			t.Fatalf("expected error for %q", in)
		}
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
	}
}

func TestEqualIgnoresCase(t *testing.T) {
	assert.True(t, Equal(
		"0x00000000000000000000000000000000000000a1",
		"0x00000000000000000000000000000000000000A1",
	))
	assert.False(t, Equal("0x00000000000000000000000000000000000000a1", "bogus"))
}
