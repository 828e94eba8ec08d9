// Package identity is the address validation boundary. Every admin, operator,
// depositor and protocol target identity passes through Validate before it is
// saved or compared.
package identity

import (
	"fmt"

	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
)

// Validate checks the address and returns its canonical (EIP-55 checksummed)
// form. Comparisons elsewhere assume both sides went through Validate.
func Validate(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", apperrors.New(apperrors.ErrInvalidRequest,
			fmt.Sprintf("invalid address: %q", addr), nil)
	}
	return common.HexToAddress(addr).Hex(), nil
}

// Equal compares two raw address strings in canonical form.
func Equal(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}
