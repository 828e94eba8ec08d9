// Package venue is the quote/execute boundary to the external swap venue
// the conversion router trades through, plus a streaming rate feed.
package venue

import (
	"context"

	"github.com/astrobalance/vaultgate/internal/model"
)

// Quoter is the venue port the conversion router depends on. Simulate asks
// the venue for the expected output of a swap; BuildSwap produces the
// outbound instruction carrying the enforced minimum-out floor. The venue is
// expected to abort the swap when it cannot meet the floor.
type Quoter interface {
	Simulate(ctx context.Context, offerDenom, askDenom string, amount uint64) (uint64, error)
	BuildSwap(offerDenom, askDenom string, amount, minimumReceive uint64) (model.Instruction, error)
}
