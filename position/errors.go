package position

import (
	"fmt"

	"github.com/rustyeddy/portfolio/market"
)

// InventoryError is returned when a close would take more than a bucket
// holds. It is never clamped away: the fill and the ledger disagree.
type InventoryError struct {
	Contract market.Contract
	Bucket   string
	Have     int64
	Want     int64
}

func (e *InventoryError) Error() string {
	if e.Contract == "" {
		return fmt.Sprintf("position: insufficient %s inventory: have %d, want %d", e.Bucket, e.Have, e.Want)
	}
	return fmt.Sprintf("position: %s: insufficient %s inventory: have %d, want %d", e.Contract, e.Bucket, e.Have, e.Want)
}
