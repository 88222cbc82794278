// Package broker defines the order routing boundary: order requests, order
// status updates, fills, and the Gateway that carries them to a market.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/portfolio/market"
)

// Gateway routes orders to a market. Results come back asynchronously
// through the Handler the gateway was bound to.
type Gateway interface {
	SendOrder(ctx context.Context, req OrderRequest) error
	CancelOrder(ctx context.Context, orderID string) error
}

// Handler receives order status updates and fills from a Gateway.
type Handler interface {
	OnOrder(u OrderUpdate)
	OnTrade(f Fill)
}

// OrderRequest is one executable order produced by the offset converter.
// Price is a limit hint; Volume is always positive.
type OrderRequest struct {
	ID        string           `json:"id,omitempty"`
	Contract  market.Contract  `json:"contract"`
	Direction market.Direction `json:"direction"`
	Offset    market.Offset    `json:"offset"`
	Volume    int64            `json:"volume"`
	Price     float64          `json:"price"`
	Reference string           `json:"reference,omitempty"`
}

func (r OrderRequest) String() string {
	return fmt.Sprintf("%s %s %s %d @ %g", r.Contract, r.Direction, r.Offset, r.Volume, r.Price)
}

type OrderStatus int

const (
	StatusSubmitting OrderStatus = iota
	StatusNotTraded
	StatusPartTraded
	StatusAllTraded
	StatusCancelled
	StatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case StatusSubmitting:
		return "submitting"
	case StatusNotTraded:
		return "not_traded"
	case StatusPartTraded:
		return "part_traded"
	case StatusAllTraded:
		return "all_traded"
	case StatusCancelled:
		return "cancelled"
	case StatusRejected:
		return "rejected"
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

// Active reports whether an order in this status can still trade.
func (s OrderStatus) Active() bool {
	return s == StatusSubmitting || s == StatusNotTraded || s == StatusPartTraded
}

type OrderUpdate struct {
	OrderID  string
	Contract market.Contract
	Status   OrderStatus
	Traded   int64
	Time     time.Time
}

// Fill is one execution against an order. TradeID is unique per market;
// gateways may deliver the same fill more than once.
type Fill struct {
	TradeID   string
	OrderID   string
	Contract  market.Contract
	Direction market.Direction
	Offset    market.Offset
	Volume    int64
	Price     float64
	Time      time.Time
}
