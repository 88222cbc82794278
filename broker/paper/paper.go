// Package paper is an in-process Gateway. Orders fill at their limit price,
// either immediately or when a test or driver calls Fill.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/portfolio/broker"
	"github.com/rustyeddy/portfolio/internal/id"
)

var (
	ErrNotBound      = errors.New("paper: no handler bound")
	ErrOrderNotFound = errors.New("paper: order not found")
	ErrOrderInactive = errors.New("paper: order is no longer active")
)

type order struct {
	req    broker.OrderRequest
	status broker.OrderStatus
	traded int64
}

// Gateway implements broker.Gateway. Handler callbacks are made without
// holding the gateway lock, so a handler may call back into the gateway.
type Gateway struct {
	// AutoFill fills every accepted order in full inside SendOrder.
	AutoFill bool
	// Now stamps updates and fills. Defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	handler broker.Handler
	orders  map[string]*order
	sent    []broker.OrderRequest
	fills   []broker.Fill
	orderID id.Sequence
	tradeID id.Sequence
}

func New(autoFill bool) *Gateway {
	return &Gateway{
		AutoFill: autoFill,
		orders:   make(map[string]*order),
		orderID:  id.Sequence{Prefix: "P"},
		tradeID:  id.Sequence{Prefix: "PT"},
	}
}

// Bind sets the handler that receives order updates and fills.
func (g *Gateway) Bind(h broker.Handler) {
	g.mu.Lock()
	g.handler = h
	g.mu.Unlock()
}

func (g *Gateway) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gateway) SendOrder(ctx context.Context, req broker.OrderRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Volume <= 0 {
		return fmt.Errorf("paper: order volume must be positive, got %d", req.Volume)
	}

	g.mu.Lock()
	h := g.handler
	if h == nil {
		g.mu.Unlock()
		return ErrNotBound
	}
	if req.ID == "" {
		req.ID = g.orderID.Next()
	}
	if _, dup := g.orders[req.ID]; dup {
		g.mu.Unlock()
		return fmt.Errorf("paper: duplicate order id %q", req.ID)
	}
	g.orders[req.ID] = &order{req: req, status: broker.StatusNotTraded}
	g.sent = append(g.sent, req)
	autoFill := g.AutoFill
	g.mu.Unlock()

	h.OnOrder(broker.OrderUpdate{
		OrderID:  req.ID,
		Contract: req.Contract,
		Status:   broker.StatusNotTraded,
		Time:     g.now(),
	})

	if autoFill {
		return g.Fill(req.ID, req.Volume, req.Price)
	}
	return nil
}

func (g *Gateway) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	o, ok := g.orders[orderID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrOrderNotFound, orderID)
	}
	if !o.status.Active() {
		g.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrOrderInactive, orderID)
	}
	o.status = broker.StatusCancelled
	u := broker.OrderUpdate{OrderID: orderID, Contract: o.req.Contract, Status: o.status, Traded: o.traded, Time: g.now()}
	h := g.handler
	g.mu.Unlock()

	if h != nil {
		h.OnOrder(u)
	}
	return nil
}

// Fill executes volume lots of an active order at price and reports the
// fill and the resulting order status.
func (g *Gateway) Fill(orderID string, volume int64, price float64) error {
	g.mu.Lock()
	o, ok := g.orders[orderID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrOrderNotFound, orderID)
	}
	if !o.status.Active() {
		g.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrOrderInactive, orderID)
	}
	if remaining := o.req.Volume - o.traded; volume <= 0 || volume > remaining {
		g.mu.Unlock()
		return fmt.Errorf("paper: fill %d lots of %q, %d remaining", volume, orderID, remaining)
	}

	now := g.now()
	o.traded += volume
	o.status = broker.StatusPartTraded
	if o.traded == o.req.Volume {
		o.status = broker.StatusAllTraded
	}
	f := broker.Fill{
		TradeID:   g.tradeID.Next(),
		OrderID:   orderID,
		Contract:  o.req.Contract,
		Direction: o.req.Direction,
		Offset:    o.req.Offset,
		Volume:    volume,
		Price:     price,
		Time:      now,
	}
	g.fills = append(g.fills, f)
	u := broker.OrderUpdate{OrderID: orderID, Contract: o.req.Contract, Status: o.status, Traded: o.traded, Time: now}
	h := g.handler
	g.mu.Unlock()

	h.OnTrade(f)
	h.OnOrder(u)
	return nil
}

// Redeliver sends an earlier fill to the handler again, the way a
// reconnecting market feed may.
func (g *Gateway) Redeliver(tradeID string) error {
	g.mu.Lock()
	h := g.handler
	var found *broker.Fill
	for i := range g.fills {
		if g.fills[i].TradeID == tradeID {
			f := g.fills[i]
			found = &f
			break
		}
	}
	g.mu.Unlock()

	if found == nil {
		return fmt.Errorf("paper: no fill %q", tradeID)
	}
	h.OnTrade(*found)
	return nil
}

// Sent returns every accepted order request in arrival order.
func (g *Gateway) Sent() []broker.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]broker.OrderRequest(nil), g.sent...)
}

func (g *Gateway) Fills() []broker.Fill {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]broker.Fill(nil), g.fills...)
}

// Active lists the IDs of orders that can still trade, in send order.
func (g *Gateway) Active() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, r := range g.sent {
		if g.orders[r.ID].status.Active() {
			out = append(out, r.ID)
		}
	}
	return out
}
