package market

import "time"

// Bar is one OHLCV bar for a single contract.
type Bar struct {
	Contract Contract
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Flat returns a zero-volume bar at t with every price set to b.Close.
// Used when a caller asks for missing bars to be filled forward.
func (b Bar) Flat(t time.Time) Bar {
	return Bar{
		Contract: b.Contract,
		Time:     t,
		Open:     b.Close,
		High:     b.Close,
		Low:      b.Close,
		Close:    b.Close,
	}
}
