package indicators

import (
	"fmt"
	"math"
)

// Window is a fixed-size ring of the most recent float values.
type Window struct {
	buf  []float64
	next int
	n    int
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{buf: make([]float64, size)}
}

func (w *Window) Size() int  { return len(w.buf) }
func (w *Window) Len() int   { return w.n }
func (w *Window) Full() bool { return w.n == len(w.buf) }

func (w *Window) Reset() {
	w.next, w.n = 0, 0
}

func (w *Window) Push(v float64) {
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)
	if w.n < len(w.buf) {
		w.n++
	}
}

// Last is the most recently pushed value, or 0 when empty.
func (w *Window) Last() float64 {
	if w.n == 0 {
		return 0
	}
	return w.buf[(w.next-1+len(w.buf))%len(w.buf)]
}

func (w *Window) values() []float64 {
	if w.n < len(w.buf) {
		return w.buf[:w.n]
	}
	return w.buf
}

func (w *Window) Mean() float64 {
	if w.n == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range w.values() {
		sum += v
	}
	return sum / float64(w.n)
}

// StdDev is the population standard deviation of the window.
func (w *Window) StdDev() float64 {
	if w.n < 2 {
		return 0
	}
	mean := w.Mean()
	ss := 0.0
	for _, v := range w.values() {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(w.n))
}

// Bollinger tracks a rolling mean and a band of Dev standard deviations
// around it over an arbitrary series (a spread, a ratio, a close).
type Bollinger struct {
	Dev float64
	w   *Window
}

func NewBollinger(period int, dev float64) *Bollinger {
	return &Bollinger{Dev: dev, w: NewWindow(period)}
}

func (b *Bollinger) Name() string   { return fmt.Sprintf("BOLL(%d,%g)", b.w.Size(), b.Dev) }
func (b *Bollinger) Warmup() int    { return b.w.Size() }
func (b *Bollinger) Reset()         { b.w.Reset() }
func (b *Bollinger) Push(v float64) { b.w.Push(v) }
func (b *Bollinger) Ready() bool    { return b.w.Full() }

// Bands returns the middle, upper and lower band.
func (b *Bollinger) Bands() (mid, up, down float64) {
	mid = b.w.Mean()
	std := b.w.StdDev()
	return mid, mid + b.Dev*std, mid - b.Dev*std
}
