// Package counter — модель внешнего счётчика окна: считает циклы генератора между
// импульсами 1 Гц и через span импульсов выдаёт (count, valid) на один такт.
package counter

import (
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/window"
	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

// Timebase — непрерывный счёт циклов генератора (не сбрасывается).
type Timebase interface {
	Now() uint64
}

// Window — счётчик одного окна.
type Window struct {
	span uint32
	tb   Timebase

	open   bool
	start  uint64
	pulses uint32
}

// New создаёт счётчик окна длиной span импульсов.
func New(span uint32, tb Timebase) *Window {
	if span == 0 {
		span = 1
	}
	return &Window{span: span, tb: tb}
}

// NewSet — три счётчика 1 с / 10 с / 100 с над общим генератором.
func NewSet(tb Timebase) [regmap.NumWindows]window.Counter {
	var set [regmap.NumWindows]window.Counter
	for _, w := range regmap.Windows {
		set[w] = New(w.Span(), tb)
	}
	return set
}

// Span — длина окна в импульсах.
func (c *Window) Span() uint32 {
	return c.span
}

// Open — окно открыто первым импульсом после сброса.
func (c *Window) Open() bool {
	return c.open
}

// Step реализует window.Counter. Первый импульс после сброса открывает окно,
// span-й импульс закрывает его и сразу открывает следующее.
func (c *Window) Step(pulse, reset bool) window.Sample {
	if reset {
		c.Reset()
		return window.Sample{}
	}
	if !pulse {
		return window.Sample{}
	}
	now := c.tb.Now()
	if !c.open {
		c.open = true
		c.start = now
		c.pulses = 0
		return window.Sample{}
	}
	c.pulses++
	if c.pulses < c.span {
		return window.Sample{}
	}
	s := window.Sample{Count: now - c.start, Valid: true}
	c.start = now
	c.pulses = 0
	return s
}

// Reset возвращает счётчик в исходное состояние.
func (c *Window) Reset() {
	c.open = false
	c.start = 0
	c.pulses = 0
}
