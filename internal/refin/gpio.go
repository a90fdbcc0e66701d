package refin

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
)

// GPIO — вход PPS на пине; фронт метится временем clock в момент пробуждения.
type GPIO struct {
	pin   gpio.PinIn
	clock clockwork.Clock
	seq   uint32
}

// NewGPIO настраивает пин на вход с прерыванием по переднему фронту. clock nil — реальные часы.
func NewGPIO(pin gpio.PinIn, clock clockwork.Clock) (*GPIO, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("gpio %s: %w", pin.Name(), err)
	}
	return &GPIO{pin: pin, clock: clock}, nil
}

// Name возвращает имя источника
func (g *GPIO) Name() string {
	return "gpio:" + g.pin.Name()
}

// Wait реализует EdgeSource.
func (g *GPIO) Wait(timeout time.Duration) (Edge, bool, error) {
	if !g.pin.WaitForEdge(timeout) {
		return Edge{}, false, nil
	}
	g.seq++
	return Edge{Seq: g.seq, Time: g.clock.Now()}, true, nil
}

// Close снимает настройку пина
func (g *GPIO) Close() error {
	return g.pin.Halt()
}
