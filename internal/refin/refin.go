// Package refin — живые источники опорного фронта 1 Гц: вход GPIO, kernel PPS (/dev/ppsN)
// и тикер реального времени для модели.
package refin

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/shiwa/timecard-mini/tcxo-disc/internal/config"
)

// ErrUnsupported — источник недоступен на этой платформе.
var ErrUnsupported = errors.New("refin: source not supported on this platform")

// Edge — один опорный фронт.
type Edge struct {
	Seq    uint32    // номер фронта у источника
	Missed uint32    // пропущено фронтов с прошлого Wait
	Time   time.Time // метка времени фронта
}

// EdgeSource — источник опорных фронтов.
type EdgeSource interface {
	// Name возвращает имя источника для логов
	Name() string
	// Wait ждёт следующий фронт не дольше timeout; ok=false — фронта не было.
	Wait(timeout time.Duration) (e Edge, ok bool, err error)
	// Close освобождает ресурсы
	Close() error
}

// NewFromConfig создаёт источник по секции reference.
func NewFromConfig(c config.ReferenceConfig) (EdgeSource, error) {
	switch c.Source {
	case config.SourceSim:
		return NewTicker(clockwork.NewRealClock(), time.Second), nil
	case config.SourceGPIO:
		p := gpioreg.ByName(c.Pin)
		if p == nil {
			return nil, fmt.Errorf("gpio pin %q not found", c.Pin)
		}
		g, err := NewGPIO(p, nil)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.SourceKernelPPS:
		k, err := OpenKernelPPS(c.Index)
		if err != nil {
			return nil, err
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown reference source: %s", c.Source)
	}
}

// Ticker — фронты от часов: для модели, которую надо вести в реальном времени.
type Ticker struct {
	clock  clockwork.Clock
	ticker clockwork.Ticker
	period time.Duration
	seq    uint32
}

// NewTicker создаёт тикер с периодом period.
func NewTicker(clock clockwork.Clock, period time.Duration) *Ticker {
	return &Ticker{clock: clock, ticker: clock.NewTicker(period), period: period}
}

// Name возвращает имя источника
func (t *Ticker) Name() string {
	return fmt.Sprintf("ticker:%s", t.period)
}

// Wait реализует EdgeSource.
func (t *Ticker) Wait(timeout time.Duration) (Edge, bool, error) {
	select {
	case ts := <-t.ticker.Chan():
		t.seq++
		return Edge{Seq: t.seq, Time: ts}, true, nil
	case <-t.clock.After(timeout):
		return Edge{}, false, nil
	}
}

// Close останавливает тикер
func (t *Ticker) Close() error {
	t.ticker.Stop()
	return nil
}
