// Package discipline — контроллер измерения ошибки частоты и арбитража прерывания.
//
// Один вызов Tick — один фронт тактового сигнала шины/управления. Порядок внутри фронта:
//  1. шина: чтение защёлкивает значения регистров до фронта, запись раскладывается в команды;
//  2. цепочка опоры (селектор → синхронизатор → импульс) и внешние счётчики окон;
//  3. оценка окон (только при irq_enable);
//  4. импульс IRQ-clear, защёлкнутый предыдущей записью, сбрасывает все error_valid;
//  5. команды применяются и видны со следующего такта.
package discipline

import (
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/irq"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/logger"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/refsel"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/regfile"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/window"
	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

// Inputs — входы контроллера в одном такте.
type Inputs struct {
	PPSLevel bool   // сырой уровень входа 1PPS
	RefEdges uint64 // фронты 10 МГц с прошлого такта
	Bus      regfile.Request
}

// Outputs — выходы контроллера в такте (значения регистров до фронта).
type Outputs struct {
	regfile.Response
	IRQ bool
}

// Observer получает события арбитра (переходы и сбросы) — для логов и тестов.
type Observer func(cycle uint64, ev irq.Event)

// Option — настройка контроллера.
type Option func(*Controller)

// WithSyncStages задаёт глубину синхронизатора опоры.
func WithSyncStages(k int) Option {
	return func(c *Controller) {
		c.syncStages = k
	}
}

// WithObserver подписывает на события арбитра.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// Controller — единственный владелец состояния дисциплинирования.
type Controller struct {
	syncStages int
	observer   Observer

	chain    *refsel.Chain
	counters [regmap.NumWindows]window.Counter
	windows  window.Set
	arb      irq.Arbiter
	regs     regfile.File

	irqEnable  bool
	clearPulse bool
	pending    []Command
	cycle      uint64
}

// resetter — счётчики, умеющие глобальный сброс.
type resetter interface {
	Reset()
}

// New создаёт контроллер над тремя внешними счётчиками окон (1 с, 10 с, 100 с).
func New(counters [regmap.NumWindows]window.Counter, opts ...Option) *Controller {
	c := &Controller{
		syncStages: refsel.DefaultSyncStages,
		counters:   counters,
	}
	for _, o := range opts {
		o(c)
	}
	c.chain = refsel.NewChain(c.syncStages)
	c.Reset()
	return c
}

// Reset — системный сброс: делитель в предзагрузку, всё состояние в ноль.
func (c *Controller) Reset() {
	c.chain.Reset()
	c.windows = window.NewSet()
	c.arb.Reset()
	c.regs.Reset()
	c.irqEnable = false
	c.clearPulse = false
	c.pending = nil
	for _, cnt := range c.counters {
		if r, ok := cnt.(resetter); ok {
			r.Reset()
		}
	}
}

// Apply ставит команды в очередь; они применяются на следующем фронте вместе с записями шины.
func (c *Controller) Apply(cmds ...Command) {
	c.pending = append(c.pending, cmds...)
}

// Tick — один фронт такта. Возвращает выходы, действовавшие в этом такте.
func (c *Controller) Tick(in Inputs) Outputs {
	out := Outputs{Response: c.regs.Outputs(), IRQ: c.arb.Line()}

	// чтение видит регистры до фронта, как защёлка на выходе мультиплексора
	ctl, wrote := c.regs.Edge(in.Bus, c)

	pulse := c.chain.Step(in.PPSLevel, in.RefEdges)
	for _, w := range regmap.Windows {
		m := &c.windows[w]
		var s window.Sample
		if cnt := c.counters[w]; cnt != nil {
			s = cnt.Step(pulse, m.ResetRequest)
		}
		if m.ResetRequest {
			m.Reset()
			continue
		}
		if m.Evaluate(s, c.irqEnable) {
			logger.Debug("cycle %d: window %s error %d out of tolerance ±%d", c.cycle, w, m.Error, m.Tolerance)
		} else if s.Valid && c.irqEnable {
			logger.Debug("cycle %d: window %s error %d", c.cycle, w, m.Error)
		}
	}

	ev := c.arb.Edge(&c.windows, c.clearPulse)
	c.clearPulse = false
	if c.observer != nil && (ev.From != ev.To || ev.Cleared) {
		c.observer(c.cycle, ev)
	}

	if wrote {
		logger.Debug("cycle %d: CONTROL <- %#08b", c.cycle, ctl.Byte())
		c.pending = append(c.pending, CommandsFor(ctl)...)
	}
	for _, cmd := range c.pending {
		cmd.apply(c)
	}
	c.pending = c.pending[:0]

	c.cycle++
	return out
}

// ErrStatus реализует regfile.View.
func (c *Controller) ErrStatus() uint8 {
	return regmap.StatusByte(c.windows.Flags())
}

// Err реализует regfile.View.
func (c *Controller) Err(w regmap.Window) int32 {
	return c.windows[w].Error
}

// Cycle — число отработанных фронтов.
func (c *Controller) Cycle() uint64 {
	return c.cycle
}

// IRQ — текущий уровень линии прерывания.
func (c *Controller) IRQ() bool {
	return c.arb.Line()
}

// Latency — задержка цепочки опоры в тактах.
func (c *Controller) Latency() int {
	return c.chain.Latency()
}

// Snapshot — копия состояния контроллера.
type Snapshot struct {
	Cycle        uint64
	Mode         regmap.TuneMode
	IrqEnable    bool
	ClearPending bool
	IRQ          bool
	State        irq.State
	Remaining    uint32 // фронтов до импульса делителя
	Pending      uint64 // переносов делителя, ещё не выданных селектором
	Windows      window.Set
}

// Snapshot возвращает копию состояния (для логов, тестов и отчётов).
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Cycle:        c.cycle,
		Mode:         c.chain.Selector().Mode(),
		IrqEnable:    c.irqEnable,
		ClearPending: c.clearPulse,
		IRQ:          c.arb.Line(),
		State:        c.arb.State(),
		Remaining:    c.chain.Selector().Divider().Remaining(),
		Pending:      c.chain.Selector().Pending(),
		Windows:      c.windows,
	}
}
