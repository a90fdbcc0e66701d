package sim

import (
	"context"
	"fmt"
	"time"

	"tinygo.org/x/drivers"

	"github.com/shiwa/timecard-mini/tcxo-disc/internal/counter"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/device"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/discipline"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/irq"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/logger"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/refsel"
	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/hostdrv"
	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

// refPeriod — период опоры 10 МГц.
const refPeriod = 100 * time.Nanosecond

// Config — параметры прогона.
type Config struct {
	Mode       regmap.TuneMode
	Seconds    int
	PulseWidth int  // тактов высокого уровня PPS
	AutoClear  bool // сбрасывать IRQ после чтения ошибок
	NoIRQ      bool // не разрешать irq_enable при старте
	SyncStages int
	Addr       uint16 // адрес I2C-цели; 0 — device.DefaultAddr
}

// Report — состояние после очередной секунды опоры.
type Report struct {
	Second int
	IRQ    bool
	Alarms [regmap.NumWindows]bool
	Errors [regmap.NumWindows]int32
	PPB    [regmap.NumWindows]float64
}

func (r Report) String() string {
	return fmt.Sprintf("t=%ds irq=%v err=%v alarms=%v", r.Second, r.IRQ, r.Errors, r.Alarms)
}

// Runner — генератор, контроллер и хостовый драйвер, связанные через I2C-цель.
type Runner struct {
	cfg  Config
	osc  *Oscillator
	dev  *device.Device
	host *hostdrv.Dev
	ref  time.Duration // время опоры 10 МГц, отданное делителю
}

// New собирает стенд над генератором osc.
func New(osc *Oscillator, cfg Config) *Runner {
	if cfg.PulseWidth <= 0 {
		cfg.PulseWidth = 1
	}
	if cfg.SyncStages <= 0 {
		cfg.SyncStages = refsel.DefaultSyncStages
	}
	ctl := discipline.New(counter.NewSet(osc),
		discipline.WithSyncStages(cfg.SyncStages),
		discipline.WithObserver(logEvent),
	)
	var opts []device.Option
	if cfg.Addr != 0 {
		opts = append(opts, device.WithAddr(cfg.Addr))
	}
	dev := device.New(ctl, opts...)
	return &Runner{
		cfg:  cfg,
		osc:  osc,
		dev:  dev,
		host: hostdrv.New(dev, dev.Addr()),
	}
}

// Device — модель устройства стенда (для моста и тестов).
func (r *Runner) Device() *device.Device {
	return r.dev
}

// Oscillator — генератор стенда.
func (r *Runner) Oscillator() *Oscillator {
	return r.osc
}

// Start записывает CONTROL через хостовый драйвер: режим и irq_enable.
func (r *Runner) Start() error {
	if err := r.host.Configure(r.cfg.Mode, !r.cfg.NoIRQ); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	return nil
}

// Run прогоняет cfg.Seconds секунд опоры; fn (если задан) получает отчёт после каждой.
func (r *Runner) Run(ctx context.Context, fn func(Report)) ([]Report, error) {
	if err := r.Start(); err != nil {
		return nil, err
	}
	logger.Info("sim: mode %s, nominal %s, offset %+.3f ppb, %d s", r.cfg.Mode, r.osc.Nominal(), r.osc.OffsetPPB(), r.cfg.Seconds)

	reports := make([]Report, 0, r.cfg.Seconds)
	for s := 1; s <= r.cfg.Seconds; s++ {
		select {
		case <-ctx.Done():
			return reports, ctx.Err()
		default:
		}
		r.Pulse(time.Second)
		rep, err := r.Poll(s)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
		if fn != nil {
			fn(rep)
		}
	}
	return reports, nil
}

// Pulse — интервал опоры длиной d (номинально секунда) в сжатом времени,
// закрытый опорным фронтом. Такты шины генератор не продвигают.
func (r *Runner) Pulse(d time.Duration) {
	lat := r.dev.Latency() + 1
	switch r.cfg.Mode {
	case regmap.ModeDirectPPS:
		r.osc.Advance(d)
		for i := 0; i < r.cfg.PulseWidth; i++ {
			r.dev.Step(true, 0)
		}
		r.dev.Step(false, 0)
		r.dev.Idle(lat)
	case regmap.ModeDerived10MHz:
		// фронты отдаются пачками до переноса делителя; генератор доводится ровно до фронта переноса
		if d < 0 {
			d = 0
		}
		end := r.ref + d
		done, last := uint64(r.ref/refPeriod), uint64(end/refPeriod)
		at := r.ref
		for done < last {
			n := last - done
			if rem := uint64(r.dev.Snapshot().Remaining); n > rem {
				n = rem
			}
			done += n
			edgeAt := time.Duration(done) * refPeriod
			r.osc.Advance(edgeAt - at)
			at = edgeAt
			r.dev.Step(false, n)
			r.dev.Idle(lat)
		}
		r.osc.Advance(end - at)
		r.ref = end
	default:
		r.osc.Advance(d)
		r.dev.Idle(1)
	}
}

// Poll читает статус и ошибки через hostdrv; при AutoClear сбрасывает IRQ.
func (r *Runner) Poll(s int) (Report, error) {
	rep := Report{Second: s, IRQ: r.dev.IRQ()}
	if err := r.host.Update(drivers.Time); err != nil {
		return rep, fmt.Errorf("read registers: %w", err)
	}
	rep.Alarms = r.host.Alarms()
	for _, w := range regmap.Windows {
		rep.Errors[w] = r.host.LastError(w)
		rep.PPB[w] = r.host.PPB(w)
	}
	if rep.IRQ && r.cfg.AutoClear {
		if err := r.host.ClearIRQ(); err != nil {
			return rep, fmt.Errorf("clear irq: %w", err)
		}
		// импульс clear уже отработал в такте после записи
		st, err := r.host.Status()
		if err != nil {
			return rep, fmt.Errorf("read status: %w", err)
		}
		if st != ([regmap.NumWindows]bool{}) {
			logger.Error("sim: alarms %v survived clear", st)
		}
	}
	return rep, nil
}

func logEvent(cycle uint64, ev irq.Event) {
	switch {
	case ev.Raised():
		logger.Info("cycle %d: IRQ raised, alarms %v", cycle, ev.Flags)
	case ev.Dropped():
		logger.Info("cycle %d: IRQ dropped", cycle)
	default:
		logger.Debug("cycle %d: clear with IRQ %s", cycle, ev.To)
	}
}
