// Package clocksync предоставляет цикл дисциплинирования: опорные фронты → контроллер ошибки частоты,
// отчёты и тревоги в лог, мост к регистрам по последовательному порту.
package clocksync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shiwa/timecard-mini/tcxo-disc/internal/bridge"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/config"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/drift"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/logger"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/refin"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/sim"
	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

// Options — зависимости демона, которые можно подменить (тесты, встраивание).
type Options struct {
	Quiet    bool
	Clock    clockwork.Clock  // nil — реальные часы
	Source   refin.EdgeSource // nil — по cfg.Reference
	Bridge   io.ReadWriter    // nil — по cfg.Bridge
	OnReport func(sim.Report) // после каждого опорного фронта
}

// RunDaemon запускает цикл дисциплинирования до отмены ctx.
func RunDaemon(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("clocksync: nil config")
	}
	logger.Quiet = opts.Quiet
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	nominal, err := cfg.Oscillator.Frequency()
	if err != nil {
		return err
	}
	mode, err := cfg.Reference.TuneMode()
	if err != nil {
		return err
	}

	src := opts.Source
	if src == nil {
		src, err = refin.NewFromConfig(cfg.Reference)
		if err != nil {
			return fmt.Errorf("reference: %w", err)
		}
	}
	defer src.Close()

	r := sim.New(sim.NewOscillator(nominal, cfg.Oscillator.OffsetPPB), sim.Config{
		Mode:       mode,
		PulseWidth: 1,
		AutoClear:  cfg.Discipline.AutoClear,
		NoIRQ:      !cfg.Discipline.IrqEnable,
		SyncStages: cfg.Discipline.SyncStages,
		Addr:       cfg.I2C.Addr,
	})
	if err := r.Start(); err != nil {
		return err
	}

	if err := startBridge(ctx, cfg.Bridge, opts.Bridge, r); err != nil {
		return err
	}

	interval := cfg.Discipline.Interval()
	timeout := cfg.Reference.WaitTimeout()
	logger.Info("clocksync: source=%s mode=%s nominal=%s interval=%v", src.Name(), mode, nominal, interval)

	modelTime := cfg.Reference.Source == config.SourceSim && opts.Source == nil
	est := drift.New(drift.DefaultWindow)
	lastReport := opts.Clock.Now()
	var last refin.Edge
	var n int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		e, ok, err := src.Wait(timeout)
		if err != nil {
			return fmt.Errorf("reference %s: %w", src.Name(), err)
		}
		if !ok {
			logger.Info("no reference edge from %s for %v", src.Name(), timeout)
			continue
		}
		if e.Missed > 0 {
			logger.Info("reference %s: missed %d edges", src.Name(), e.Missed)
		}

		d := time.Second
		if n > 0 && !modelTime {
			d = e.Time.Sub(last.Time)
			if d <= 0 {
				logger.Error("reference %s: non-monotonic edge time %v after %v", src.Name(), e.Time, last.Time)
				d = time.Second
			}
		}
		last = e
		n++
		r.Pulse(d)

		rep, err := r.Poll(n)
		if err != nil {
			return err
		}
		logAlarms(rep)
		// окно 1 с закрывается на каждом фронте начиная со второго
		if mode != regmap.ModeDisabled && n >= 2 {
			est.Add(rep.PPB[regmap.Window1s], d.Seconds())
		}
		if opts.OnReport != nil {
			opts.OnReport(rep)
		}
		if now := opts.Clock.Now(); now.Sub(lastReport) >= interval {
			lastReport = now
			logger.Info("clocksync: %d edges, errors 1s=%d 10s=%d 100s=%d, irq=%v",
				n, rep.Errors[regmap.Window1s], rep.Errors[regmap.Window10s], rep.Errors[regmap.Window100s], rep.IRQ)
			if perDay, ok := est.PerDay(); ok {
				logger.Info("clocksync: mean %+.1f ppb over %d samples, drift %+.2f ppb/day", est.Mean(), est.Len(), perDay)
			}
		}
	}
}

func startBridge(ctx context.Context, c config.BridgeConfig, rw io.ReadWriter, r *sim.Runner) error {
	if rw == nil {
		if !c.Enable {
			return nil
		}
		p, err := bridge.OpenPort(c.Device, c.Baud, 0)
		if err != nil {
			return fmt.Errorf("bridge: %w", err)
		}
		rw = p
	}
	srv := bridge.NewServer(r.Device())
	go func() {
		if err := srv.Serve(ctx, rw); err != nil {
			logger.Error("bridge: %v", err)
		}
	}()
	return nil
}

func logAlarms(rep sim.Report) {
	for _, w := range regmap.Windows {
		if rep.Alarms[w] {
			logger.Info("alarm %s: error %d cycles (%+.1f ppb)", w, rep.Errors[w], rep.PPB[w])
		}
	}
}
