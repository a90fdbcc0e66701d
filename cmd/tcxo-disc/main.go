// tcxo-disc — контроллер ошибки частоты VCTCXO 38.4 МГц: окна 1/10/100 с, регистры и прерывание.
//
// Режимы:
//   - прогон модели в сжатом времени (по умолчанию): генератор с заданной ошибкой, отчёт по секундам
//   - демон (-run): опора с GPIO, /dev/ppsN или тикера, тревоги в лог, мост к регистрам по порту
//
// Использование:
//
//	tcxo-disc -sim 120 -offset-ppb 50              — 120 секунд модели, +50 ppb
//	tcxo-disc -run -config tcxo-disc.yml           — демон
//	tcxo-disc -run -serve /dev/ttyUSB0 -verbose    — демон с мостом к регистрам
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"periph.io/x/conn/v3/physic"

	"github.com/shiwa/timecard-mini/tcxo-disc/internal/config"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/logger"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/sim"
	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/clocksync"
	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

func main() {
	run := flag.Bool("run", false, "запуск демона с живой опорой")
	seconds := flag.Int("sim", 12, "секунд модели (без -run)")
	configPath := flag.String("config", "", "путь к YAML конфигу (по умолчанию tcxo-disc.yml)")
	mode := flag.String("mode", "", "режим подстройки: disabled, pps, 10mhz (переопределяет config)")
	offset := flag.Float64("offset-ppb", 0, "ошибка частоты модели в ppb (переопределяет config)")
	serve := flag.String("serve", "", "последовательный порт моста к регистрам (включает мост)")
	autoClear := flag.Bool("auto-clear", false, "сбрасывать IRQ после чтения ошибок")
	var nominal physic.Frequency
	flag.Var(&nominal, "nominal", "номинал генератора, например 38.4MHz (переопределяет config)")
	quiet := flag.Bool("quiet", false, "меньше вывода")
	verbose := flag.Bool("verbose", false, "отладочный вывод: записи CONTROL, каждая оценка окна")
	flag.Parse()

	logger.Quiet = *quiet
	logger.Verbose = *verbose

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(cfg, set, overrides{
		mode:      *mode,
		offsetPPB: *offset,
		nominal:   nominal,
		serve:     *serve,
		autoClear: *autoClear,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("получен сигнал %v, завершение...", sig)
		cancel()
	}()

	if *run {
		if err := clocksync.RunDaemon(ctx, cfg, clocksync.Options{Quiet: *quiet}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("%v", err)
			os.Exit(1)
		}
		return
	}
	if err := runSim(ctx, cfg, *seconds, *quiet); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// overrides — значения флагов, переопределяющих config.
type overrides struct {
	mode      string
	offsetPPB float64
	nominal   physic.Frequency
	serve     string
	autoClear bool
}

// applyFlags переносит в cfg только явно заданные флаги (set — имена из flag.Visit).
func applyFlags(cfg *config.Config, set map[string]bool, o overrides) {
	if set["mode"] {
		cfg.Reference.Mode = o.mode
	}
	if set["offset-ppb"] {
		cfg.Oscillator.OffsetPPB = o.offsetPPB
	}
	if set["nominal"] {
		cfg.Oscillator.Nominal = o.nominal.String()
	}
	if set["serve"] {
		cfg.Bridge.Enable = o.serve != ""
		cfg.Bridge.Device = o.serve
	}
	if set["auto-clear"] {
		cfg.Discipline.AutoClear = o.autoClear
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = "tcxo-disc.yml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func runSim(ctx context.Context, cfg *config.Config, seconds int, quiet bool) error {
	nominal, err := cfg.Oscillator.Frequency()
	if err != nil {
		return err
	}
	mode, err := cfg.Reference.TuneMode()
	if err != nil {
		return err
	}
	r := sim.New(sim.NewOscillator(nominal, cfg.Oscillator.OffsetPPB), sim.Config{
		Mode:       mode,
		Seconds:    seconds,
		PulseWidth: 1,
		AutoClear:  cfg.Discipline.AutoClear,
		NoIRQ:      !cfg.Discipline.IrqEnable,
		SyncStages: cfg.Discipline.SyncStages,
		Addr:       cfg.I2C.Addr,
	})
	_, err = r.Run(ctx, func(rep sim.Report) {
		if quiet {
			return
		}
		fmt.Printf("%4d s  irq=%-5v  1s=%6d  10s=%6d  100s=%6d  alarms=%s\n",
			rep.Second, rep.IRQ,
			rep.Errors[regmap.Window1s], rep.Errors[regmap.Window10s], rep.Errors[regmap.Window100s],
			alarmString(rep.Alarms))
	})
	return err
}

func alarmString(a [regmap.NumWindows]bool) string {
	s := ""
	for _, w := range regmap.Windows {
		if a[w] {
			if s != "" {
				s += ","
			}
			s += w.String()
		}
	}
	if s == "" {
		return "-"
	}
	return s
}
