package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

// Источники опорного сигнала
const (
	SourceSim       = "sim"        // модель генератора и PPS в сжатом времени
	SourceGPIO      = "gpio"       // вход GPIO (periph gpioreg)
	SourceKernelPPS = "kernel_pps" // /dev/pps{N}, только Linux
)

// Config — конфигурация tcxo-disc
type Config struct {
	Oscillator OscillatorConfig `yaml:"oscillator"`
	Reference  ReferenceConfig  `yaml:"reference"`
	Discipline DisciplineConfig `yaml:"discipline"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	I2C        I2CConfig        `yaml:"i2c"`
}

// OscillatorConfig — VCTCXO. offset_ppb используется только моделью (source: sim).
type OscillatorConfig struct {
	Nominal   string  `yaml:"nominal"` // например "38.4MHz"
	OffsetPPB float64 `yaml:"offset_ppb"`
}

// ReferenceConfig — источник опоры и режим подстройки
type ReferenceConfig struct {
	Mode    string `yaml:"mode"`   // disabled, pps, 10mhz
	Source  string `yaml:"source"` // sim, gpio, kernel_pps
	Pin     string `yaml:"pin"`    // имя пина для gpio
	Index   int    `yaml:"index"`  // /dev/pps{index}
	Timeout string `yaml:"timeout"`
}

// DisciplineConfig — параметры контроллера и отчётов
type DisciplineConfig struct {
	SyncStages     int    `yaml:"sync_stages"`
	IrqEnable      bool   `yaml:"irq_enable"`
	AutoClear      bool   `yaml:"auto_clear"`
	ReportInterval string `yaml:"report_interval"`
}

// BridgeConfig — последовательный мост к регистрам
type BridgeConfig struct {
	Enable bool   `yaml:"enable"`
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// I2CConfig — адрес I2C-цели
type I2CConfig struct {
	Addr uint16 `yaml:"addr"`
}

// Default возвращает конфиг по умолчанию
func Default() *Config {
	return &Config{
		Oscillator: OscillatorConfig{
			Nominal: "38.4MHz",
		},
		Reference: ReferenceConfig{
			Mode:    "pps",
			Source:  SourceSim,
			Timeout: "2s",
		},
		Discipline: DisciplineConfig{
			SyncStages:     2,
			IrqEnable:      true,
			ReportInterval: "10s",
		},
		Bridge: BridgeConfig{
			Device: "/dev/ttyS0",
			Baud:   115200,
		},
		I2C: I2CConfig{
			Addr: 0x5A,
		},
	}
}

// Load читает конфиг из YAML
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML, подставляет значения по умолчанию и проверяет конфиг.
func Parse(data []byte) (*Config, error) {
	c := Config{Discipline: DisciplineConfig{IrqEnable: true}}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Oscillator.Nominal == "" {
		c.Oscillator.Nominal = d.Oscillator.Nominal
	}
	if c.Reference.Mode == "" {
		c.Reference.Mode = d.Reference.Mode
	}
	if c.Reference.Source == "" {
		c.Reference.Source = d.Reference.Source
	}
	if c.Reference.Timeout == "" {
		c.Reference.Timeout = d.Reference.Timeout
	}
	if c.Discipline.SyncStages == 0 {
		c.Discipline.SyncStages = d.Discipline.SyncStages
	}
	if c.Discipline.ReportInterval == "" {
		c.Discipline.ReportInterval = d.Discipline.ReportInterval
	}
	if c.Bridge.Device == "" {
		c.Bridge.Device = d.Bridge.Device
	}
	if c.Bridge.Baud == 0 {
		c.Bridge.Baud = d.Bridge.Baud
	}
	if c.I2C.Addr == 0 {
		c.I2C.Addr = d.I2C.Addr
	}
}

// Validate проверяет значения, которые нельзя молча заменить.
func (c *Config) Validate() error {
	if _, err := c.Oscillator.Frequency(); err != nil {
		return err
	}
	if _, err := c.Reference.TuneMode(); err != nil {
		return err
	}
	switch c.Reference.Source {
	case SourceSim, SourceKernelPPS:
	case SourceGPIO:
		if c.Reference.Pin == "" {
			return fmt.Errorf("reference: pin required for source %q", SourceGPIO)
		}
	default:
		return fmt.Errorf("reference: unknown source %q", c.Reference.Source)
	}
	if c.Discipline.SyncStages < 1 {
		return fmt.Errorf("discipline: sync_stages must be >= 1, got %d", c.Discipline.SyncStages)
	}
	if c.I2C.Addr > 0x7F {
		return fmt.Errorf("i2c: addr %#x is not a 7-bit address", c.I2C.Addr)
	}
	return nil
}

// Frequency разбирает номинал ("38.4MHz", "38400000").
func (o OscillatorConfig) Frequency() (physic.Frequency, error) {
	var f physic.Frequency
	if err := f.Set(o.Nominal); err != nil {
		return 0, fmt.Errorf("oscillator: nominal %q: %w", o.Nominal, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("oscillator: nominal must be positive, got %s", f)
	}
	return f, nil
}

// TuneMode разбирает режим подстройки.
func (r ReferenceConfig) TuneMode() (regmap.TuneMode, error) {
	m, err := regmap.ParseTuneMode(r.Mode)
	if err != nil {
		return 0, fmt.Errorf("reference: %w", err)
	}
	return m, nil
}

// WaitTimeout — сколько ждать фронта опоры до предупреждения.
func (r ReferenceConfig) WaitTimeout() time.Duration {
	return parseDuration(r.Timeout, 2*time.Second)
}

// Interval — период отчёта демона.
func (d DisciplineConfig) Interval() time.Duration {
	return parseDuration(d.ReportInterval, 10*time.Second)
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
