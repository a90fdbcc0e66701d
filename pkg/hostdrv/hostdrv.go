// Package hostdrv — драйвер хоста для контроллера ошибки частоты поверх любой шины I2C
// с интерфейсом tinygo drivers.I2C (machine.I2C на микроконтроллере, internal/device в симуляции).
//
// CONTROL доступен только на запись, поэтому драйвер хранит его теневую копию:
// изменение одного поля переписывает весь регистр.
package hostdrv

import (
	"encoding/binary"
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/shiwa/timecard-mini/tcxo-disc/internal/window"
	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

// Dev — контроллер на шине.
type Dev struct {
	bus  drivers.I2C
	addr uint16

	ctl    regmap.Control
	status [regmap.NumWindows]bool
	errs   [regmap.NumWindows]int32
}

// New создаёт драйвер для устройства по адресу addr.
func New(bus drivers.I2C, addr uint16) *Dev {
	return &Dev{bus: bus, addr: addr}
}

// Control — последнее записанное значение CONTROL (без импульса clear).
func (d *Dev) Control() regmap.Control {
	return d.ctl
}

// WriteControl записывает CONTROL целиком.
func (d *Dev) WriteControl(c regmap.Control) error {
	if err := d.bus.Tx(d.addr, []byte{regmap.AddrControl, c.Byte()}, nil); err != nil {
		return fmt.Errorf("write CONTROL: %w", err)
	}
	c.IrqClear = false
	d.ctl = c
	return nil
}

// Configure задаёт режим подстройки и разрешение прерывания, сохраняя сбросы окон.
func (d *Dev) Configure(mode regmap.TuneMode, irqEnable bool) error {
	c := d.ctl
	c.Mode = mode
	c.IrqEnable = irqEnable
	return d.WriteControl(c)
}

// ResetWindow выставляет или снимает уровень сброса окна.
func (d *Dev) ResetWindow(w regmap.Window, assert bool) error {
	c := d.ctl
	c.Reset[w] = assert
	return d.WriteControl(c)
}

// ClearIRQ подаёт импульс clear; остальные поля CONTROL не меняются.
func (d *Dev) ClearIRQ() error {
	c := d.ctl
	c.IrqClear = true
	return d.WriteControl(c)
}

// Status читает ERR_STATUS.
func (d *Dev) Status() ([regmap.NumWindows]bool, error) {
	var b [1]byte
	if err := d.bus.Tx(d.addr, []byte{regmap.AddrErrStatus}, b[:]); err != nil {
		return [regmap.NumWindows]bool{}, fmt.Errorf("read ERR_STATUS: %w", err)
	}
	return regmap.ParseStatus(b[0]), nil
}

// Error читает регистр ошибки окна.
func (d *Dev) Error(w regmap.Window) (int32, error) {
	var b [regmap.ErrWidth]byte
	if err := d.bus.Tx(d.addr, []byte{regmap.ErrAddr(w)}, b[:]); err != nil {
		return 0, fmt.Errorf("read ERR_%s: %w", w, err)
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

// Errors читает все три регистра ошибки.
func (d *Dev) Errors() ([regmap.NumWindows]int32, error) {
	var errs [regmap.NumWindows]int32
	for _, w := range regmap.Windows {
		v, err := d.Error(w)
		if err != nil {
			return errs, err
		}
		errs[w] = v
	}
	return errs, nil
}

// Update реализует drivers.Sensor: drivers.Time обновляет статус и ошибки.
func (d *Dev) Update(which drivers.Measurement) error {
	if which&drivers.Time == 0 {
		return nil
	}
	st, err := d.Status()
	if err != nil {
		return err
	}
	errs, err := d.Errors()
	if err != nil {
		return err
	}
	d.status, d.errs = st, errs
	return nil
}

// Alarms — флаги error_valid на момент последнего Update.
func (d *Dev) Alarms() [regmap.NumWindows]bool {
	return d.status
}

// LastError — ошибка окна на момент последнего Update.
func (d *Dev) LastError(w regmap.Window) int32 {
	return d.errs[w]
}

// PPB — ошибка окна в ppb на момент последнего Update (положительная — генератор медленнее).
func (d *Dev) PPB(w regmap.Window) float64 {
	m := window.NewMeasurement(w)
	m.Error = d.errs[w]
	return m.PPB()
}

var _ drivers.Sensor = (*Dev)(nil)
