// Package device — потокобезопасная обёртка контроллера: такты опоры, байтовый доступ
// к регистрам и I2C-цель (periph i2c.Bus) поверх одного мьютекса.
package device

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"

	"github.com/shiwa/timecard-mini/tcxo-disc/internal/discipline"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/regfile"
)

// DefaultAddr — 7-битный адрес I2C по умолчанию.
const DefaultAddr = 0x5A

// ErrAddress — обращение по чужому адресу I2C (NACK).
var ErrAddress = errors.New("device: address not acknowledged")

// Option — настройка Device.
type Option func(*Device)

// WithAddr задаёт адрес I2C.
func WithAddr(addr uint16) Option {
	return func(d *Device) {
		d.addr = addr
	}
}

// WithIRQHandler подписывает на смену уровня IRQ. Обработчик вызывается вне блокировки.
func WithIRQHandler(h func(level bool)) Option {
	return func(d *Device) {
		d.onIRQ = h
	}
}

// Device — контроллер плюс текущий уровень входа PPS и указатель регистра I2C.
type Device struct {
	mu    sync.Mutex
	ctl   *discipline.Controller
	addr  uint16
	speed physic.Frequency
	level bool
	ptr   uint8
	onIRQ func(level bool)
}

// New оборачивает контроллер.
func New(ctl *discipline.Controller, opts ...Option) *Device {
	d := &Device{ctl: ctl, addr: DefaultAddr, speed: 100 * physic.KiloHertz}
	for _, o := range opts {
		o(d)
	}
	return d
}

// locked выполняет f под блокировкой и сообщает о смене уровня IRQ.
func (d *Device) locked(f func()) {
	d.mu.Lock()
	before := d.ctl.IRQ()
	f()
	after := d.ctl.IRQ()
	h := d.onIRQ
	d.mu.Unlock()
	if h != nil && before != after {
		h(after)
	}
}

func (d *Device) tick(bus regfile.Request, edges uint64) discipline.Outputs {
	return d.ctl.Tick(discipline.Inputs{PPSLevel: d.level, RefEdges: edges, Bus: bus})
}

// Step — один такт опоры: уровень PPS (держится до следующего Step) и фронты 10 МГц.
func (d *Device) Step(ppsLevel bool, refEdges uint64) (out discipline.Outputs) {
	d.locked(func() {
		d.level = ppsLevel
		out = d.tick(regfile.Request{}, refEdges)
	})
	return out
}

// Idle — n холостых тактов при текущем уровне PPS.
func (d *Device) Idle(n int) {
	d.locked(func() {
		for i := 0; i < n; i++ {
			d.tick(regfile.Request{}, 0)
		}
	})
}

func (d *Device) readReg(addr uint8) uint8 {
	d.tick(regfile.Request{Read: true, Addr: addr}, 0)
	return d.tick(regfile.Request{}, 0).ReadData
}

// writeReg — такт записи и такт, на котором записанное срабатывает (импульс clear, сброс окна).
func (d *Device) writeReg(addr, v uint8) {
	d.tick(regfile.Request{Write: true, Addr: addr, WriteData: v}, 0)
	d.tick(regfile.Request{}, 0)
}

// ReadReg — строб чтения и такт ожидания данных.
func (d *Device) ReadReg(addr uint8) (v uint8) {
	d.locked(func() {
		v = d.readReg(addr)
	})
	return v
}

// WriteReg — такт записи и такт после него.
func (d *Device) WriteReg(addr, v uint8) {
	d.locked(func() {
		d.writeReg(addr, v)
	})
}

// Apply подаёт команды напрямую и отрабатывает такт, в котором они применяются.
func (d *Device) Apply(cmds ...discipline.Command) {
	d.locked(func() {
		d.ctl.Apply(cmds...)
		d.tick(regfile.Request{}, 0)
	})
}

// Reset — системный сброс контроллера и счётчиков.
func (d *Device) Reset() {
	d.locked(func() {
		d.ctl.Reset()
		d.level = false
		d.ptr = 0
	})
}

// IRQ — уровень линии прерывания.
func (d *Device) IRQ() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctl.IRQ()
}

// Snapshot — копия состояния контроллера.
func (d *Device) Snapshot() discipline.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctl.Snapshot()
}

// Latency — задержка цепочки опоры в тактах.
func (d *Device) Latency() int {
	return d.ctl.Latency()
}

// Addr — адрес I2C.
func (d *Device) Addr() uint16 {
	return d.addr
}

// String реализует i2c.Bus.
func (d *Device) String() string {
	return fmt.Sprintf("tcxo-disc@%#02x", d.addr)
}

// SetSpeed реализует i2c.Bus. Скорость только запоминается.
func (d *Device) SetSpeed(f physic.Frequency) error {
	if f <= 0 {
		return fmt.Errorf("device: invalid bus speed %s", f)
	}
	d.mu.Lock()
	d.speed = f
	d.mu.Unlock()
	return nil
}

// Speed — последняя заданная скорость шины.
func (d *Device) Speed() physic.Frequency {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speed
}

// Tx реализует i2c.Bus (и drivers.I2C из tinygo). w[0] — номер регистра,
// остальные байты w пишутся подряд, r читается с автоинкрементом указателя.
func (d *Device) Tx(addr uint16, w, r []byte) error {
	if addr != d.addr {
		return fmt.Errorf("tx to %#02x: %w", addr, ErrAddress)
	}
	d.locked(func() {
		if len(w) > 0 {
			d.ptr = w[0]
			for _, b := range w[1:] {
				d.writeReg(d.ptr, b)
				d.ptr++
			}
		}
		for i := range r {
			r[i] = d.readReg(d.ptr)
			d.ptr++
		}
	})
	return nil
}
