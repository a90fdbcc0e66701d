// Package regmap — карта регистров контроллера ошибки частоты VCTCXO (8-битная шина, байтовая адресация).
//
// Пакет не содержит состояния: только адреса, битовые поля CONTROL/ERR_STATUS и их кодирование.
// Используется и моделью устройства (internal/regfile), и хостовым драйвером (pkg/hostdrv).
package regmap

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Адреса регистров
const (
	AddrControl   uint8 = 0x00 // только запись
	AddrErrStatus uint8 = 0x01 // только чтение
	AddrErr1s     uint8 = 0x04 // 0x04–0x07, int32 little-endian
	AddrErr10s    uint8 = 0x0C // 0x0C–0x0F
	AddrErr100s   uint8 = 0x14 // 0x14–0x17
)

// ErrWidth — ширина регистра ошибки в байтах
const ErrWidth = 4

// Биты CONTROL
const (
	ControlModeShift = 6
	ControlModeMask  = 0xC0
	ControlIrqClear  = 1 << 5 // импульс: сбросить все error_valid
	ControlIrqEnable = 1 << 4
	ControlReserved  = 1 << 3
	ControlReset100s = 1 << 2
	ControlReset10s  = 1 << 1
	ControlReset1s   = 1 << 0
)

// Биты ERR_STATUS (биты 7:3 всегда 0)
const (
	StatusValid1s   = 1 << 2
	StatusValid10s  = 1 << 1
	StatusValid100s = 1 << 0
	StatusMask      = StatusValid1s | StatusValid10s | StatusValid100s
)

// Window — окно измерения: 1 с, 10 с, 100 с.
type Window uint8

const (
	Window1s Window = iota
	Window10s
	Window100s
)

// NumWindows — число окон
const NumWindows = 3

// Windows — все окна в порядке возрастания длительности.
var Windows = [NumWindows]Window{Window1s, Window10s, Window100s}

// Span возвращает длительность окна в импульсах 1 Гц.
func (w Window) Span() uint32 {
	switch w {
	case Window1s:
		return 1
	case Window10s:
		return 10
	case Window100s:
		return 100
	default:
		return 0
	}
}

func (w Window) String() string {
	switch w {
	case Window1s:
		return "1s"
	case Window10s:
		return "10s"
	case Window100s:
		return "100s"
	default:
		return fmt.Sprintf("window(%d)", uint8(w))
	}
}

// ErrAddr возвращает адрес младшего байта регистра ошибки окна.
func ErrAddr(w Window) uint8 {
	switch w {
	case Window10s:
		return AddrErr10s
	case Window100s:
		return AddrErr100s
	default:
		return AddrErr1s
	}
}

// ResetBit возвращает бит сброса счётчика окна в CONTROL.
func ResetBit(w Window) uint8 {
	switch w {
	case Window10s:
		return ControlReset10s
	case Window100s:
		return ControlReset100s
	default:
		return ControlReset1s
	}
}

// StatusBit возвращает бит error_valid окна в ERR_STATUS.
func StatusBit(w Window) uint8 {
	switch w {
	case Window10s:
		return StatusValid10s
	case Window100s:
		return StatusValid100s
	default:
		return StatusValid1s
	}
}

// TuneMode — источник опорного фронта 1 Гц.
type TuneMode uint8

const (
	ModeDisabled TuneMode = iota
	ModeDirectPPS
	ModeDerived10MHz
)

// ModeFromBits декодирует биты 7:6 CONTROL (уже сдвинутые): 00 и 11 — Disabled.
func ModeFromBits(b uint8) TuneMode {
	switch b & 0x3 {
	case 0x1:
		return ModeDirectPPS
	case 0x2:
		return ModeDerived10MHz
	default:
		return ModeDisabled
	}
}

// Bits возвращает 2-битное кодирование режима.
func (m TuneMode) Bits() uint8 {
	switch m {
	case ModeDirectPPS:
		return 0x1
	case ModeDerived10MHz:
		return 0x2
	default:
		return 0x0
	}
}

func (m TuneMode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeDirectPPS:
		return "pps"
	case ModeDerived10MHz:
		return "10mhz"
	default:
		return "unknown"
	}
}

// ParseTuneMode разбирает имя режима из конфига/флагов: disabled, pps, 10mhz.
func ParseTuneMode(s string) (TuneMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disabled", "off":
		return ModeDisabled, nil
	case "pps", "1pps":
		return ModeDirectPPS, nil
	case "10mhz", "10m":
		return ModeDerived10MHz, nil
	default:
		return ModeDisabled, fmt.Errorf("unknown tune mode: %q", s)
	}
}

// Control — поля регистра CONTROL.
type Control struct {
	Mode      TuneMode
	IrqClear  bool
	IrqEnable bool
	Reset     [NumWindows]bool
}

// DecodeControl разбирает байт CONTROL; бит 3 (reserved) игнорируется.
func DecodeControl(b uint8) Control {
	c := Control{
		Mode:      ModeFromBits(b >> ControlModeShift),
		IrqClear:  b&ControlIrqClear != 0,
		IrqEnable: b&ControlIrqEnable != 0,
	}
	for _, w := range Windows {
		c.Reset[w] = b&ResetBit(w) != 0
	}
	return c
}

// Byte кодирует CONTROL.
func (c Control) Byte() uint8 {
	b := c.Mode.Bits() << ControlModeShift
	if c.IrqClear {
		b |= ControlIrqClear
	}
	if c.IrqEnable {
		b |= ControlIrqEnable
	}
	for _, w := range Windows {
		if c.Reset[w] {
			b |= ResetBit(w)
		}
	}
	return b
}

// StatusByte кодирует флаги error_valid в ERR_STATUS.
func StatusByte(valid [NumWindows]bool) uint8 {
	var b uint8
	for _, w := range Windows {
		if valid[w] {
			b |= StatusBit(w)
		}
	}
	return b
}

// ParseStatus раскладывает ERR_STATUS по окнам.
func ParseStatus(b uint8) (valid [NumWindows]bool) {
	for _, w := range Windows {
		valid[w] = b&StatusBit(w) != 0
	}
	return valid
}

// ErrByte возвращает байт idx (0..3) little-endian представления ошибки.
func ErrByte(v int32, idx int) uint8 {
	var buf [ErrWidth]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return buf[idx&(ErrWidth-1)]
}

// Decode возвращает, какому регистру принадлежит адрес при чтении.
// ok=false — адрес не отображён (CONTROL тоже: он только для записи).
func Decode(addr uint8) (w Window, byteIdx int, status bool, ok bool) {
	if addr == AddrErrStatus {
		return 0, 0, true, true
	}
	for _, win := range Windows {
		base := ErrAddr(win)
		if addr >= base && addr < base+ErrWidth {
			return win, int(addr - base), false, true
		}
	}
	return 0, 0, false, false
}
