// Package window — окна измерения 1/10/100 с и вычислитель ошибки частоты.
//
// Счётчики циклов — внешние компоненты (Counter): на границе окна выдают (count, valid).
// Measurement хранит последнюю ошибку target − count (int32) и флаг error_valid.
package window

import "github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"

// NominalHz — номинальная частота VCTCXO
const NominalHz = 38_400_000

// Идеальные числа циклов за окно
const (
	Target1s   uint64 = NominalHz
	Target10s  uint64 = NominalHz * 10
	Target100s uint64 = NominalHz * 100
)

// Допуски по окнам (в циклах), из цели < 10 ppb
const (
	Tolerance1s   int32 = 1
	Tolerance10s  int32 = 4
	Tolerance100s int32 = 38
)

// Target возвращает идеальное число циклов окна.
func Target(w regmap.Window) uint64 {
	switch w {
	case regmap.Window10s:
		return Target10s
	case regmap.Window100s:
		return Target100s
	default:
		return Target1s
	}
}

// Tolerance возвращает допуск окна.
func Tolerance(w regmap.Window) int32 {
	switch w {
	case regmap.Window10s:
		return Tolerance10s
	case regmap.Window100s:
		return Tolerance100s
	default:
		return Tolerance1s
	}
}

// Sample — выход счётчика окна за один такт.
type Sample struct {
	Count uint64
	Valid bool // импульс count_valid (один такт на окно)
}

// Counter — внешний счётчик циклов окна.
// Step вызывается раз в такт шины: pulse — импульс 1 Гц, reset — линия сброса окна.
type Counter interface {
	Step(pulse, reset bool) Sample
}

// Measurement — состояние одного окна.
type Measurement struct {
	Window       regmap.Window
	Target       uint64
	Tolerance    int32
	Count        uint64 // последний count со счётчика; владелец — счётчик
	Error        int32
	ErrorValid   bool
	ResetRequest bool
}

// NewMeasurement создаёт окно с константами target/tolerance.
func NewMeasurement(w regmap.Window) Measurement {
	return Measurement{
		Window:    w,
		Target:    Target(w),
		Tolerance: Tolerance(w),
	}
}

// ErrorOf — target − count в знаковой 64-битной арифметике, усечённое до 32 бит.
// Усечение — простое изменение ширины, как в аппаратуре: значения за пределами int32 оборачиваются.
func ErrorOf(target, count uint64) int32 {
	raw := int64(target) - int64(count)
	return int32(raw)
}

// Evaluate обрабатывает выход счётчика. При valid && irqEnable обновляет Error и
// выставляет ErrorValid, если |Error| > Tolerance. Возвращает true, если окно вышло за допуск.
// При irqEnable == false импульсы count_valid отбрасываются без изменений.
func (m *Measurement) Evaluate(s Sample, irqEnable bool) bool {
	if !s.Valid || !irqEnable {
		return false
	}
	m.Count = s.Count
	m.Error = ErrorOf(m.Target, s.Count)
	if abs(m.Error) > int64(m.Tolerance) {
		m.ErrorValid = true
		return true
	}
	return false
}

// Reset обнуляет count/error/error_valid (системный сброс или reset_request окна).
// ResetRequest — уровень от хоста, он не сбрасывается.
func (m *Measurement) Reset() {
	m.Count = 0
	m.Error = 0
	m.ErrorValid = false
}

// PPB возвращает ошибку окна в частях на миллиард (положительная — генератор медленнее).
func (m Measurement) PPB() float64 {
	if m.Target == 0 {
		return 0
	}
	return float64(m.Error) / float64(m.Target) * 1e9
}

// Set — три окна, индексируются regmap.Window.
type Set [regmap.NumWindows]Measurement

// NewSet создаёт окна 1/10/100 с.
func NewSet() Set {
	var s Set
	for _, w := range regmap.Windows {
		s[w] = NewMeasurement(w)
	}
	return s
}

// Flags возвращает флаги error_valid.
func (s *Set) Flags() (f [regmap.NumWindows]bool) {
	for i := range s {
		f[i] = s[i].ErrorValid
	}
	return f
}

// Any — true, если хотя бы один флаг error_valid выставлен.
func (s *Set) Any() bool {
	for i := range s {
		if s[i].ErrorValid {
			return true
		}
	}
	return false
}

// ClearFlags сбрасывает все три error_valid одновременно.
func (s *Set) ClearFlags() {
	for i := range s {
		s[i].ErrorValid = false
	}
}

func abs(v int32) int64 {
	if v < 0 {
		return -int64(v)
	}
	return int64(v)
}

// PPBToCycles переводит смещение в ppb в число циклов за окно (для отчётов/симуляции).
func PPBToCycles(w regmap.Window, ppb float64) float64 {
	return float64(Target(w)) * ppb / 1e9
}
