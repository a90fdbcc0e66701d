// Package sim — стенд без железа: модель VCTCXO с заданной ошибкой частоты
// и прогон контроллера в сжатом времени (секунда опоры за несколько тактов).
package sim

import (
	"math"
	"math/bits"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
)

const nanoPerUnit = 1_000_000_000

// Oscillator — генератор с номиналом и смещением в ppb. Считает целые циклы,
// дробная часть копится в наноциклах, так что ошибка не теряется между секундами.
type Oscillator struct {
	mu      sync.Mutex
	nominal physic.Frequency
	ppb     float64
	rate    uint64 // наноциклов в секунду
	cycles  uint64
	frac    uint64 // наноциклы, < 1e9
	rem     uint64 // остаток деления на 1e9 (доли наноцикла)
}

// NewOscillator создаёт генератор с номиналом nominal и ошибкой offsetPPB.
func NewOscillator(nominal physic.Frequency, offsetPPB float64) *Oscillator {
	o := &Oscillator{nominal: nominal}
	o.SetOffsetPPB(offsetPPB)
	return o
}

// Nominal — номинальная частота.
func (o *Oscillator) Nominal() physic.Frequency {
	return o.nominal
}

// OffsetPPB — текущая ошибка частоты.
func (o *Oscillator) OffsetPPB() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ppb
}

// SetOffsetPPB меняет ошибку частоты (подстройка VCTCXO).
func (o *Oscillator) SetOffsetPPB(ppb float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ppb = ppb
	// physic.Frequency в мкГц: мкГц*1000 = наноциклов в секунду
	nom := float64(o.nominal) * 1000
	r := nom + math.Round(nom*ppb/1e9)
	if r < 0 {
		r = 0
	}
	o.rate = uint64(r)
}

// Frequency — фактическая частота с учётом ошибки.
func (o *Oscillator) Frequency() physic.Frequency {
	o.mu.Lock()
	defer o.mu.Unlock()
	return physic.Frequency(o.rate / 1000)
}

// Advance продвигает генератор на d реального времени.
func (o *Oscillator) Advance(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for d > 0 {
		step := d
		if step > maxStep {
			step = maxStep
		}
		o.advance(step)
		d -= step
	}
}

// maxStep держит старшее слово произведения rate*d ниже делителя bits.Div64.
const maxStep = time.Minute

func (o *Oscillator) advance(d time.Duration) {
	hi, lo := bits.Mul64(o.rate, uint64(d))
	var c uint64
	lo, c = bits.Add64(lo, o.rem, 0)
	hi += c
	q, rem := bits.Div64(hi, lo, nanoPerUnit)
	o.rem = rem
	o.frac += q
	o.cycles += o.frac / nanoPerUnit
	o.frac %= nanoPerUnit
}

// Now реализует counter.Timebase: целые циклы с начала работы.
func (o *Oscillator) Now() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycles
}
