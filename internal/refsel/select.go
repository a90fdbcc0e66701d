// Package refsel — выбор опорного фронта 1 Гц: прямой 1PPS или делитель 10 МГц → 1 Гц.
//
// Делитель работает всегда (в любом режиме), чтобы переключение режима не оставляло его
// в произвольном состоянии; режим меняет только выбранный выход.
// Выход селектора пересекает границу тактовых доменов через Synchronizer и
// превращается в однотактный импульс в PulseGen.
package refsel

import "github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"

// DividerPreload — число фронтов 10 МГц на один импульс 1 Гц
const DividerPreload = 10_000_000

// Divider — счётчик-делитель 10 МГц → 1 Гц.
type Divider struct {
	remaining uint32
}

// NewDivider создаёт делитель с полной предзагрузкой.
func NewDivider() *Divider {
	d := &Divider{}
	d.Reset()
	return d
}

// Reset восстанавливает предзагрузку (глобальный сброс).
func (d *Divider) Reset() {
	d.remaining = DividerPreload
}

// Remaining — сколько фронтов осталось до следующего импульса.
func (d *Divider) Remaining() uint32 {
	if d.remaining == 0 {
		return DividerPreload
	}
	return d.remaining
}

// Edge учитывает один фронт опоры; true — этот фронт завершил 10 000 000 фронтов.
func (d *Divider) Edge() bool {
	return d.Advance(1) > 0
}

// Advance учитывает n фронтов, пришедших между двумя тактами шины,
// и возвращает число переносов (импульсов 1 Гц) внутри пачки.
func (d *Divider) Advance(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	rem := uint64(d.Remaining())
	if n < rem {
		d.remaining = uint32(rem - n)
		return 0
	}
	n -= rem
	d.remaining = uint32(DividerPreload - n%DividerPreload)
	return 1 + n/DividerPreload
}

// Selector — мультиплексор опорного сигнала по режиму.
// Переносы делителя из одной пачки выдаются по одному: высокий уровень на такт, затем низкий,
// чтобы каждый дал свой фронт после синхронизатора.
type Selector struct {
	mode    regmap.TuneMode
	divider *Divider
	owed    uint64 // переносы, ещё не выданные на выход
	high    bool   // прошлый такт выдал перенос
}

// NewSelector создаёт селектор в режиме Disabled.
func NewSelector() *Selector {
	return &Selector{divider: NewDivider()}
}

// Mode возвращает текущий режим.
func (s *Selector) Mode() regmap.TuneMode {
	return s.mode
}

// SetMode меняет выбранный выход; делитель не трогается.
func (s *Selector) SetMode(m regmap.TuneMode) {
	s.mode = m
}

// Pending — переносы делителя, ещё ждущие своего такта.
func (s *Selector) Pending() uint64 {
	return s.owed
}

// Divider даёт доступ к делителю (для тестов фазы и отчётов).
func (s *Selector) Divider() *Divider {
	return s.divider
}

// Reset — глобальный сброс: предзагрузка делителя, режим Disabled.
func (s *Selector) Reset() {
	s.divider.Reset()
	s.mode = regmap.ModeDisabled
	s.owed = 0
	s.high = false
}

// Step — один такт: ppsLevel — сырой уровень входа 1PPS, refEdges — фронты 10 МГц с прошлого такта.
// Возвращает уровень выбранного опорного сигнала 1 Гц.
func (s *Selector) Step(ppsLevel bool, refEdges uint64) bool {
	carries := s.divider.Advance(refEdges)
	switch s.mode {
	case regmap.ModeDirectPPS:
		return ppsLevel
	case regmap.ModeDerived10MHz:
		s.owed += carries
		if s.high || s.owed == 0 {
			s.high = false
			return false
		}
		s.owed--
		s.high = true
		return true
	default:
		// переносы вне режима 10 МГц не копятся
		s.owed = 0
		s.high = false
		return false
	}
}
