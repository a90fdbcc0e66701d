package refsel

import "github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"

// DefaultSyncStages — глубина синхронизатора по умолчанию (классический двухтриггерный)
const DefaultSyncStages = 2

// Synchronizer — сдвиговый регистр на k триггеров: out(t) = in(t−k).
type Synchronizer struct {
	stages []bool
}

// NewSynchronizer создаёт синхронизатор глубины k (k < 1 → 1).
func NewSynchronizer(k int) *Synchronizer {
	if k < 1 {
		k = 1
	}
	return &Synchronizer{stages: make([]bool, k)}
}

// Stages — задержка в тактах.
func (s *Synchronizer) Stages() int {
	return len(s.stages)
}

// Sample защёлкивает вход и возвращает значение k тактов назад.
func (s *Synchronizer) Sample(in bool) bool {
	last := len(s.stages) - 1
	out := s.stages[last]
	copy(s.stages[1:], s.stages[:last])
	s.stages[0] = in
	return out
}

// Reset обнуляет все триггеры.
func (s *Synchronizer) Reset() {
	for i := range s.stages {
		s.stages[i] = false
	}
}

// PulseGen — однотактный импульс по переднему фронту уровня.
type PulseGen struct {
	prev bool
}

// Sample возвращает true только в такте, где уровень перешёл 0 → 1.
func (p *PulseGen) Sample(level bool) bool {
	pulse := level && !p.prev
	p.prev = level
	return pulse
}

// Reset сбрасывает запомненный уровень.
func (p *PulseGen) Reset() {
	p.prev = false
}

// Chain — селектор → синхронизатор → генератор импульса.
type Chain struct {
	sel  *Selector
	sync *Synchronizer
	edge PulseGen
}

// NewChain создаёт цепочку с синхронизатором глубины syncStages.
func NewChain(syncStages int) *Chain {
	return &Chain{
		sel:  NewSelector(),
		sync: NewSynchronizer(syncStages),
	}
}

// Selector возвращает селектор цепочки.
func (c *Chain) Selector() *Selector {
	return c.sel
}

// SetMode меняет режим селектора.
func (c *Chain) SetMode(m regmap.TuneMode) {
	c.sel.SetMode(m)
}

// Latency — задержка от фронта опоры до импульса в тактах шины.
func (c *Chain) Latency() int {
	return c.sync.Stages()
}

// Step — один такт шины; true — импульс 1 Гц для счётчиков окон.
func (c *Chain) Step(ppsLevel bool, refEdges uint64) bool {
	level := c.sel.Step(ppsLevel, refEdges)
	return c.edge.Sample(c.sync.Sample(level))
}

// Reset — глобальный сброс всей цепочки.
func (c *Chain) Reset() {
	c.sel.Reset()
	c.sync.Reset()
	c.edge.Reset()
}
