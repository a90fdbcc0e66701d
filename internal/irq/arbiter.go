// Package irq — арбитр прерывания: одна линия IRQ, флаги error_valid окон, общий сброс.
package irq

import (
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/window"
	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

// State — состояние арбитра
type State int

const (
	Idle    State = iota // нет активных тревог
	Alarmed              // хотя бы один error_valid выставлен, линия IRQ поднята
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Alarmed:
		return "alarmed"
	default:
		return "unknown"
	}
}

// Event — результат одного фронта арбитра.
type Event struct {
	From, To State
	Cleared  bool                    // в этом фронте отработал IRQ-clear
	Flags    [regmap.NumWindows]bool // флаги после фронта
}

// Raised — переход Idle → Alarmed.
func (e Event) Raised() bool {
	return e.From == Idle && e.To == Alarmed
}

// Dropped — переход Alarmed → Idle.
func (e Event) Dropped() bool {
	return e.From == Alarmed && e.To == Idle
}

// Arbiter — машина состояний Idle/Alarmed поверх флагов error_valid.
// Флаги хранятся в window.Set; линия IRQ — OR флагов после каждого фронта.
type Arbiter struct {
	state State
}

// State возвращает текущее состояние.
func (a *Arbiter) State() State {
	return a.state
}

// Line — уровень выхода прерывания.
func (a *Arbiter) Line() bool {
	return a.state == Alarmed
}

// Edge — фронт арбитра после оценки окон. Оценка уже выставила новые флаги;
// clear (импульс IRQ-clear) применяется после неё и сбрасывает все три флага разом,
// поэтому при совпадении в одном фронте сброс побеждает новую тревогу.
func (a *Arbiter) Edge(set *window.Set, clear bool) Event {
	ev := Event{From: a.state, Cleared: clear}
	if clear {
		set.ClearFlags()
	}
	if set.Any() {
		a.state = Alarmed
	} else {
		a.state = Idle
	}
	ev.To = a.state
	ev.Flags = set.Flags()
	return ev
}

// Reset возвращает арбитр в Idle (глобальный сброс).
func (a *Arbiter) Reset() {
	a.state = Idle
}
