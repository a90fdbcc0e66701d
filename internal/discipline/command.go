package discipline

import (
	"fmt"

	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

// Command — дискретная команда управления; применяется контроллером на фронте такта.
// Запись в CONTROL раскладывается в набор команд (CommandsFor), хост может подать их и напрямую (Apply).
type Command interface {
	apply(c *Controller)
	String() string
}

// SetTuneMode — выбор источника опорного фронта.
type SetTuneMode struct {
	Mode regmap.TuneMode
}

func (s SetTuneMode) apply(c *Controller) {
	c.chain.SetMode(s.Mode)
}

func (s SetTuneMode) String() string {
	return fmt.Sprintf("set_tune_mode(%s)", s.Mode)
}

// SetIrqEnable — разрешение оценки окон и прерывания.
type SetIrqEnable struct {
	Enable bool
}

func (s SetIrqEnable) apply(c *Controller) {
	c.irqEnable = s.Enable
}

func (s SetIrqEnable) String() string {
	return fmt.Sprintf("set_irq_enable(%v)", s.Enable)
}

// RequestIrqClear — импульс сброса всех error_valid; живёт ровно один следующий фронт.
type RequestIrqClear struct{}

func (RequestIrqClear) apply(c *Controller) {
	c.clearPulse = true
}

func (RequestIrqClear) String() string {
	return "request_irq_clear"
}

// ResetWindow — уровень сброса счётчика окна; держится, пока хост не снимет его.
type ResetWindow struct {
	Window regmap.Window
	Assert bool
}

func (r ResetWindow) apply(c *Controller) {
	c.windows[r.Window].ResetRequest = r.Assert
}

func (r ResetWindow) String() string {
	return fmt.Sprintf("reset_window(%s, %v)", r.Window, r.Assert)
}

// CommandsFor раскладывает запись CONTROL в команды. Запись задаёт все поля регистра,
// поэтому режим, irq_enable и все три сброса присутствуют всегда; clear — только при бите 5.
func CommandsFor(ctl regmap.Control) []Command {
	cmds := make([]Command, 0, 3+regmap.NumWindows)
	cmds = append(cmds, SetTuneMode{Mode: ctl.Mode}, SetIrqEnable{Enable: ctl.IrqEnable})
	for _, w := range regmap.Windows {
		cmds = append(cmds, ResetWindow{Window: w, Assert: ctl.Reset[w]})
	}
	if ctl.IrqClear {
		cmds = append(cmds, RequestIrqClear{})
	}
	return cmds
}
