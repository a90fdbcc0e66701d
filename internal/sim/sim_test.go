package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

const nominal = 38_400 * physic.KiloHertz

func TestOscillator(t *testing.T) {
	tests := []struct {
		name    string
		ppb     float64
		seconds int
		want    uint64
	}{
		{"exact", 0, 1, 38_400_000},
		{"+100ppb 1s", 100, 1, 38_400_003},
		{"+100ppb 100s", 100, 100, 3_840_000_384},
		{"-250ppb 1s", -250, 1, 38_399_990},
		{"-250ppb 10s", -250, 10, 383_999_904},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOscillator(nominal, tt.ppb)
			for i := 0; i < tt.seconds; i++ {
				o.Advance(time.Second)
			}
			if got := o.Now(); got != tt.want {
				t.Errorf("Now() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOscillatorChunks(t *testing.T) {
	a := NewOscillator(nominal, 123.4)
	b := NewOscillator(nominal, 123.4)
	a.Advance(3 * time.Second)
	for i := 0; i < 30; i++ {
		b.Advance(100 * time.Millisecond)
	}
	if a.Now() != b.Now() {
		t.Errorf("chunked %d != whole %d", b.Now(), a.Now())
	}
	c := NewOscillator(nominal, 0)
	c.Advance(3 * time.Minute)
	if c.Now() != 180*38_400_000 {
		t.Errorf("long advance = %d", c.Now())
	}
}

func TestOscillatorFrequency(t *testing.T) {
	o := NewOscillator(nominal, 100)
	if got, want := o.Frequency(), nominal+3840*physic.MilliHertz; got != want {
		t.Errorf("Frequency() = %s, want %s", got, want)
	}
	o.SetOffsetPPB(0)
	if o.Frequency() != nominal || o.OffsetPPB() != 0 {
		t.Errorf("after retune: %s %f", o.Frequency(), o.OffsetPPB())
	}
}

func TestRunPPSAlarm(t *testing.T) {
	r := New(NewOscillator(nominal, 100), Config{Mode: regmap.ModeDirectPPS, Seconds: 3, PulseWidth: 4})
	reps, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(reps) != 3 {
		t.Fatalf("reports = %d", len(reps))
	}
	if reps[0].IRQ {
		t.Error("first pulse only opens the window")
	}
	rep := reps[1]
	if !rep.IRQ || !rep.Alarms[regmap.Window1s] || rep.Alarms[regmap.Window10s] {
		t.Errorf("second 2: %v", rep)
	}
	if rep.Errors[regmap.Window1s] != -4 {
		t.Errorf("ERR_1S = %d, want -4", rep.Errors[regmap.Window1s])
	}
	if rep.PPB[regmap.Window1s] > -100 {
		t.Errorf("ppb = %f", rep.PPB[regmap.Window1s])
	}
}

func TestRunPPSNoAlarmWithinTolerance(t *testing.T) {
	// 0.384 цикла в секунду: за 10 с набегает 4 цикла, это ещё допуск
	r := New(NewOscillator(nominal, 10), Config{Mode: regmap.ModeDirectPPS, Seconds: 11})
	reps, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, rep := range reps {
		if rep.IRQ {
			t.Fatalf("unexpected alarm: %v", rep)
		}
	}
	if got := reps[10].Errors[regmap.Window10s]; got != -4 {
		t.Errorf("ERR_10S = %d, want -4", got)
	}
}

func TestRunDerived10MHz(t *testing.T) {
	r := New(NewOscillator(nominal, -200), Config{Mode: regmap.ModeDerived10MHz, Seconds: 11})
	reps, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	last := reps[10]
	if !last.Alarms[regmap.Window10s] || last.Errors[regmap.Window10s] != 77 {
		t.Errorf("second 11: %v", last)
	}
	if r.Device().Snapshot().Mode != regmap.ModeDerived10MHz {
		t.Error("mode not applied")
	}
}

func TestRunAutoClear(t *testing.T) {
	r := New(NewOscillator(nominal, 100), Config{Mode: regmap.ModeDirectPPS, Seconds: 3, AutoClear: true})
	var seen []bool
	_, err := r.Run(context.Background(), func(rep Report) {
		seen = append(seen, r.Device().IRQ())
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, irq := range seen {
		if irq {
			t.Errorf("second %d: IRQ left high after auto clear", i+1)
		}
	}
}

func TestRunDisabled(t *testing.T) {
	r := New(NewOscillator(nominal, 5000), Config{Mode: regmap.ModeDisabled, Seconds: 5})
	reps, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, rep := range reps {
		if rep.IRQ || rep.Errors != [regmap.NumWindows]int32{} {
			t.Fatalf("disabled mode measured: %v", rep)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(NewOscillator(nominal, 0), Config{Mode: regmap.ModeDirectPPS, Seconds: 100})
	reps, err := r.Run(ctx, nil)
	if !errors.Is(err, context.Canceled) || len(reps) != 0 {
		t.Errorf("err=%v reports=%d", err, len(reps))
	}
}

func TestRunNoIRQ(t *testing.T) {
	r := New(NewOscillator(nominal, 5000), Config{Mode: regmap.ModeDirectPPS, Seconds: 3, NoIRQ: true})
	reps, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	// при выключенном irq_enable результаты окон отбрасываются
	for _, rep := range reps {
		if rep.IRQ || rep.Errors != [regmap.NumWindows]int32{} {
			t.Fatalf("measurement kept with irq disabled: %v", rep)
		}
	}
}

func TestPulseLongInterval(t *testing.T) {
	r := New(NewOscillator(nominal, 0), Config{Mode: regmap.ModeDirectPPS})
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	r.Pulse(time.Second)
	r.Pulse(time.Second + time.Microsecond)
	rep, err := r.Poll(2)
	if err != nil {
		t.Fatal(err)
	}
	if got := rep.Errors[regmap.Window1s]; got != -38 {
		t.Errorf("ERR_1S = %d, want -38", got)
	}
}

func TestDerived10MHzUnevenIntervals(t *testing.T) {
	tests := []struct {
		name      string
		intervals []time.Duration
	}{
		{"jitter", []time.Duration{time.Second, 999 * time.Millisecond, 1001 * time.Millisecond, 999 * time.Millisecond, 1001 * time.Millisecond}},
		{"3s gap", []time.Duration{time.Second, 3 * time.Second, time.Second}},
		{"500s gap", []time.Duration{time.Second, 500 * time.Second}},
		{"sub-period", []time.Duration{time.Second, 150 * time.Nanosecond, time.Second - 150*time.Nanosecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// идеальный генератор: импульс 1 Гц приходит ровно на целой секунде опоры
			r := New(NewOscillator(nominal, 0), Config{Mode: regmap.ModeDerived10MHz})
			if err := r.Start(); err != nil {
				t.Fatal(err)
			}
			for i, d := range tt.intervals {
				r.Pulse(d)
				rep, err := r.Poll(i + 1)
				if err != nil {
					t.Fatal(err)
				}
				if rep.IRQ || rep.Errors != ([regmap.NumWindows]int32{}) {
					t.Fatalf("interval %d (%v): %v", i, d, rep)
				}
			}
			if p := r.Device().Snapshot().Pending; p != 0 {
				t.Errorf("carries left pending: %d", p)
			}
		})
	}
}

func TestDerived10MHzGapCountsEveryCarry(t *testing.T) {
	r := New(NewOscillator(nominal, 0), Config{Mode: regmap.ModeDerived10MHz})
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	r.Pulse(time.Second)
	before := r.Device().Snapshot().Cycle
	r.Pulse(500 * time.Second)
	// каждый из 500 переносов — отдельная пачка и свой импульс
	if got := r.Device().Snapshot().Cycle - before; got < 500 {
		t.Errorf("only %d bus cycles for 500 carries", got)
	}
	if rem := r.Device().Snapshot().Remaining; rem != 10_000_000 {
		t.Errorf("divider remaining = %d", rem)
	}
}
