package window

import (
	"math"
	"testing"

	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

func TestConstants(t *testing.T) {
	tests := []struct {
		w      regmap.Window
		target uint64
		tol    int32
	}{
		{regmap.Window1s, 38_400_000, 1},
		{regmap.Window10s, 384_000_000, 4},
		{regmap.Window100s, 3_840_000_000, 38},
	}
	for _, tt := range tests {
		m := NewMeasurement(tt.w)
		if m.Target != tt.target || m.Tolerance != tt.tol {
			t.Errorf("%v: target=%d tol=%d, want %d/%d", tt.w, m.Target, m.Tolerance, tt.target, tt.tol)
		}
	}
}

func TestEvaluate(t *testing.T) {
	t.Run("over tolerance", func(t *testing.T) {
		m := NewMeasurement(regmap.Window1s)
		alarm := m.Evaluate(Sample{Count: 38_400_002, Valid: true}, true)
		if !alarm || !m.ErrorValid || m.Error != -2 {
			t.Errorf("alarm=%v valid=%v error=%d, want true/true/-2", alarm, m.ErrorValid, m.Error)
		}
	})

	t.Run("exact target", func(t *testing.T) {
		m := NewMeasurement(regmap.Window1s)
		alarm := m.Evaluate(Sample{Count: 38_400_000, Valid: true}, true)
		if alarm || m.ErrorValid || m.Error != 0 {
			t.Errorf("alarm=%v valid=%v error=%d", alarm, m.ErrorValid, m.Error)
		}
	})

	t.Run("at tolerance is not alarm", func(t *testing.T) {
		m := NewMeasurement(regmap.Window10s)
		if m.Evaluate(Sample{Count: Target10s - 4, Valid: true}, true) {
			t.Error("|error| == tolerance must not alarm")
		}
		if m.Error != 4 {
			t.Errorf("error = %d, want 4", m.Error)
		}
		if !m.Evaluate(Sample{Count: Target10s + 5, Valid: true}, true) {
			t.Error("|error| > tolerance must alarm")
		}
	})

	t.Run("flag survives in-tolerance measurement", func(t *testing.T) {
		m := NewMeasurement(regmap.Window100s)
		m.Evaluate(Sample{Count: Target100s + 100, Valid: true}, true)
		m.Evaluate(Sample{Count: Target100s, Valid: true}, true)
		if !m.ErrorValid {
			t.Error("ErrorValid must stay set until explicit clear")
		}
		if m.Error != 0 {
			t.Errorf("Error must reflect latest measurement, got %d", m.Error)
		}
	})

	t.Run("irq disabled drops valid", func(t *testing.T) {
		m := NewMeasurement(regmap.Window1s)
		m.Error = 7
		if m.Evaluate(Sample{Count: 1, Valid: true}, false) {
			t.Error("no alarm while irq disabled")
		}
		if m.Error != 7 || m.ErrorValid {
			t.Errorf("state changed while irq disabled: error=%d valid=%v", m.Error, m.ErrorValid)
		}
	})

	t.Run("no valid no change", func(t *testing.T) {
		m := NewMeasurement(regmap.Window1s)
		m.Evaluate(Sample{Count: 5}, true)
		if m.Error != 0 || m.Count != 0 {
			t.Errorf("state changed without count_valid: %+v", m)
		}
	})
}

func TestErrorOfTruncation(t *testing.T) {
	tests := []struct {
		target, count uint64
		want          int32
	}{
		{38_400_000, 38_400_002, -2},
		{38_400_000, 38_399_990, 10},
		{3_840_000_000, 0, -454_967_296},                             // оборачивание: > MaxInt32
		{0, 1 << 32, 0},                                             // младшие 32 бита нулевые
		{uint64(math.MaxInt32) + 1, 0, math.MinInt32},               // 2^31 → MinInt32
		{3_840_000_000, 3_840_000_000 + 38, -38},
	}
	for _, tt := range tests {
		if got := ErrorOf(tt.target, tt.count); got != tt.want {
			t.Errorf("ErrorOf(%d, %d) = %d, want %d", tt.target, tt.count, got, tt.want)
		}
	}
}

func TestSet(t *testing.T) {
	s := NewSet()
	if s.Any() {
		t.Fatal("new set has flags")
	}
	s[regmap.Window10s].Evaluate(Sample{Count: 0, Valid: true}, true)
	if !s.Any() || s.Flags() != [regmap.NumWindows]bool{false, true, false} {
		t.Errorf("flags = %v", s.Flags())
	}
	s.ClearFlags()
	if s.Any() {
		t.Error("ClearFlags left a flag set")
	}
	if s[regmap.Window10s].Error == 0 {
		t.Error("ClearFlags must not touch Error")
	}
}

func TestPPB(t *testing.T) {
	m := NewMeasurement(regmap.Window1s)
	m.Error = -4
	got := m.PPB()
	want := -4.0 / 38_400_000 * 1e9
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("PPB() = %v, want %v", got, want)
	}
	if c := PPBToCycles(regmap.Window100s, 10); math.Abs(c-38.4) > 1e-9 {
		t.Errorf("PPBToCycles(100s, 10) = %v, want 38.4", c)
	}
}
