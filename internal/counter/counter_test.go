package counter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shiwa/timecard-mini/tcxo-disc/internal/window"
	"github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"
)

type clock uint64

func (c *clock) Now() uint64 { return uint64(*c) }

func TestWindowSpan1(t *testing.T) {
	var tb clock
	c := New(1, &tb)

	if s := c.Step(false, false); s.Valid {
		t.Fatal("valid without pulse")
	}
	tb = 1000
	if s := c.Step(true, false); s.Valid || !c.Open() {
		t.Fatalf("first pulse must only open the window: %+v open=%v", s, c.Open())
	}
	tb = 1000 + 38_400_003
	s := c.Step(true, false)
	if diff := cmp.Diff(window.Sample{Count: 38_400_003, Valid: true}, s); diff != "" {
		t.Errorf("sample (-want +got):\n%s", diff)
	}
	if s := c.Step(false, false); s.Valid {
		t.Error("valid must last one step")
	}
	tb += 38_399_999
	if s := c.Step(true, false); s.Count != 38_399_999 || !s.Valid {
		t.Errorf("restart from closing pulse: %+v", s)
	}
}

func TestWindowSpan10(t *testing.T) {
	var tb clock
	c := New(10, &tb)
	c.Step(true, false)
	for i := 1; i <= 10; i++ {
		tb += 38_400_001
		s := c.Step(true, false)
		if i < 10 && s.Valid {
			t.Fatalf("pulse %d: early valid", i)
		}
		if i == 10 && (s.Count != 384_000_010 || !s.Valid) {
			t.Fatalf("pulse 10: %+v", s)
		}
	}
}

func TestWindowReset(t *testing.T) {
	var tb clock
	c := New(1, &tb)
	c.Step(true, false)
	tb = 500
	if s := c.Step(true, true); s.Valid || c.Open() {
		t.Fatalf("reset must dominate a pulse: %+v", s)
	}
	tb = 700
	if s := c.Step(true, false); s.Valid {
		t.Fatal("first pulse after reset must only open")
	}
	tb = 900
	if s := c.Step(true, false); s.Count != 200 {
		t.Errorf("count = %d, want 200", s.Count)
	}
}

func TestNewSet(t *testing.T) {
	var tb clock
	set := NewSet(&tb)
	var got []uint32
	for _, w := range regmap.Windows {
		got = append(got, set[w].(*Window).Span())
	}
	if diff := cmp.Diff([]uint32{1, 10, 100}, got); diff != "" {
		t.Errorf("spans (-want +got):\n%s", diff)
	}
}

func TestZeroSpan(t *testing.T) {
	var tb clock
	if New(0, &tb).Span() != 1 {
		t.Error("zero span must be clamped to 1")
	}
}
