package regmap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeControl(t *testing.T) {
	tests := []struct {
		name string
		in   uint8
		want Control
	}{
		{"zero", 0x00, Control{}},
		{"pps clear enable", 0b01_1_1_0_000, Control{Mode: ModeDirectPPS, IrqClear: true, IrqEnable: true}},
		{"10mhz resets", 0b10_0_0_0_111, Control{Mode: ModeDerived10MHz, Reset: [NumWindows]bool{true, true, true}}},
		{"mode 11 is disabled", 0b11_0_1_0_000, Control{Mode: ModeDisabled, IrqEnable: true}},
		{"reserved ignored", ControlReserved, Control{}},
		{"reset 100s only", ControlReset100s, Control{Reset: [NumWindows]bool{false, false, true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeControl(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeControl(%#02x) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestControlByte(t *testing.T) {
	c := Control{Mode: ModeDirectPPS, IrqClear: true, IrqEnable: true}
	if got := c.Byte(); got != 0b0111_0000 {
		t.Errorf("Byte() = %#08b, want 0b01110000", got)
	}
	c = Control{Mode: ModeDerived10MHz, Reset: [NumWindows]bool{true, false, true}}
	if got := c.Byte(); got != 0b1000_0101 {
		t.Errorf("Byte() = %#08b, want 0b10000101", got)
	}
}

func TestStatusByte(t *testing.T) {
	tests := []struct {
		valid [NumWindows]bool
		want  uint8
	}{
		{[NumWindows]bool{}, 0},
		{[NumWindows]bool{true, false, false}, 0b100},
		{[NumWindows]bool{false, true, false}, 0b010},
		{[NumWindows]bool{false, false, true}, 0b001},
		{[NumWindows]bool{true, true, true}, 0b111},
	}
	for _, tt := range tests {
		got := StatusByte(tt.valid)
		if got != tt.want {
			t.Errorf("StatusByte(%v) = %#03b, want %#03b", tt.valid, got, tt.want)
		}
		if got&^StatusMask != 0 {
			t.Errorf("StatusByte(%v): bits 7:3 set: %#08b", tt.valid, got)
		}
		if back := ParseStatus(got); back != tt.valid {
			t.Errorf("ParseStatus(%#03b) = %v, want %v", got, back, tt.valid)
		}
	}
}

func TestDecode(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		_, _, status, ok := Decode(AddrErrStatus)
		if !ok || !status {
			t.Errorf("Decode(0x01): status=%v ok=%v", status, ok)
		}
	})
	t.Run("error bytes", func(t *testing.T) {
		for _, w := range Windows {
			for i := 0; i < ErrWidth; i++ {
				gw, idx, status, ok := Decode(ErrAddr(w) + uint8(i))
				if !ok || status || gw != w || idx != i {
					t.Errorf("Decode(%#02x) = %v,%d,%v,%v", ErrAddr(w)+uint8(i), gw, idx, status, ok)
				}
			}
		}
	})
	t.Run("unmapped", func(t *testing.T) {
		for _, a := range []uint8{AddrControl, 0x02, 0x03, 0x08, 0x0B, 0x10, 0x13, 0x18, 0xFF} {
			if _, _, _, ok := Decode(a); ok {
				t.Errorf("Decode(%#02x): expected unmapped", a)
			}
		}
	})
}

func TestErrByte(t *testing.T) {
	v := int32(-2) // 0xFFFFFFFE
	want := []uint8{0xFE, 0xFF, 0xFF, 0xFF}
	for i, w := range want {
		if got := ErrByte(v, i); got != w {
			t.Errorf("ErrByte(-2, %d) = %#02x, want %#02x", i, got, w)
		}
	}
}

func TestParseTuneMode(t *testing.T) {
	for in, want := range map[string]TuneMode{"pps": ModeDirectPPS, "10MHz": ModeDerived10MHz, "": ModeDisabled, "disabled": ModeDisabled} {
		got, err := ParseTuneMode(in)
		if err != nil || got != want {
			t.Errorf("ParseTuneMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseTuneMode("gps"); err == nil {
		t.Error("ParseTuneMode(gps): expected error")
	}
}
