package main

import (
	"flag"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"

	"github.com/shiwa/timecard-mini/tcxo-disc/internal/config"
)

func TestApplyFlags(t *testing.T) {
	base := func() *config.Config {
		c := config.Default()
		c.Oscillator.OffsetPPB = 120
		c.Discipline.AutoClear = true
		return c
	}
	tests := []struct {
		name string
		args []string
		want func(*config.Config)
	}{
		{"nothing set keeps config", nil, func(*config.Config) {}},
		{"zero offset overrides config", []string{"-offset-ppb", "0"}, func(c *config.Config) {
			c.Oscillator.OffsetPPB = 0
		}},
		{"false auto-clear overrides config", []string{"-auto-clear=false"}, func(c *config.Config) {
			c.Discipline.AutoClear = false
		}},
		{"mode nominal serve", []string{"-mode", "10mhz", "-nominal", "10MHz", "-serve", "/dev/ttyUSB1"}, func(c *config.Config) {
			c.Reference.Mode = "10mhz"
			c.Oscillator.Nominal = (10 * physic.MegaHertz).String()
			c.Bridge.Enable = true
			c.Bridge.Device = "/dev/ttyUSB1"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("tcxo-disc", flag.ContinueOnError)
			var o overrides
			fs.StringVar(&o.mode, "mode", "", "")
			fs.Float64Var(&o.offsetPPB, "offset-ppb", 0, "")
			fs.Var(&o.nominal, "nominal", "")
			fs.StringVar(&o.serve, "serve", "", "")
			fs.BoolVar(&o.autoClear, "auto-clear", false, "")
			if err := fs.Parse(tt.args); err != nil {
				t.Fatal(err)
			}
			set := map[string]bool{}
			fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

			got, want := base(), base()
			applyFlags(got, set, o)
			tt.want(want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("config (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAlarmString(t *testing.T) {
	if got := alarmString([3]bool{}); got != "-" {
		t.Errorf("no alarms = %q", got)
	}
	if got := alarmString([3]bool{true, false, true}); got != "1s,100s" {
		t.Errorf("alarms = %q", got)
	}
}
