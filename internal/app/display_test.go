package app

import (
	"strings"
	"testing"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/inertial_mlc/internal/imu"
)

func TestDisplayLines(t *testing.T) {
	d := &DisplayData{}
	if got := d.lines("samples"); got[1] != "Waiting..." {
		t.Errorf("empty samples = %q", got)
	}

	d.onBatch(imu.Batch{Samples: []imu.Sample{
		{Sensor: "accel", Raw: [3]int16{1, 2, 16393}},
		{Sensor: "gyro", Raw: [3]int16{-5, 0, 7}},
	}})
	got := d.lines("samples")
	if len(got) != 4 || !strings.Contains(got[1], "16393") || !strings.Contains(got[2], "-5") {
		t.Errorf("samples = %q", got)
	}

	d.onStatus(imu.Status{AccelODR: "104Hz", GyroODR: "52Hz", FIFOLevel: 12, FIFOOverrun: true, MLCEnabled: true, Int1: "mlc1"})
	got = d.lines("status")
	want := []string{"XL 104Hz G 52Hz", "FIFO 12 OVR", "FSM off MLC on", "I1 mlc1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("status line %d = %q want %q", i, got[i], want[i])
		}
	}
}

func TestRenderLinesDrawsText(t *testing.T) {
	img := renderLines([]string{"ABC"})
	on := 0
	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			if img.BitAt(x, y) == image1bit.On {
				on++
			}
		}
	}
	if on == 0 {
		t.Error("nothing drawn")
	}
}
