package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/inertial_mlc/internal/config"
	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
	"github.com/relabs-tech/inertial_mlc/internal/metrics"
	"github.com/relabs-tech/inertial_mlc/internal/sensors"
)

func newSimManager(t *testing.T) *sensors.IMUManager {
	t.Helper()
	logger := log.New()
	logger.SetOutput(io.Discard)

	sim := sensors.NewSimBus(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })
	mgr := sensors.NewIMUManager(metrics.New(), logger)
	cfg := &config.Config{
		IMUBus:           "sim",
		IMUAccelODRHz:    104,
		IMUGyroODRHz:     104,
		AccelSensitivity: 0.061,
		GyroSensitivity:  8.75,
		FIFOMode:         "continuous",
		FIFOWatermark:    64,
		FIFOAccelBDRHz:   104,
		FIFOGyroBDRHz:    104,
	}
	if err := mgr.InitWithBus(sim, sim, cfg); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestPageWriteThenRead(t *testing.T) {
	mgr := newSimManager(t)
	var out bytes.Buffer

	if err := pageWrite(mgr, &out, "0x0FE", "01020304"); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "wrote 4 B to 0x0FE\n" {
		t.Errorf("write output %q", got)
	}

	out.Reset()
	if err := pageRead(mgr, &out, "0x0FE", "4"); err != nil {
		t.Fatal(err)
	}
	want := "read 4 B from 0x0FE\n0x0FE: 01 02 03 04\n"
	if got := out.String(); got != want {
		t.Errorf("read output %q want %q", got, want)
	}
}

func TestPageArgumentErrors(t *testing.T) {
	mgr := newSimManager(t)
	var out bytes.Buffer

	if err := pageRead(mgr, &out, "0x1000", "1"); err == nil {
		t.Error("address past the end accepted")
	}
	if err := pageRead(mgr, &out, "0x10", "0"); err == nil {
		t.Error("zero length accepted")
	}
	if err := pageWrite(mgr, &out, "0x10", "xyz"); err == nil {
		t.Error("bad hex accepted")
	}
	if err := pageRead(mgr, &out, "0xFFF", "2"); err == nil {
		t.Error("read crossing the end accepted")
	}
}

func TestUCFLoad(t *testing.T) {
	mgr := newSimManager(t)
	path := filepath.Join(t.TempDir(), "fsm.ucf")
	body := "--ISM330DHCX\nAc 01 80\nAc 05 01\nAc 5F 18\nAc 01 00\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := ucfLoad(mgr, &out, path); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "applied 4 steps from ") {
		t.Errorf("output %q", out.String())
	}
	st, err := mgr.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !st.FSMEnabled {
		t.Errorf("status after UCF = %+v", st)
	}

	if err := ucfLoad(mgr, &out, filepath.Join(t.TempDir(), "missing.ucf")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestSnapshotYAML(t *testing.T) {
	mgr := newSimManager(t)

	snap, err := takeSnapshot(mgr, []ism330dhcx.Bank{ism330dhcx.UserBank, ism330dhcx.EmbeddedFuncBank}, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.Banks["user"]["0x0F"]; ok {
		t.Error("read-only WHO_AM_I in configuration snapshot")
	}
	if snap.Banks["user"]["0x10"] != "0x40" {
		t.Errorf("CTRL1_XL = %q", snap.Banks["user"]["0x10"])
	}

	var buf bytes.Buffer
	if err := writeSnapshot(snap, &buf); err != nil {
		t.Fatal(err)
	}
	var back struct {
		Device string                       `yaml:"device"`
		Status map[string]interface{}       `yaml:"status"`
		Banks  map[string]map[string]string `yaml:"banks"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("yaml: %v\n%s", err, buf.String())
	}
	if back.Device != "ISM330DHCX" || back.Status["accel_odr"] != "104Hz" || len(back.Banks) != 2 {
		t.Errorf("decoded %+v", back)
	}

	all, err := takeSnapshot(mgr, []ism330dhcx.Bank{ism330dhcx.UserBank}, true)
	if err != nil {
		t.Fatal(err)
	}
	if all.Banks["user"]["0x0F"] != "0x6B" {
		t.Errorf("WHO_AM_I = %q", all.Banks["user"]["0x0F"])
	}
}

func TestRouteAndODRCommands(t *testing.T) {
	mgr := newSimManager(t)
	var out bytes.Buffer

	if err := routeSet(mgr, &out, "int1", "fifo_th,mlc2"); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := routeShow(mgr, &out); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "INT1: fifo_th,mlc2\nINT2: none\n" {
		t.Errorf("routes %q", got)
	}
	if err := routeSet(mgr, &out, "int1", "timestamp"); err == nil {
		t.Error("timestamp routed to INT1")
	}

	out.Reset()
	if err := odrSet(mgr, &out, "accel", "50Hz"); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "accel: requested 50Hz, running at 52Hz\n" {
		t.Errorf("odr output %q", got)
	}
	if err := odrSet(mgr, &out, "mag", "10"); err == nil {
		t.Error("unknown sensor accepted")
	}
}

func TestRootCommandTree(t *testing.T) {
	root := getRootCmd()
	for _, path := range [][]string{
		{"produce"}, {"debug"}, {"console"}, {"display"},
		{"page", "read"}, {"page", "write"}, {"ucf", "load"},
		{"snapshot"}, {"route", "set"}, {"route", "show"}, {"odr", "set"},
	} {
		c, _, err := root.Find(path)
		if err != nil || c.Name() != path[len(path)-1] {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
	if f := root.PersistentFlags().Lookup("config"); f == nil || f.DefValue != config.DefaultPath {
		t.Error("--config flag missing")
	}
}
