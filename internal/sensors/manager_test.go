package sensors

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/relabs-tech/inertial_mlc/internal/config"
	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
	"github.com/relabs-tech/inertial_mlc/internal/metrics"
)

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig() *config.Config {
	return &config.Config{
		IMUBus:           "sim",
		IMUAccelODRHz:    104,
		IMUGyroODRHz:     52,
		AccelSensitivity: 0.061,
		GyroSensitivity:  8.75,
		FIFOMode:         "continuous",
		FIFOWatermark:    64,
		FIFOAccelBDRHz:   104,
		FIFOGyroBDRHz:    52,
		Int1Route:        "fifo_th",
	}
}

func newTestManager(t *testing.T, cfg *config.Config) (*IMUManager, *SimBus, *fakeClock) {
	t.Helper()
	clk := newClock()
	sim := NewSimBus(clk.now)
	m := NewIMUManager(metrics.New(), quietLogger())
	if err := m.InitWithBus(sim, sim, cfg); err != nil {
		t.Fatalf("InitWithBus: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, sim, clk
}

func TestManagerNotInitialized(t *testing.T) {
	m := NewIMUManager(nil, quietLogger())
	if m.IsAvailable() {
		t.Error("available before Init")
	}
	if _, err := m.Drain(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Drain err = %v", err)
	}
	if _, err := m.ReadRegister(ism330dhcx.UserBank, ism330dhcx.RegWhoAmI); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ReadRegister err = %v", err)
	}
}

func TestManagerInitProgramsDevice(t *testing.T) {
	m, _, _ := newTestManager(t, testConfig())

	st, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.AccelODR != "104Hz" || st.GyroODR != "52Hz" {
		t.Errorf("odr = %s / %s", st.AccelODR, st.GyroODR)
	}
	if st.Int1 != "fifo_th" || st.Int2 != "none" || !st.InterruptsEnable {
		t.Errorf("routes = %q %q enable=%v", st.Int1, st.Int2, st.InterruptsEnable)
	}
	if st.FSMEnabled || st.MLCEnabled {
		t.Errorf("engines on: %+v", st)
	}

	v, err := m.ReadRegister(ism330dhcx.UserBank, ism330dhcx.RegFIFOCtrl4)
	if err != nil {
		t.Fatal(err)
	}
	if v&0x07 != byte(ism330dhcx.FIFOContinuous) {
		t.Errorf("FIFO_CTRL4 = 0x%02X", v)
	}
}

func TestManagerDrain(t *testing.T) {
	m, _, clk := newTestManager(t, testConfig())
	clk.advance(500 * time.Millisecond)

	batch, err := m.Drain()
	if err != nil {
		t.Fatal(err)
	}
	if batch.Level != 78 || len(batch.Samples) != 78 {
		t.Fatalf("level %d, samples %d", batch.Level, len(batch.Samples))
	}
	for i, s := range batch.Samples {
		if s.Seq != uint64(i) {
			t.Fatalf("sample %d has seq %d", i, s.Seq)
		}
	}

	latest := m.Latest()
	acc, ok := latest["accel"]
	if !ok {
		t.Fatal("no accel sample")
	}
	if acc.Z < 900 || acc.Z > 1001 {
		t.Errorf("accel Z = %v mg", acc.Z)
	}
	if _, ok := latest["gyro"]; !ok {
		t.Error("no gyro sample")
	}

	batch, err = m.Drain()
	if err != nil || len(batch.Samples) != 0 {
		t.Errorf("second drain: %d samples, %v", len(batch.Samples), err)
	}
}

func TestManagerUCFRaisesAccelRate(t *testing.T) {
	ucf := filepath.Join(t.TempDir(), "fsm.ucf")
	// FSM on at 104 Hz
	body := "--ISM330DHCX\nAc 01 80\nAc 05 01\nAc 5F 18\nAc 01 00\n"
	if err := os.WriteFile(ucf, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.UCFFile = ucf
	cfg.IMUAccelODRHz = 26

	m, _, _ := newTestManager(t, cfg)
	st, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.AccelODR != "104Hz" || st.AccelODRRequested != "26Hz" || !st.FSMEnabled || st.FSMRate != "104Hz" {
		t.Errorf("status = %+v", st)
	}

	// Turning the FSM off through a raw register write brings the
	// requested rate back.
	if err := m.WriteRegister(ism330dhcx.EmbeddedFuncBank, ism330dhcx.RegEmbFuncEnB, 0); err != nil {
		t.Fatal(err)
	}
	if st, err := m.Status(); err != nil || st.AccelODR != "26Hz" || st.FSMEnabled {
		t.Errorf("after FSM off: %+v, %v", st, err)
	}
	odr, err := m.SetODR("accel", 26)
	if err != nil || odr != ism330dhcx.ODR26Hz {
		t.Errorf("SetODR = %s, %v", odr, err)
	}
	if _, err := m.SetODR("mag", 10); err == nil {
		t.Error("unknown sensor accepted")
	}
}

func TestManagerReadAllSkipsFIFOOutput(t *testing.T) {
	m, sim, clk := newTestManager(t, testConfig())
	clk.advance(100 * time.Millisecond)

	regs, err := m.ReadAllRegisters(ism330dhcx.UserBank)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := regs[ism330dhcx.RegFIFODataOutTag]; ok {
		t.Error("FIFO_DATA_OUT_TAG was read")
	}
	if regs[ism330dhcx.RegWhoAmI] != ism330dhcx.WhoAmIValue {
		t.Errorf("WHO_AM_I = 0x%02X", regs[ism330dhcx.RegWhoAmI])
	}
	if n := simLevel(t, sim); n == 0 {
		t.Error("FIFO drained by register dump")
	}

	exp, err := m.ExportRegisterConfig(ism330dhcx.UserBank)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := exp[ism330dhcx.RegWhoAmI]; ok {
		t.Error("read-only register exported")
	}
	if _, ok := exp[ism330dhcx.RegCtrl1XL]; !ok {
		t.Error("CTRL1_XL not exported")
	}

	emb, err := m.ReadAllRegisters(ism330dhcx.EmbeddedFuncBank)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := emb[ism330dhcx.RegPageValue]; ok {
		t.Error("PAGE_VALUE was read")
	}
	if _, err := m.ReadAllRegisters(ism330dhcx.SensorHubBank); err == nil {
		t.Error("sensor hub bank has no map")
	}
}

func TestManagerPageAndRoute(t *testing.T) {
	m, sim, _ := newTestManager(t, testConfig())

	if err := m.WritePage(0x17C, []byte{0x02}); err != nil {
		t.Fatal(err)
	}
	if sim.PagedMemory()[0x17C] != 0x02 {
		t.Error("page write lost")
	}
	got, err := m.ReadPage(0x17C, 1)
	if err != nil || got[0] != 0x02 {
		t.Errorf("ReadPage = % X, %v", got, err)
	}
	if _, err := m.ReadPage(0xFFF, 2); !errors.Is(err, ism330dhcx.ErrInvalidRange) {
		t.Errorf("past the end: %v", err)
	}

	tbl, _ := ism330dhcx.ParseRouteTable("mlc1,fsm2")
	if err := m.SetRoute(ism330dhcx.Pin2, tbl); err != nil {
		t.Fatal(err)
	}
	back, err := m.Route(ism330dhcx.Pin2)
	if err != nil {
		t.Fatal(err)
	}
	if back.MLC != 0x01 || back.FSM != 0x02 {
		t.Errorf("route = %+v", back)
	}
}

func TestRegisterMapAddressesParse(t *testing.T) {
	for _, b := range []ism330dhcx.Bank{ism330dhcx.UserBank, ism330dhcx.EmbeddedFuncBank} {
		addrs, err := mappedAddrs(b, false)
		if err != nil {
			t.Fatalf("%s: %v", b, err)
		}
		seen := map[byte]bool{}
		for _, a := range addrs {
			if seen[a] {
				t.Errorf("%s: duplicate 0x%02X", b, a)
			}
			seen[a] = true
		}
	}
	if _, err := RegisterMap(ism330dhcx.SensorHubBank); err == nil {
		t.Error("sensor hub map")
	}
}

func TestManagerConfigChangeKeepsSensitivity(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	clk := newClock()
	sim := NewSimBus(clk.now)
	m := NewIMUManager(metrics.New(), logger)
	if err := m.InitWithBus(sim, sim, testConfig()); err != nil {
		t.Fatalf("InitWithBus: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	xl, err := m.dev.ReadRegister(ism330dhcx.RegCtrl1XL)
	if err != nil {
		t.Fatal(err)
	}
	g, err := m.dev.ReadRegister(ism330dhcx.RegCtrl2G)
	if err != nil {
		t.Fatal(err)
	}
	accel := ism330dhcx.Record{Tag: ism330dhcx.TagAccelNC, Payload: [6]byte{0xE8, 0x03}} // x = 1000

	// same full scale as configured
	hook.Reset()
	s := m.dec.Decode(ism330dhcx.Record{Tag: ism330dhcx.TagCfgChange, Payload: [6]byte{xl, g}})
	if s.Config == nil {
		t.Fatal("cfg_change not decoded")
	}
	if e := hook.LastEntry(); e == nil || e.Level != log.InfoLevel {
		t.Errorf("unchanged full scale logged %+v", e)
	}

	// accel full scale bumped
	hook.Reset()
	m.dec.Decode(ism330dhcx.Record{Tag: ism330dhcx.TagCfgChange, Payload: [6]byte{xl ^ 0x04, g}})
	if e := hook.LastEntry(); e == nil || e.Level != log.WarnLevel {
		t.Errorf("full scale change logged %+v, want a warning", e)
	}
	if m.dec.Sens.Accel != 0.061 || m.dec.Sens.Gyro != 8.75 {
		t.Errorf("sensitivity = %+v, want the configured values", m.dec.Sens)
	}
	if v := m.dec.Decode(accel).Value[0]; v < 60.99 || v > 61.01 {
		t.Errorf("accel x = %v mg, want 61", v)
	}
}
