package ism330dhcx

import (
	"errors"
	"testing"
)

func TestRouteEncodeDecode(t *testing.T) {
	tests := []struct {
		pin Pin
		rt  RouteTable
	}{
		{Pin1, RouteTable{}},
		{Pin1, RouteTable{DataReadyXL: true, Boot: true, DENDataReady: true, SensorHub: true, SleepChange: true}},
		{Pin1, RouteTable{FIFOThreshold: true, FSM: 0x8001, MLC: 0x80}},
		{Pin2, RouteTable{DataReadyTemp: true, Timestamp: true, FreeFall: true, FSMLongCounter: true}},
		{Pin2, RouteTable{CounterBDR: true, WakeUp: true, MLC: 0x03}},
	}
	for _, tt := range tests {
		regs := encodeRoute(tt.pin, tt.rt)
		if got := decodeRoute(tt.pin, regs); got != tt.rt {
			t.Errorf("%s %v: decoded %v", tt.pin, tt.rt, got)
		}
		if emb := regs[rrMD]&mdEmbFunc != 0; emb != tt.rt.EmbeddedFunc() {
			t.Errorf("%s %v: MD emb bit %v", tt.pin, tt.rt, emb)
		}
	}
}

func TestSetRouteCompositeFlag(t *testing.T) {
	d, bus := newTestDev(t)

	if err := d.SetRoute(Pin1, RouteTable{FIFOThreshold: true, SixD: true}); err != nil {
		t.Fatal(err)
	}
	if v := bus.banks[UserBank][RegMD1Cfg]; v&mdEmbFunc != 0 || v != 0x04 {
		t.Errorf("MD1_CFG = 0x%02X, want 0x04 without int1_emb_func", v)
	}
	if v := bus.banks[UserBank][RegInt1Ctrl]; v != 0x08 {
		t.Errorf("INT1_CTRL = 0x%02X", v)
	}

	if err := d.SetRoute(Pin1, RouteTable{MLC: 0x01}); err != nil {
		t.Fatal(err)
	}
	if v := bus.banks[UserBank][RegMD1Cfg]; v != mdEmbFunc {
		t.Errorf("MD1_CFG = 0x%02X, want emb func only", v)
	}
	if v := bus.banks[EmbeddedFuncBank][RegMLCInt1]; v != 0x01 {
		t.Errorf("MLC_INT1 = 0x%02X", v)
	}

	if err := d.SetRoute(Pin2, RouteTable{FSM: 0x0100}); err != nil {
		t.Fatal(err)
	}
	emb := bus.banks[EmbeddedFuncBank]
	if emb[RegFSMInt2A] != 0 || emb[RegFSMInt2B] != 0x01 {
		t.Errorf("FSM_INT2 = %02X %02X", emb[RegFSMInt2A], emb[RegFSMInt2B])
	}
	if bus.banks[UserBank][RegMD2Cfg]&mdEmbFunc == 0 {
		t.Error("MD2_CFG missing int2_emb_func")
	}
	if bus.bank != int(UserBank) {
		t.Errorf("bank = %d", bus.bank)
	}
}

func TestSetRouteGlobalEnableFollowsBothPins(t *testing.T) {
	d, bus := newTestDev(t)

	steps := []struct {
		pin Pin
		rt  RouteTable
	}{
		{Pin1, RouteTable{DataReadyXL: true}},
		{Pin2, RouteTable{}},
		{Pin1, RouteTable{}},
		{Pin2, RouteTable{MLC: 0x04}},
		{Pin1, RouteTable{FSMLongCounter: true}},
		{Pin2, RouteTable{}},
		{Pin1, RouteTable{}},
	}
	for i, st := range steps {
		if err := d.SetRoute(st.pin, st.rt); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		r1, err := d.Route(Pin1)
		if err != nil {
			t.Fatal(err)
		}
		r2, err := d.Route(Pin2)
		if err != nil {
			t.Fatal(err)
		}
		want := r1.Any() || r2.Any()
		got := bus.banks[UserBank][RegIntCfg1]&intCfg1InterruptsEnable != 0
		if got != want {
			t.Fatalf("step %d: interrupts_enable = %v, want %v (%v | %v)", i, got, want, r1, r2)
		}
		if en, _ := d.GlobalInterruptsEnabled(); en != got {
			t.Fatalf("step %d: GlobalInterruptsEnabled = %v", i, en)
		}
	}
}

func TestSetRouteKeepsOtherIntCfg1Bits(t *testing.T) {
	d, bus := newTestDev(t)
	bus.banks[UserBank][RegIntCfg1] = 0x05

	if err := d.SetRoute(Pin1, RouteTable{WakeUp: true}); err != nil {
		t.Fatal(err)
	}
	if v := bus.banks[UserBank][RegIntCfg1]; v != 0x85 {
		t.Errorf("INT_CFG1 = 0x%02X want 0x85", v)
	}
}

func TestSetRouteRejectsWrongPinSource(t *testing.T) {
	d, bus := newTestDev(t)

	for _, tt := range []struct {
		pin Pin
		rt  RouteTable
	}{
		{Pin2, RouteTable{Boot: true}},
		{Pin2, RouteTable{DENDataReady: true}},
		{Pin2, RouteTable{SensorHub: true}},
		{Pin1, RouteTable{DataReadyTemp: true}},
		{Pin1, RouteTable{Timestamp: true}},
		{Pin(3), RouteTable{}},
	} {
		if err := d.SetRoute(tt.pin, tt.rt); !errors.Is(err, ErrInvalidRoute) {
			t.Errorf("%s %v: err = %v", tt.pin, tt.rt, err)
		}
	}
	if len(bus.writes) != 0 {
		t.Errorf("invalid routes wrote %d registers", len(bus.writes))
	}
}

func TestSetRouteOtherPinReadFailure(t *testing.T) {
	d, bus := newTestDev(t)
	bus.banks[UserBank][RegIntCfg1] = intCfg1InterruptsEnable
	bus.failRead = func(bank int, reg byte) error {
		if bank == int(UserBank) && reg == RegInt2Ctrl {
			return errBoom
		}
		return nil
	}

	err := d.SetRoute(Pin1, RouteTable{})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(bus.writesTo(UserBank, RegIntCfg1)) != 0 {
		t.Error("INT_CFG1 written despite failed read")
	}
	if bus.banks[UserBank][RegIntCfg1] != intCfg1InterruptsEnable {
		t.Error("global enable changed")
	}
}

func TestSetRouteKeepsPedometerBits(t *testing.T) {
	d, bus := newTestDev(t)
	bus.banks[EmbeddedFuncBank][RegEmbFuncInt1] = 0x08

	if err := d.SetRoute(Pin1, RouteTable{FSMLongCounter: true}); err != nil {
		t.Fatal(err)
	}
	if v := bus.banks[EmbeddedFuncBank][RegEmbFuncInt1]; v != 0x88 {
		t.Errorf("EMB_FUNC_INT1 = 0x%02X want 0x88", v)
	}
	if bus.banks[UserBank][RegMD1Cfg]&mdEmbFunc == 0 {
		t.Error("long counter alone did not set the composite flag")
	}
}

func TestParseRouteTable(t *testing.T) {
	rt, err := ParseRouteTable("fifo_th, fsm3 ,mlc1,fsm16")
	if err != nil {
		t.Fatal(err)
	}
	want := RouteTable{FIFOThreshold: true, FSM: 0x8004, MLC: 0x01}
	if rt != want {
		t.Fatalf("got %+v want %+v", rt, want)
	}
	back, err := ParseRouteTable(rt.String())
	if err != nil || back != rt {
		t.Errorf("round trip of %q: %+v %v", rt.String(), back, err)
	}

	for _, bad := range []string{"bogus", "fsm0", "fsm17", "mlc9"} {
		if _, err := ParseRouteTable(bad); !errors.Is(err, ErrInvalidRoute) {
			t.Errorf("ParseRouteTable(%q) err = %v", bad, err)
		}
	}
	for _, empty := range []string{"", "none", " NONE "} {
		if rt, err := ParseRouteTable(empty); err != nil || rt.Any() {
			t.Errorf("ParseRouteTable(%q) = %v, %v", empty, rt, err)
		}
	}
}
