package ism330dhcx

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testUCF = `--ISM330DHCX
--FSM wrist tilt, generated
Ac 10 00
Ac 11 00
Ac 01 80
Ac 05 01
Ac 5F 10
Ac 01 00
WAIT 5
Ac 10 40

Ac 11 30
`

func TestParseUCF(t *testing.T) {
	ops, err := ParseUCF(strings.NewReader(testUCF))
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 9 {
		t.Fatalf("got %d ops want 9", len(ops))
	}
	if op := ops[2]; !op.Write || op.Reg != 0x01 || op.Value != 0x80 || op.Line != 5 {
		t.Errorf("ops[2] = %+v", op)
	}
	if op := ops[6]; op.Write || op.Wait != 5*time.Millisecond {
		t.Errorf("ops[6] = %+v", op)
	}
}

func TestParseUCFRejectsGarbage(t *testing.T) {
	for _, in := range []string{"Ac 10", "Ac 1G 00", "Ac 10 100", "WAIT x", "Xx 10 00"} {
		if _, err := ParseUCF(strings.NewReader(in)); err == nil {
			t.Errorf("ParseUCF(%q) succeeded", in)
		}
	}
}

func TestApplyUCF(t *testing.T) {
	d, bus := newTestDev(t)
	ops, err := ParseUCF(strings.NewReader(testUCF))
	if err != nil {
		t.Fatal(err)
	}

	var slept time.Duration
	if err := d.ApplyUCF(ops, func(dt time.Duration) { slept += dt }); err != nil {
		t.Fatal(err)
	}
	if slept != 5*time.Millisecond {
		t.Errorf("slept %v", slept)
	}
	emb := bus.banks[EmbeddedFuncBank]
	if emb[RegEmbFuncEnB] != 0x01 || emb[RegEmbFuncODRCfgB] != 0x10 {
		t.Errorf("embedded regs = %02X %02X", emb[RegEmbFuncEnB], emb[RegEmbFuncODRCfgB])
	}
	if bus.banks[UserBank][RegEmbFuncEnB] != 0 {
		t.Error("embedded write landed in user bank")
	}
	if bus.bank != int(UserBank) || d.Bank() != UserBank {
		t.Errorf("bank = %d / %s", bus.bank, d.Bank())
	}
	if xl, g := d.RequestedODRs(); xl != ODR104Hz || g != ODR52Hz {
		t.Errorf("requested = %v %v", xl, g)
	}
	dm, err := d.ReadEmbeddedDemand()
	if err != nil {
		t.Fatal(err)
	}
	if !dm.FSMEnabled || dm.FSMRate != EmbODR52Hz {
		t.Errorf("demand = %+v", dm)
	}
}

func TestApplyUCFRestoresBankOnFailure(t *testing.T) {
	d, bus := newTestDev(t)
	bus.failWrite = func(bank int, reg, val byte) error {
		if bank == int(EmbeddedFuncBank) && reg == RegEmbFuncEnB {
			return errBoom
		}
		return nil
	}
	ops, _ := ParseUCF(strings.NewReader(testUCF))

	if err := d.ApplyUCF(ops, func(time.Duration) {}); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v", err)
	}
	if bus.bank != int(UserBank) {
		t.Errorf("bank = %d after failure", bus.bank)
	}
}

func TestApplyUCFRaisesRatesToEngineFloor(t *testing.T) {
	d, bus := newTestDev(t)
	if _, err := d.SetAccelODR(26); err != nil {
		t.Fatal(err)
	}
	// FSM at 104Hz, sensor rates untouched by the file
	ops, err := ParseUCF(strings.NewReader("Ac 01 80\nAc 5F 18\nAc 05 01\nAc 01 00\n"))
	if err != nil {
		t.Fatal(err)
	}

	if err := d.ApplyUCF(ops, func(time.Duration) {}); err != nil {
		t.Fatal(err)
	}
	if xl, err := d.AccelODR(); err != nil || xl != ODR104Hz {
		t.Errorf("AccelODR = %v, %v want 104Hz", xl, err)
	}
	if xl, _ := d.RequestedODRs(); xl != ODR26Hz {
		t.Errorf("requested accel = %v want 26Hz", xl)
	}
	if bus.bank != int(UserBank) {
		t.Errorf("bank = %d", bus.bank)
	}

	if err := d.SetFSMEnabled(false); err != nil {
		t.Fatal(err)
	}
	if xl, _ := d.AccelODR(); xl != ODR26Hz {
		t.Errorf("after FSM off AccelODR = %v want 26Hz", xl)
	}
}
