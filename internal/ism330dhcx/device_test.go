package ism330dhcx

import (
	"errors"
	"testing"
)

func TestNewConfiguresDevice(t *testing.T) {
	bus := newFakeBus()
	bus.bank = int(EmbeddedFuncBank) // left behind by a previous run
	bus.banks[UserBank][RegCtrl1XL] = byte(ODR208Hz) << 4
	bus.banks[UserBank][RegCtrl2G] = byte(ODR26Hz)<<4 | 0x0C

	d, err := New(bus, &Opts{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if bus.bank != int(UserBank) {
		t.Errorf("bank = %d", bus.bank)
	}
	if v := bus.banks[UserBank][RegCtrl3C]; v != ctrl3BDU|ctrl3IfInc {
		t.Errorf("CTRL3_C = 0x%02X", v)
	}
	if xl, g := d.RequestedODRs(); xl != ODR208Hz || g != ODR26Hz {
		t.Errorf("requested = %v %v", xl, g)
	}
}

func TestNewRejectsWrongDevice(t *testing.T) {
	bus := newFakeBus()
	bus.banks[UserBank][RegWhoAmI] = 0x6A

	if _, err := New(bus, &Opts{Logger: quietLogger()}); !errors.Is(err, ErrWrongDevice) {
		t.Fatalf("err = %v, want ErrWrongDevice", err)
	}
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil) succeeded")
	}
}

func TestIOErrorCarriesRegister(t *testing.T) {
	d, bus := newTestDev(t)
	bus.failRead = func(bank int, reg byte) error {
		if reg == RegStatus {
			return errBoom
		}
		return nil
	}

	_, err := d.ReadRegister(RegStatus)
	var ioe *IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("err = %T %v", err, err)
	}
	if ioe.Op != "read" || ioe.Reg != RegStatus || ioe.Bank != UserBank || !errors.Is(err, errBoom) {
		t.Errorf("IOError = %+v", ioe)
	}
}

func TestBankRegisterAccess(t *testing.T) {
	d, bus := newTestDev(t)

	if err := d.WriteBankRegister(EmbeddedFuncBank, RegMLCInt1, 0x42); err != nil {
		t.Fatal(err)
	}
	if bus.banks[EmbeddedFuncBank][RegMLCInt1] != 0x42 || bus.banks[UserBank][RegMLCInt1] != 0 {
		t.Error("write went to the wrong bank")
	}
	v, err := d.ReadBankRegister(EmbeddedFuncBank, RegMLCInt1)
	if err != nil || v != 0x42 {
		t.Errorf("ReadBankRegister = 0x%02X, %v", v, err)
	}
	if bus.bank != int(UserBank) {
		t.Errorf("bank = %d", bus.bank)
	}
}

func TestWriteRegisterTracksBankSelect(t *testing.T) {
	d, _ := newTestDev(t)

	if err := d.WriteRegister(RegFuncCfgAccess, 0x40); err != nil {
		t.Fatal(err)
	}
	if d.Bank() != SensorHubBank {
		t.Errorf("Bank = %s", d.Bank())
	}
}

func TestWriteBankRegisterReresolvesRates(t *testing.T) {
	d, bus := newTestDev(t)
	if _, err := d.SetAccelODR(26); err != nil {
		t.Fatal(err)
	}

	if err := d.WriteBankRegister(EmbeddedFuncBank, RegEmbFuncODRCfgB, byte(EmbODR104Hz)<<fsmODRShift); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteBankRegister(EmbeddedFuncBank, RegEmbFuncEnB, embFSMEn); err != nil {
		t.Fatal(err)
	}
	if xl := bus.banks[UserBank][RegCtrl1XL] >> odrShift; xl != byte(ODR104Hz) {
		t.Errorf("CTRL1_XL odr = %d with FSM at 104Hz", xl)
	}

	if err := d.WriteBankRegister(EmbeddedFuncBank, RegEmbFuncEnB, 0); err != nil {
		t.Fatal(err)
	}
	if xl := bus.banks[UserBank][RegCtrl1XL] >> odrShift; xl != byte(ODR26Hz) {
		t.Errorf("CTRL1_XL odr = %d after FSM off", xl)
	}
	if xl, _ := d.RequestedODRs(); xl != ODR26Hz {
		t.Errorf("requested = %v", xl)
	}
	if bus.bank != int(UserBank) {
		t.Errorf("bank = %d", bus.bank)
	}
}
