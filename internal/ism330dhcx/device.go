// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ism330dhcx

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// RegIO is the register-level bus boundary. Both calls act on whichever bank
// is currently selected on the device.
type RegIO interface {
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg byte, data ...byte) error
}

// Opts configures New.
type Opts struct {
	// Logger receives bank and page traces at debug level. Defaults to the
	// logrus standard logger.
	Logger log.FieldLogger
}

// DefaultOpts is used when New gets a nil *Opts.
var DefaultOpts = Opts{}

// Dev is an ISM330DHCX reached through a RegIO.
type Dev struct {
	io  RegIO
	log log.FieldLogger

	bank  Bank
	scope *BankScope

	// embGen counts FSM/MLC configuration changes made through this Dev.
	embGen uint64

	// Rates last requested by the caller, before co-processor floors.
	reqXL ODR
	reqG  ODR
}

// New puts the device in the user bank, checks WHO_AM_I and enables block data
// update plus address auto-increment for burst reads.
func New(io RegIO, o *Opts) (*Dev, error) {
	if io == nil {
		return nil, errors.New("ism330dhcx: nil RegIO")
	}
	if o == nil {
		o = &DefaultOpts
	}
	d := &Dev{io: io, log: o.Logger}
	if d.log == nil {
		d.log = log.StandardLogger()
	}

	// The device may still sit in another bank after a host crash.
	if err := d.SetBank(UserBank); err != nil {
		return nil, err
	}

	who, err := d.readU8(RegWhoAmI)
	if err != nil {
		return nil, err
	}
	if who != WhoAmIValue {
		return nil, errors.Wrapf(ErrWrongDevice, "got 0x%02X want 0x%02X", who, WhoAmIValue)
	}

	if err := d.updateBits(RegCtrl3C, ctrl3BDU|ctrl3IfInc, ctrl3BDU|ctrl3IfInc); err != nil {
		return nil, err
	}

	if d.reqXL, err = d.odrField(RegCtrl1XL); err != nil {
		return nil, err
	}
	if d.reqG, err = d.odrField(RegCtrl2G); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("ISM330DHCX{bank:%s xl:%s g:%s}", d.bank, d.reqXL, d.reqG)
}

// Bank returns the bank this Dev last selected.
func (d *Dev) Bank() Bank { return d.bank }

// ReadRegister reads one user bank register.
func (d *Dev) ReadRegister(reg byte) (byte, error) {
	return d.readU8(reg)
}

// ReadRegisters burst-reads user bank registers starting at reg.
func (d *Dev) ReadRegisters(reg byte, dst []byte) error {
	if d.scope != nil {
		return ErrBankInUse
	}
	return d.read(UserBank, reg, dst)
}

// WriteRegister writes one user bank register. A write to FUNC_CFG_ACCESS is
// tracked as a bank change.
func (d *Dev) WriteRegister(reg, value byte) error {
	if err := d.writeU8(reg, value); err != nil {
		return err
	}
	if reg == RegFuncCfgAccess {
		d.bank = Bank((value & bankMask) >> bankShift)
	}
	return nil
}

// ReadBankRegister reads one register from any bank and returns to the user
// bank afterwards.
func (d *Dev) ReadBankRegister(b Bank, reg byte) (byte, error) {
	if b == UserBank {
		return d.readU8(reg)
	}
	var v byte
	err := d.WithBank(b, func(s *BankScope) error {
		var err error
		v, err = s.ReadU8(reg)
		return err
	})
	return v, err
}

// WriteBankRegister writes one register in any bank and returns to the user
// bank afterwards. A write to an embedded function enable or rate register
// re-resolves the sensor rates the same way SetFSMEnabled and friends do.
func (d *Dev) WriteBankRegister(b Bank, reg, value byte) error {
	if b == UserBank {
		return d.WriteRegister(reg, value)
	}
	err := d.WithBank(b, func(s *BankScope) error {
		return s.WriteU8(reg, value)
	})
	if err != nil || b != EmbeddedFuncBank {
		return err
	}
	switch reg {
	case RegEmbFuncEnB, RegEmbFuncODRCfgB, RegEmbFuncODRCfgC, RegFSMEnableA, RegFSMEnableB:
		return d.embeddedChanged()
	}
	return nil
}

func (d *Dev) read(b Bank, reg byte, dst []byte) error {
	if err := d.io.ReadReg(reg, dst); err != nil {
		return &IOError{Op: "read", Bank: b, Reg: reg, Err: err}
	}
	return nil
}

func (d *Dev) write(b Bank, reg byte, data ...byte) error {
	if err := d.io.WriteReg(reg, data...); err != nil {
		return &IOError{Op: "write", Bank: b, Reg: reg, Err: err}
	}
	return nil
}

// readU8, writeU8 and updateBits address the user bank and refuse to run
// while a bank scope is open.
func (d *Dev) readU8(reg byte) (byte, error) {
	if d.scope != nil {
		return 0, ErrBankInUse
	}
	var buf [1]byte
	if err := d.read(UserBank, reg, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (d *Dev) writeU8(reg, value byte) error {
	if d.scope != nil {
		return ErrBankInUse
	}
	return d.write(UserBank, reg, value)
}

func (d *Dev) updateBits(reg, mask, value byte) error {
	cur, err := d.readU8(reg)
	if err != nil {
		return err
	}
	return d.writeU8(reg, (cur&^mask)|(value&mask))
}

func (d *Dev) odrField(reg byte) (ODR, error) {
	v, err := d.readU8(reg)
	if err != nil {
		return ODROff, err
	}
	return ODR((v & odrMask) >> odrShift), nil
}
