package ism330dhcx

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Bank is one of the three mutually exclusive register views selected by
// FUNC_CFG_ACCESS.reg_access.
type Bank uint8

const (
	UserBank         Bank = 0
	SensorHubBank    Bank = 1
	EmbeddedFuncBank Bank = 2
)

func (b Bank) String() string {
	switch b {
	case UserBank:
		return "user"
	case SensorHubBank:
		return "sensor-hub"
	case EmbeddedFuncBank:
		return "embedded-func"
	default:
		return fmt.Sprintf("bank(%d)", uint8(b))
	}
}

// ParseBank accepts the names printed by Bank.String.
func ParseBank(s string) (Bank, error) {
	switch s {
	case "", "user":
		return UserBank, nil
	case "sensor-hub", "shub":
		return SensorHubBank, nil
	case "embedded-func", "emb", "embedded":
		return EmbeddedFuncBank, nil
	}
	return UserBank, errors.Errorf("ism330dhcx: unknown bank %q", s)
}

// SetBank issues a single FUNC_CFG_ACCESS write. It never skips the write,
// even when target is already selected.
func (d *Dev) SetBank(target Bank) error {
	if target > EmbeddedFuncBank {
		return errors.Errorf("ism330dhcx: invalid bank %d", target)
	}
	if err := d.write(d.bank, RegFuncCfgAccess, byte(target)<<bankShift); err != nil {
		return err
	}
	d.bank = target
	d.log.WithField("bank", target).Debug("ism330dhcx: bank selected")
	return nil
}

// WithBank selects target, runs fn and always attempts to select the user
// bank again before returning, also when selecting target or fn failed.
//
// fn's error is returned as is. If restoring the user bank fails as well the
// result is a *RestoreError wrapping fn's error. Writes issued before a
// failure are not rolled back.
func (d *Dev) WithBank(target Bank, fn func(s *BankScope) error) (err error) {
	if d.scope != nil {
		return ErrBankInUse
	}
	s := &BankScope{dev: d, bank: target}
	d.scope = s
	defer func() {
		s.closed = true
		d.scope = nil
		if rerr := d.SetBank(UserBank); rerr != nil {
			d.log.WithFields(log.Fields{"bank": target, "error": rerr}).Warn("ism330dhcx: user bank restore failed")
			if err == nil {
				err = rerr
			} else {
				err = &RestoreError{Err: err, RestoreErr: rerr}
			}
		}
	}()

	if err := d.SetBank(target); err != nil {
		return err
	}
	return fn(s)
}

// BankScope is the capability handed to a WithBank body. It is the only way
// to reach registers outside the user bank and stops working once the body
// returns.
type BankScope struct {
	dev    *Dev
	bank   Bank
	closed bool
}

// Bank reports the bank this scope addresses.
func (s *BankScope) Bank() Bank { return s.bank }

func (s *BankScope) check() error {
	if s.closed {
		return errors.Wrapf(ErrStaleState, "bank scope %s used after restore", s.bank)
	}
	return nil
}

// Read burst-reads registers of the scope's bank.
func (s *BankScope) Read(reg byte, dst []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.dev.read(s.bank, reg, dst)
}

func (s *BankScope) ReadU8(reg byte) (byte, error) {
	var buf [1]byte
	if err := s.Read(reg, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (s *BankScope) WriteU8(reg, value byte) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.dev.write(s.bank, reg, value)
}

// UpdateBits replaces the bits selected by mask.
func (s *BankScope) UpdateBits(reg, mask, value byte) error {
	cur, err := s.ReadU8(reg)
	if err != nil {
		return err
	}
	return s.WriteU8(reg, (cur&^mask)|(value&mask))
}
