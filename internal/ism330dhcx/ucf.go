package ism330dhcx

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// UCFOp is one step of an Unico configuration file.
type UCFOp struct {
	Line  int
	Write bool // false for a WAIT
	Reg   byte
	Value byte
	Wait  time.Duration
}

// ParseUCF reads "Ac <reg> <value>" writes (hex) and "WAIT <ms>" delays.
// Lines starting with "--" and blank lines are skipped.
func ParseUCF(r io.Reader) ([]UCFOp, error) {
	var ops []UCFOp
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "--") {
			continue
		}
		f := strings.Fields(text)
		switch {
		case strings.EqualFold(f[0], "Ac") && len(f) == 3:
			reg, err := strconv.ParseUint(f[1], 16, 8)
			if err != nil {
				return nil, errors.Wrapf(err, "ucf line %d: register", line)
			}
			val, err := strconv.ParseUint(f[2], 16, 8)
			if err != nil {
				return nil, errors.Wrapf(err, "ucf line %d: value", line)
			}
			ops = append(ops, UCFOp{Line: line, Write: true, Reg: byte(reg), Value: byte(val)})
		case strings.EqualFold(f[0], "WAIT") && len(f) == 2:
			ms, err := strconv.ParseUint(f[1], 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "ucf line %d: wait", line)
			}
			ops = append(ops, UCFOp{Line: line, Wait: time.Duration(ms) * time.Millisecond})
		default:
			return nil, errors.Errorf("ucf line %d: cannot parse %q", line, text)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "ucf")
	}
	return ops, nil
}

// ApplyUCF replays ops on the bus. Bank switches inside the file are
// followed, and the user bank is selected again afterwards whatever
// happened. The FSM/MLC configuration is assumed changed: the rates now in
// CTRL1_XL and CTRL2_G become the requested rates and are then raised to the
// floor of whatever engines the file enabled.
//
// sleep performs WAIT steps; nil means time.Sleep.
func (d *Dev) ApplyUCF(ops []UCFOp, sleep func(time.Duration)) (err error) {
	if d.scope != nil {
		return ErrBankInUse
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	defer func() {
		d.embGen++
		if rerr := d.SetBank(UserBank); rerr != nil {
			if err == nil {
				err = rerr
			} else {
				err = &RestoreError{Err: err, RestoreErr: rerr}
			}
			return
		}
		if err != nil {
			return
		}
		if d.reqXL, err = d.odrField(RegCtrl1XL); err != nil {
			return
		}
		if d.reqG, err = d.odrField(RegCtrl2G); err != nil {
			return
		}
		err = d.reapplyODRs()
	}()

	writes := 0
	for _, op := range ops {
		if !op.Write {
			sleep(op.Wait)
			continue
		}
		if err := d.write(d.bank, op.Reg, op.Value); err != nil {
			return errors.Wrapf(err, "ucf line %d", op.Line)
		}
		if op.Reg == RegFuncCfgAccess {
			d.bank = Bank((op.Value & bankMask) >> bankShift)
		}
		writes++
	}
	d.log.WithFields(log.Fields{"writes": writes, "ops": len(ops)}).Info("ism330dhcx: ucf applied")
	return nil
}
