package ism330dhcx

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Pin is one of the two interrupt outputs.
type Pin uint8

const (
	Pin1 Pin = 1
	Pin2 Pin = 2
)

func (p Pin) String() string { return "INT" + strconv.Itoa(int(p)) }

func (p Pin) other() Pin {
	if p == Pin1 {
		return Pin2
	}
	return Pin1
}

// ParsePin accepts "1", "int1", "2" and "int2".
func ParsePin(s string) (Pin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "int1":
		return Pin1, nil
	case "2", "int2":
		return Pin2, nil
	}
	return 0, errors.Wrapf(ErrInvalidRoute, "pin %q", s)
}

// RouteTable lists the interrupt sources driven onto one pin. Boot,
// DENDataReady and SensorHub exist only on INT1; DataReadyTemp and Timestamp
// only on INT2.
//
// The embedded function bit of MDx_CFG has no field: it is derived from
// FSMLongCounter, FSM and MLC whenever the table is written.
type RouteTable struct {
	// INTx_CTRL
	DataReadyXL   bool
	DataReadyG    bool
	Boot          bool
	DataReadyTemp bool
	FIFOThreshold bool
	FIFOOverrun   bool
	FIFOFull      bool
	CounterBDR    bool
	DENDataReady  bool

	// MDx_CFG
	SensorHub   bool
	Timestamp   bool
	SixD        bool
	DoubleTap   bool
	FreeFall    bool
	WakeUp      bool
	SingleTap   bool
	SleepChange bool

	// Embedded functions bank
	FSMLongCounter bool
	FSM            uint16 // bit n routes FSM n+1
	MLC            uint8  // bit n routes MLC n+1
}

// EmbeddedFunc is the composite flag written to MDx_CFG.int_emb_func.
func (t RouteTable) EmbeddedFunc() bool {
	return t.FSMLongCounter || t.FSM != 0 || t.MLC != 0
}

// Any reports whether at least one source is routed.
func (t RouteTable) Any() bool {
	for _, f := range routeFlags {
		if *f.field(&t) {
			return true
		}
	}
	return t.EmbeddedFunc()
}

// Set enables the source called name, as listed by RouteNames.
func (t *RouteTable) Set(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range routeFlags {
		if f.name == name {
			*f.field(t) = true
			return nil
		}
	}
	if n, ok := indexedName(name, "fsm", 16); ok {
		t.FSM |= 1 << (n - 1)
		return nil
	}
	if n, ok := indexedName(name, "mlc", 8); ok {
		t.MLC |= 1 << (n - 1)
		return nil
	}
	return errors.Wrapf(ErrInvalidRoute, "unknown source %q", name)
}

// Names lists the enabled sources in RouteNames order.
func (t RouteTable) Names() []string {
	var out []string
	for _, f := range routeFlags {
		if *f.field(&t) {
			out = append(out, f.name)
		}
	}
	for i := 0; i < 16; i++ {
		if t.FSM&(1<<i) != 0 {
			out = append(out, fmt.Sprintf("fsm%d", i+1))
		}
	}
	for i := 0; i < 8; i++ {
		if t.MLC&(1<<i) != 0 {
			out = append(out, fmt.Sprintf("mlc%d", i+1))
		}
	}
	return out
}

func (t RouteTable) String() string {
	if !t.Any() {
		return "none"
	}
	return strings.Join(t.Names(), ",")
}

// ParseRouteTable builds a table from a comma separated list of source names.
// An empty string or "none" yields an empty table.
func ParseRouteTable(s string) (RouteTable, error) {
	var t RouteTable
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return t, nil
	}
	for _, name := range strings.Split(s, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if err := t.Set(name); err != nil {
			return RouteTable{}, err
		}
	}
	return t, nil
}

// RouteNames returns every source name accepted by RouteTable.Set for pin,
// with fsmN and mlcN collapsed.
func RouteNames(pin Pin) []string {
	var out []string
	for _, f := range routeFlags {
		if f.pins&pinBit(pin) != 0 {
			out = append(out, f.name)
		}
	}
	sort.Strings(out)
	return append(out, "fsm1..fsm16", "mlc1..mlc8")
}

// Validate rejects pins other than Pin1/Pin2 and sources the pin cannot carry.
func (t RouteTable) Validate(pin Pin) error {
	if pin != Pin1 && pin != Pin2 {
		return errors.Wrapf(ErrInvalidRoute, "pin %d", pin)
	}
	for _, f := range routeFlags {
		if *f.field(&t) && f.pins&pinBit(pin) == 0 {
			return errors.Wrapf(ErrInvalidRoute, "%s not available on %s", f.name, pin)
		}
	}
	return nil
}

func indexedName(name, prefix string, limit int) (int, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(name[len(prefix):])
	if err != nil || n < 1 || n > limit {
		return 0, false
	}
	return n, true
}

// Registers of one pin's route, in write order.
type routeReg int

const (
	rrEmbInt routeReg = iota
	rrFSMA
	rrFSMB
	rrMLC
	rrCtrl
	rrMD
	routeRegCount
)

type routeRegs [routeRegCount]byte

var pinRegAddrs = map[Pin]routeRegs{
	Pin1: {RegEmbFuncInt1, RegFSMInt1A, RegFSMInt1B, RegMLCInt1, RegInt1Ctrl, RegMD1Cfg},
	Pin2: {RegEmbFuncInt2, RegFSMInt2A, RegFSMInt2B, RegMLCInt2, RegInt2Ctrl, RegMD2Cfg},
}

const (
	onPin1   = 1
	onPin2   = 2
	bothPins = onPin1 | onPin2
)

func pinBit(p Pin) uint8 {
	switch p {
	case Pin1:
		return onPin1
	case Pin2:
		return onPin2
	}
	return 0
}

var routeFlags = []struct {
	name  string
	pins  uint8
	reg   routeReg
	bit   byte
	field func(*RouteTable) *bool
}{
	{"drdy_xl", bothPins, rrCtrl, 0x01, func(t *RouteTable) *bool { return &t.DataReadyXL }},
	{"drdy_g", bothPins, rrCtrl, 0x02, func(t *RouteTable) *bool { return &t.DataReadyG }},
	{"boot", onPin1, rrCtrl, 0x04, func(t *RouteTable) *bool { return &t.Boot }},
	{"drdy_temp", onPin2, rrCtrl, 0x04, func(t *RouteTable) *bool { return &t.DataReadyTemp }},
	{"fifo_th", bothPins, rrCtrl, 0x08, func(t *RouteTable) *bool { return &t.FIFOThreshold }},
	{"fifo_ovr", bothPins, rrCtrl, 0x10, func(t *RouteTable) *bool { return &t.FIFOOverrun }},
	{"fifo_full", bothPins, rrCtrl, 0x20, func(t *RouteTable) *bool { return &t.FIFOFull }},
	{"cnt_bdr", bothPins, rrCtrl, 0x40, func(t *RouteTable) *bool { return &t.CounterBDR }},
	{"den_drdy", onPin1, rrCtrl, 0x80, func(t *RouteTable) *bool { return &t.DENDataReady }},
	{"shub", onPin1, rrMD, 0x01, func(t *RouteTable) *bool { return &t.SensorHub }},
	{"timestamp", onPin2, rrMD, 0x01, func(t *RouteTable) *bool { return &t.Timestamp }},
	{"6d", bothPins, rrMD, 0x04, func(t *RouteTable) *bool { return &t.SixD }},
	{"double_tap", bothPins, rrMD, 0x08, func(t *RouteTable) *bool { return &t.DoubleTap }},
	{"ff", bothPins, rrMD, 0x10, func(t *RouteTable) *bool { return &t.FreeFall }},
	{"wu", bothPins, rrMD, 0x20, func(t *RouteTable) *bool { return &t.WakeUp }},
	{"single_tap", bothPins, rrMD, 0x40, func(t *RouteTable) *bool { return &t.SingleTap }},
	{"sleep_change", bothPins, rrMD, 0x80, func(t *RouteTable) *bool { return &t.SleepChange }},
	{"fsm_lc", bothPins, rrEmbInt, embIntFSMLC, func(t *RouteTable) *bool { return &t.FSMLongCounter }},
}

// encodeRoute produces the register images for a validated table, including
// the derived embedded function bit.
func encodeRoute(pin Pin, t RouteTable) routeRegs {
	var r routeRegs
	for _, f := range routeFlags {
		if f.pins&pinBit(pin) != 0 && *f.field(&t) {
			r[f.reg] |= f.bit
		}
	}
	r[rrFSMA] = byte(t.FSM)
	r[rrFSMB] = byte(t.FSM >> 8)
	r[rrMLC] = t.MLC
	if t.EmbeddedFunc() {
		r[rrMD] |= mdEmbFunc
	}
	return r
}

// decodeRoute is the inverse of encodeRoute. The embedded function bit in
// MDx_CFG is ignored since it is derived.
func decodeRoute(pin Pin, r routeRegs) RouteTable {
	var t RouteTable
	for _, f := range routeFlags {
		if f.pins&pinBit(pin) != 0 && r[f.reg]&f.bit != 0 {
			*f.field(&t) = true
		}
	}
	t.FSM = uint16(r[rrFSMB])<<8 | uint16(r[rrFSMA])
	t.MLC = r[rrMLC]
	return t
}

// globalEnable is the value of INT_CFG1.interrupts_enable for the two pins.
func globalEnable(a, b RouteTable) bool {
	return a.Any() || b.Any()
}

// SetRoute programs every source register of pin, then recomputes
// INT_CFG1.interrupts_enable from both pins.
//
// Embedded function sources are written first, then INTx_CTRL and MDx_CFG.
// If the other pin cannot be read back the error is returned and INT_CFG1 is
// left as it was; calling SetRoute again is enough to recover.
func (d *Dev) SetRoute(pin Pin, t RouteTable) error {
	if err := t.Validate(pin); err != nil {
		return err
	}
	addrs := pinRegAddrs[pin]
	regs := encodeRoute(pin, t)

	err := d.WithBank(EmbeddedFuncBank, func(s *BankScope) error {
		// Only int_fsm_lc is managed; the pedometer, tilt and significant
		// motion bits of EMB_FUNC_INTx are left alone.
		if err := s.UpdateBits(addrs[rrEmbInt], embIntFSMLC, regs[rrEmbInt]); err != nil {
			return err
		}
		for _, rr := range []routeReg{rrFSMA, rrFSMB, rrMLC} {
			if err := s.WriteU8(addrs[rr], regs[rr]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := d.writeU8(addrs[rrCtrl], regs[rrCtrl]); err != nil {
		return err
	}
	if err := d.writeU8(addrs[rrMD], regs[rrMD]); err != nil {
		return err
	}

	other, err := d.Route(pin.other())
	if err != nil {
		return errors.Wrapf(err, "interrupts_enable not updated, reading %s route", pin.other())
	}
	enable := globalEnable(t, other)
	var v byte
	if enable {
		v = intCfg1InterruptsEnable
	}
	if err := d.updateBits(RegIntCfg1, intCfg1InterruptsEnable, v); err != nil {
		return err
	}
	d.log.WithFields(log.Fields{"pin": pin, "route": t, "interrupts_enable": enable}).Debug("ism330dhcx: route set")
	return nil
}

// Route reads back the sources routed to pin.
func (d *Dev) Route(pin Pin) (RouteTable, error) {
	addrs, ok := pinRegAddrs[pin]
	if !ok {
		return RouteTable{}, errors.Wrapf(ErrInvalidRoute, "pin %d", pin)
	}
	var regs routeRegs
	var err error
	if regs[rrCtrl], err = d.readU8(addrs[rrCtrl]); err != nil {
		return RouteTable{}, err
	}
	if regs[rrMD], err = d.readU8(addrs[rrMD]); err != nil {
		return RouteTable{}, err
	}
	err = d.WithBank(EmbeddedFuncBank, func(s *BankScope) error {
		for _, rr := range []routeReg{rrEmbInt, rrFSMA, rrFSMB, rrMLC} {
			v, err := s.ReadU8(addrs[rr])
			if err != nil {
				return err
			}
			regs[rr] = v
		}
		return nil
	})
	if err != nil {
		return RouteTable{}, err
	}
	return decodeRoute(pin, regs), nil
}

// GlobalInterruptsEnabled reads INT_CFG1.interrupts_enable.
func (d *Dev) GlobalInterruptsEnabled() (bool, error) {
	v, err := d.readU8(RegIntCfg1)
	if err != nil {
		return false, err
	}
	return v&intCfg1InterruptsEnable != 0, nil
}
