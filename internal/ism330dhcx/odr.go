package ism330dhcx

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ODR is the 4-bit output data rate code of CTRL1_XL and CTRL2_G. The same
// codes select batch data rates in FIFO_CTRL3.
type ODR uint8

const (
	ODROff    ODR = 0
	ODR12Hz5  ODR = 1
	ODR26Hz   ODR = 2
	ODR52Hz   ODR = 3
	ODR104Hz  ODR = 4
	ODR208Hz  ODR = 5
	ODR417Hz  ODR = 6
	ODR833Hz  ODR = 7
	ODR1667Hz ODR = 8
	ODR3333Hz ODR = 9
	ODR6667Hz ODR = 10
)

// odrTable is ordered by rate. Comparisons go through the index in this
// table, never through the code value.
var odrTable = []struct {
	code ODR
	hz   float64
}{
	{ODROff, 0},
	{ODR12Hz5, 12.5},
	{ODR26Hz, 26},
	{ODR52Hz, 52},
	{ODR104Hz, 104},
	{ODR208Hz, 208},
	{ODR417Hz, 417},
	{ODR833Hz, 833},
	{ODR1667Hz, 1667},
	{ODR3333Hz, 3333},
	{ODR6667Hz, 6667},
}

func (o ODR) rank() int {
	for i, e := range odrTable {
		if e.code == o {
			return i
		}
	}
	return -1
}

// Valid reports whether o is a known rate code.
func (o ODR) Valid() bool { return o.rank() >= 0 }

// Hz is the nominal rate. Unknown codes report 0.
func (o ODR) Hz() float64 {
	if r := o.rank(); r >= 0 {
		return odrTable[r].hz
	}
	return 0
}

func (o ODR) String() string {
	switch {
	case o == ODROff:
		return "off"
	case !o.Valid():
		return fmt.Sprintf("odr(%d)", uint8(o))
	}
	return strconv.FormatFloat(o.Hz(), 'f', -1, 64) + "Hz"
}

// Less orders rates by frequency.
func (o ODR) Less(other ODR) bool { return o.rank() < other.rank() }

func maxODR(a, b ODR) ODR {
	if a.Less(b) {
		return b
	}
	return a
}

// QuantizeODR maps a frequency onto the smallest supported rate that is not
// below it. Non-positive input is Off; anything above 6667 Hz saturates.
func QuantizeODR(hz float64) ODR {
	if hz <= 0 {
		return ODROff
	}
	for _, e := range odrTable[1:] {
		if hz <= e.hz {
			return e.code
		}
	}
	return odrTable[len(odrTable)-1].code
}

// EmbODR is the coarse rate code shared by the FSM and MLC engines.
type EmbODR uint8

const (
	EmbODR12Hz5 EmbODR = 0
	EmbODR26Hz  EmbODR = 1
	EmbODR52Hz  EmbODR = 2
	EmbODR104Hz EmbODR = 3
)

// embToODR maps every coarse engine rate into the sensor rate domain.
var embToODR = map[EmbODR]ODR{
	EmbODR12Hz5: ODR12Hz5,
	EmbODR26Hz:  ODR26Hz,
	EmbODR52Hz:  ODR52Hz,
	EmbODR104Hz: ODR104Hz,
}

// SensorODR converts an engine rate to the equivalent sensor rate.
func (e EmbODR) SensorODR() ODR {
	return embToODR[e&0x03]
}

func (e EmbODR) String() string { return e.SensorODR().String() }

// QuantizeEmbODR picks the smallest engine rate not below hz, saturating at
// 104 Hz.
func QuantizeEmbODR(hz float64) EmbODR {
	for _, e := range []EmbODR{EmbODR12Hz5, EmbODR26Hz, EmbODR52Hz} {
		if hz <= e.SensorODR().Hz() {
			return e
		}
	}
	return EmbODR104Hz
}

// EmbeddedDemand is what the FSM and MLC currently require from the sensors.
// It is read from the device on every resolve and never cached.
type EmbeddedDemand struct {
	FSMEnabled bool
	FSMRate    EmbODR
	MLCEnabled bool
	MLCRate    EmbODR

	gen uint64
}

// Floor is the lowest sensor rate the enabled engines tolerate, Off when none
// is enabled.
func (dm EmbeddedDemand) Floor() ODR {
	floor := ODROff
	if dm.FSMEnabled {
		floor = maxODR(floor, dm.FSMRate.SensorODR())
	}
	if dm.MLCEnabled {
		floor = maxODR(floor, dm.MLCRate.SensorODR())
	}
	return floor
}

// ResolveODR applies the engine floor to a requested rate. Off requested
// while an engine runs becomes the engine's rate.
func ResolveODR(requested ODR, dm EmbeddedDemand) ODR {
	if !dm.FSMEnabled && !dm.MLCEnabled {
		return requested
	}
	return maxODR(requested, dm.Floor())
}

// ReadEmbeddedDemand reads EMB_FUNC_EN_B and the FSM/MLC rate registers.
func (d *Dev) ReadEmbeddedDemand() (EmbeddedDemand, error) {
	var en, cfgB, cfgC byte
	err := d.WithBank(EmbeddedFuncBank, func(s *BankScope) error {
		var err error
		if en, err = s.ReadU8(RegEmbFuncEnB); err != nil {
			return err
		}
		if cfgB, err = s.ReadU8(RegEmbFuncODRCfgB); err != nil {
			return err
		}
		cfgC, err = s.ReadU8(RegEmbFuncODRCfgC)
		return err
	})
	if err != nil {
		return EmbeddedDemand{}, err
	}
	return EmbeddedDemand{
		FSMEnabled: en&embFSMEn != 0,
		FSMRate:    EmbODR((cfgB & fsmODRMask) >> fsmODRShift),
		MLCEnabled: en&embMLCEn != 0,
		MLCRate:    EmbODR((cfgC & mlcODRMask) >> mlcODRShift),
		gen:        d.embGen,
	}, nil
}

// Resolve applies dm to requested. dm must come from ReadEmbeddedDemand on
// this Dev with no FSM/MLC change since, otherwise ErrStaleState is returned.
func (d *Dev) Resolve(requested ODR, dm EmbeddedDemand) (ODR, error) {
	if dm.gen != d.embGen {
		return ODROff, errors.Wrapf(ErrStaleState, "demand generation %d, device at %d", dm.gen, d.embGen)
	}
	return ResolveODR(requested, dm), nil
}

// ResolveAccelODR returns the accelerometer rate that SetAccelODR would
// program for hz, without writing it.
func (d *Dev) ResolveAccelODR(hz float64) (ODR, error) {
	dm, err := d.ReadEmbeddedDemand()
	if err != nil {
		return ODROff, err
	}
	return d.Resolve(QuantizeODR(hz), dm)
}

// ResolveGyroODR is ResolveAccelODR for the gyroscope.
func (d *Dev) ResolveGyroODR(hz float64) (ODR, error) {
	dm, err := d.ReadEmbeddedDemand()
	if err != nil {
		return ODROff, err
	}
	return d.Resolve(QuantizeODR(hz), dm)
}

// SetAccelODR quantizes hz, raises it to the FSM/MLC floor and writes
// CTRL1_XL.odr_xl. The requested rate is remembered so that it comes back
// once the engines no longer need a higher one.
func (d *Dev) SetAccelODR(hz float64) (ODR, error) {
	return d.setODR(RegCtrl1XL, &d.reqXL, QuantizeODR(hz))
}

// SetGyroODR is SetAccelODR for CTRL2_G.odr_g.
func (d *Dev) SetGyroODR(hz float64) (ODR, error) {
	return d.setODR(RegCtrl2G, &d.reqG, QuantizeODR(hz))
}

// AccelODR reads the rate currently programmed in CTRL1_XL.
func (d *Dev) AccelODR() (ODR, error) { return d.odrField(RegCtrl1XL) }

// GyroODR reads the rate currently programmed in CTRL2_G.
func (d *Dev) GyroODR() (ODR, error) { return d.odrField(RegCtrl2G) }

// FullScale returns the full-scale fields of CTRL1_XL and CTRL2_G in the
// form a cfg_change record carries them.
func (d *Dev) FullScale() (xl, g uint8, err error) {
	v, err := d.readU8(RegCtrl1XL)
	if err != nil {
		return 0, 0, err
	}
	w, err := d.readU8(RegCtrl2G)
	if err != nil {
		return 0, 0, err
	}
	return (v & fsXLMask) >> 2, w & fsGMask, nil
}

// RequestedODRs returns the accelerometer and gyroscope rates last asked
// for, before engine floors were applied.
func (d *Dev) RequestedODRs() (xl, g ODR) { return d.reqXL, d.reqG }

func (d *Dev) setODR(reg byte, req *ODR, requested ODR) (ODR, error) {
	dm, err := d.ReadEmbeddedDemand()
	if err != nil {
		return ODROff, err
	}
	eff, err := d.Resolve(requested, dm)
	if err != nil {
		return ODROff, err
	}
	if err := d.updateBits(reg, odrMask, byte(eff)<<odrShift); err != nil {
		return ODROff, err
	}
	*req = requested
	if eff != requested {
		d.log.WithFields(log.Fields{"reg": fmt.Sprintf("0x%02X", reg), "requested": requested, "effective": eff}).
			Debug("ism330dhcx: rate raised to embedded function floor")
	}
	return eff, nil
}

// reapplyODRs re-resolves both sensors after an FSM/MLC change.
func (d *Dev) reapplyODRs() error {
	if _, err := d.setODR(RegCtrl1XL, &d.reqXL, d.reqXL); err != nil {
		return err
	}
	_, err := d.setODR(RegCtrl2G, &d.reqG, d.reqG)
	return err
}

func (d *Dev) embeddedChanged() error {
	d.embGen++
	return d.reapplyODRs()
}

// SetFSMEnabled toggles EMB_FUNC_EN_B.fsm_en and re-resolves the sensor rates.
func (d *Dev) SetFSMEnabled(on bool) error {
	return d.setEmbBits(RegEmbFuncEnB, embFSMEn, on)
}

// SetMLCEnabled toggles EMB_FUNC_EN_B.mlc_en and re-resolves the sensor rates.
func (d *Dev) SetMLCEnabled(on bool) error {
	return d.setEmbBits(RegEmbFuncEnB, embMLCEn, on)
}

func (d *Dev) setEmbBits(reg, mask byte, on bool) error {
	var v byte
	if on {
		v = mask
	}
	err := d.WithBank(EmbeddedFuncBank, func(s *BankScope) error {
		return s.UpdateBits(reg, mask, v)
	})
	if err != nil {
		return err
	}
	return d.embeddedChanged()
}

// SetFSMDataRate programs EMB_FUNC_ODR_CFG_B.fsm_odr.
func (d *Dev) SetFSMDataRate(r EmbODR) error {
	err := d.WithBank(EmbeddedFuncBank, func(s *BankScope) error {
		return s.UpdateBits(RegEmbFuncODRCfgB, fsmODRMask, byte(r)<<fsmODRShift)
	})
	if err != nil {
		return err
	}
	return d.embeddedChanged()
}

// SetMLCDataRate programs EMB_FUNC_ODR_CFG_C.mlc_odr.
func (d *Dev) SetMLCDataRate(r EmbODR) error {
	err := d.WithBank(EmbeddedFuncBank, func(s *BankScope) error {
		return s.UpdateBits(RegEmbFuncODRCfgC, mlcODRMask, byte(r)<<mlcODRShift)
	})
	if err != nil {
		return err
	}
	return d.embeddedChanged()
}

// FSMEnable returns the FSM_ENABLE_A/B program mask, bit n for FSM n+1.
func (d *Dev) FSMEnable() (uint16, error) {
	var buf [2]byte
	err := d.WithBank(EmbeddedFuncBank, func(s *BankScope) error {
		return s.Read(RegFSMEnableA, buf[:])
	})
	return uint16(buf[1])<<8 | uint16(buf[0]), err
}

// SetFSMEnable writes the FSM_ENABLE_A/B program mask.
func (d *Dev) SetFSMEnable(mask uint16) error {
	err := d.WithBank(EmbeddedFuncBank, func(s *BankScope) error {
		if err := s.WriteU8(RegFSMEnableA, byte(mask)); err != nil {
			return err
		}
		return s.WriteU8(RegFSMEnableB, byte(mask>>8))
	})
	if err != nil {
		return err
	}
	return d.embeddedChanged()
}
