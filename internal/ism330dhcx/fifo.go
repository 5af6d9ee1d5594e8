package ism330dhcx

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Tag identifies the sensor a FIFO record came from.
type Tag uint8

const (
	TagGyroNC          Tag = 0x01
	TagAccelNC         Tag = 0x02
	TagTemperature     Tag = 0x03
	TagTimestamp       Tag = 0x04
	TagCfgChange       Tag = 0x05
	TagSensorHubSlave0 Tag = 0x0E
	TagSensorHubSlave1 Tag = 0x0F
	TagSensorHubSlave2 Tag = 0x10
	TagSensorHubSlave3 Tag = 0x11
	TagStepCounter     Tag = 0x12
	TagSensorHubNack   Tag = 0x19
)

var tagNames = map[Tag]string{
	TagGyroNC:          "gyro",
	TagAccelNC:         "accel",
	TagTemperature:     "temperature",
	TagTimestamp:       "timestamp",
	TagCfgChange:       "cfg_change",
	TagSensorHubSlave0: "shub0",
	TagSensorHubSlave1: "shub1",
	TagSensorHubSlave2: "shub2",
	TagSensorHubSlave3: "shub3",
	TagStepCounter:     "step_counter",
	TagSensorHubNack:   "shub_nack",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tag(0x%02X)", uint8(t))
}

// MarshalText lets samples carry readable tags in JSON.
func (t Tag) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Record is one raw FIFO entry: the FIFO_DATA_OUT_TAG fields and the six
// bytes of FIFO_DATA_OUT_X_L..Z_H.
type Record struct {
	Tag     Tag
	Count   uint8 // tag_cnt, 2 bits
	Parity  uint8
	Payload [6]byte
}

// ParseRecord splits a tag byte and attaches payload.
func ParseRecord(tag byte, payload [6]byte) Record {
	return Record{
		Tag:     Tag(tag >> tagSensorShift),
		Count:   (tag >> tagCntShift) & tagCntMask,
		Parity:  tag & tagParityMask,
		Payload: payload,
	}
}

// FIFOStatus is FIFO_STATUS1/2.
type FIFOStatus struct {
	Level          int // unread records, DIFF_FIFO[9:0]
	Watermark      bool
	Overrun        bool
	Full           bool
	CounterBDR     bool
	OverrunLatched bool
}

// ReadFIFOStatus reads both status registers in one burst.
func (d *Dev) ReadFIFOStatus() (FIFOStatus, error) {
	var buf [2]byte
	if err := d.ReadRegisters(RegFIFOStatus1, buf[:]); err != nil {
		return FIFOStatus{}, err
	}
	return FIFOStatus{
		Level:          int(buf[1]&fifoStatus2Hi)<<8 | int(buf[0]),
		Watermark:      buf[1]&0x80 != 0,
		Overrun:        buf[1]&0x40 != 0,
		Full:           buf[1]&0x20 != 0,
		CounterBDR:     buf[1]&0x10 != 0,
		OverrunLatched: buf[1]&0x08 != 0,
	}, nil
}

// FIFOLevel returns the number of unread records.
func (d *Dev) FIFOLevel() (int, error) {
	st, err := d.ReadFIFOStatus()
	return st.Level, err
}

// FIFOIterator walks the records present when Drain was called. It reads
// from the device lazily, one record per Next, and cannot be restarted.
//
//	it, err := dev.Drain()
//	for it.Next() {
//		rec := it.Record()
//	}
//	if err := it.Err(); err != nil {
type FIFOIterator struct {
	dev       *Dev
	level     int
	remaining int
	rec       Record
	err       error
}

// Drain snapshots the FIFO level and returns an iterator over that many
// records. Records arriving later need another Drain.
func (d *Dev) Drain() (*FIFOIterator, error) {
	level, err := d.FIFOLevel()
	if err != nil {
		return nil, err
	}
	d.log.WithField("level", level).Debug("ism330dhcx: fifo drain")
	return &FIFOIterator{dev: d, level: level, remaining: level}, nil
}

// Next reads the next record. It returns false once the snapshot is
// exhausted or a read failed.
func (it *FIFOIterator) Next() bool {
	if it.err != nil || it.remaining == 0 {
		return false
	}
	tag, err := it.dev.readU8(RegFIFODataOutTag)
	if err != nil {
		it.err = err
		return false
	}
	var payload [6]byte
	if err := it.dev.ReadRegisters(RegFIFODataOutXL, payload[:]); err != nil {
		it.err = err
		return false
	}
	it.rec = ParseRecord(tag, payload)
	it.remaining--
	return true
}

// Record is the record read by the last successful Next.
func (it *FIFOIterator) Record() Record { return it.rec }

// Err is the error that stopped iteration, if any.
func (it *FIFOIterator) Err() error { return it.err }

// Len is the FIFO level read by Drain.
func (it *FIFOIterator) Len() int { return it.level }

// Remaining is the number of records not yet read.
func (it *FIFOIterator) Remaining() int { return it.remaining }

// Sensitivity holds the scale factors for the active full-scale settings.
type Sensitivity struct {
	Accel float64 // mg/LSB
	Gyro  float64 // mdps/LSB
}

// CfgChange is the payload of a TagCfgChange record: byte 0 carries a
// CTRL1_XL image and byte 1 a CTRL2_G image.
type CfgChange struct {
	AccelODR ODR   `json:"accel_odr"`
	AccelFS  uint8 `json:"accel_fs"` // fs_xl
	GyroODR  ODR   `json:"gyro_odr"`
	GyroFS   uint8 `json:"gyro_fs"` // fs_125, fs_g and fs_4000 as in CTRL2_G[3:0]
}

// Sample is a decoded record. Which fields are set depends on Tag.
type Sample struct {
	Tag         Tag
	Raw         [3]int16   // accel, gyro
	Value       [3]float64 // Raw scaled by the sensitivity, mg or mdps
	Temperature int16
	Timestamp   uint32
	Config      *CfgChange
	Payload     [6]byte
}

// Decoder turns records into samples. It is not safe for concurrent use;
// one Decoder follows one stream of records in order.
type Decoder struct {
	Sens Sensitivity

	// OnConfigChange runs for every TagCfgChange record and returns the
	// sensitivity to use from the next record on. Nil keeps Sens.
	OnConfigChange func(cc CfgChange, cur Sensitivity) Sensitivity
}

// Decode branches on the record tag. Tags without a known layout come back
// with only Payload filled in.
func (dec *Decoder) Decode(rec Record) Sample {
	s := Sample{Tag: rec.Tag, Payload: rec.Payload}
	p := rec.Payload[:]
	switch rec.Tag {
	case TagAccelNC, TagGyroNC:
		scale := dec.Sens.Accel
		if rec.Tag == TagGyroNC {
			scale = dec.Sens.Gyro
		}
		for i := range s.Raw {
			s.Raw[i] = int16(binary.LittleEndian.Uint16(p[2*i:]))
			s.Value[i] = float64(s.Raw[i]) * scale
		}
	case TagTemperature:
		s.Temperature = int16(binary.LittleEndian.Uint16(p))
	case TagTimestamp:
		s.Timestamp = binary.LittleEndian.Uint32(p)
	case TagCfgChange:
		cc := CfgChange{
			AccelODR: ODR((p[0] & odrMask) >> odrShift),
			AccelFS:  (p[0] & fsXLMask) >> 2,
			GyroODR:  ODR((p[1] & odrMask) >> odrShift),
			GyroFS:   p[1] & fsGMask,
		}
		s.Config = &cc
		if dec.OnConfigChange != nil {
			dec.Sens = dec.OnConfigChange(cc, dec.Sens)
		}
	}
	return s
}

// FIFOMode is FIFO_CTRL4.fifo_mode.
type FIFOMode uint8

const (
	FIFOBypass             FIFOMode = 0
	FIFOStopWhenFull       FIFOMode = 1
	FIFOContinuousToFIFO   FIFOMode = 3
	FIFOBypassToContinuous FIFOMode = 4
	FIFOContinuous         FIFOMode = 6
	FIFOBypassToFIFO       FIFOMode = 7
)

var fifoModeNames = map[FIFOMode]string{
	FIFOBypass:             "bypass",
	FIFOStopWhenFull:       "fifo",
	FIFOContinuousToFIFO:   "continuous-to-fifo",
	FIFOBypassToContinuous: "bypass-to-continuous",
	FIFOContinuous:         "continuous",
	FIFOBypassToFIFO:       "bypass-to-fifo",
}

func (m FIFOMode) String() string {
	if s, ok := fifoModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("fifo_mode(%d)", uint8(m))
}

// ParseFIFOMode accepts the names printed by FIFOMode.String.
func ParseFIFOMode(s string) (FIFOMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range fifoModeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, errors.Errorf("ism330dhcx: unknown fifo mode %q", s)
}

// MaxFIFOWatermark is the largest value FIFO_CTRL1/2 can hold.
const MaxFIFOWatermark = 0x1FF

// SetFIFOWatermark programs the 9-bit watermark in records.
func (d *Dev) SetFIFOWatermark(n uint16) error {
	if n > MaxFIFOWatermark {
		return errors.Errorf("ism330dhcx: fifo watermark %d above %d", n, MaxFIFOWatermark)
	}
	if err := d.writeU8(RegFIFOCtrl1, byte(n)); err != nil {
		return err
	}
	return d.updateBits(RegFIFOCtrl2, fifoWtmHighBit, byte(n>>8))
}

// SetFIFOMode writes FIFO_CTRL4.fifo_mode.
func (d *Dev) SetFIFOMode(m FIFOMode) error {
	if _, ok := fifoModeNames[m]; !ok {
		return errors.Errorf("ism330dhcx: invalid fifo mode %d", m)
	}
	return d.updateBits(RegFIFOCtrl4, fifoModeMask, byte(m))
}

// SetBatchRates writes FIFO_CTRL3. Off stops batching of that sensor.
func (d *Dev) SetBatchRates(accel, gyro ODR) error {
	if !accel.Valid() || !gyro.Valid() {
		return errors.Errorf("ism330dhcx: invalid batch rate %d/%d", accel, gyro)
	}
	return d.writeU8(RegFIFOCtrl3, byte(gyro)<<4|byte(accel))
}

// SetTimestampBatching writes FIFO_CTRL4.odr_ts_batch (0 disables, 1..3
// batch a timestamp every 1, 8 or 32 records) and turns the timestamp
// counter on or off to match.
func (d *Dev) SetTimestampBatching(decimation uint8) error {
	if decimation > 3 {
		return errors.Errorf("ism330dhcx: timestamp decimation %d above 3", decimation)
	}
	var en byte
	if decimation > 0 {
		en = ctrl10TimestampEn
	}
	if err := d.updateBits(RegCtrl10C, ctrl10TimestampEn, en); err != nil {
		return err
	}
	if err := d.updateBits(RegFIFOCtrl4, fifoTSMask, decimation<<fifoTSShift); err != nil {
		return err
	}
	d.log.WithFields(log.Fields{"decimation": decimation}).Debug("ism330dhcx: timestamp batching")
	return nil
}
