package imu

import (
	"time"

	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
)

// Sample is one decoded FIFO record as published over MQTT.
type Sample struct {
	Seq    uint64 `json:"seq"`
	Sensor string `json:"sensor"` // "accel", "gyro", "temperature", "timestamp", "cfg_change", ...

	// accel in mg, gyro in mdps
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
	Z float64 `json:"z,omitempty"`

	Raw [3]int16 `json:"raw"`

	Temperature int16                 `json:"temperature,omitempty"`
	DeviceTime  uint32                `json:"device_time,omitempty"` // timestamp counter, 25 us per LSB
	Config      *ism330dhcx.CfgChange `json:"config,omitempty"`
	Count       uint8                 `json:"tag_cnt"`
}

// Batch is one drain of the FIFO.
type Batch struct {
	Time    time.Time `json:"time"`
	Level   int       `json:"level"`
	Samples []Sample  `json:"samples"`
}

// FromRecord converts a decoded record.
func FromRecord(seq uint64, rec ism330dhcx.Record, s ism330dhcx.Sample) Sample {
	return Sample{
		Seq:         seq,
		Sensor:      s.Tag.String(),
		X:           s.Value[0],
		Y:           s.Value[1],
		Z:           s.Value[2],
		Raw:         s.Raw,
		Temperature: s.Temperature,
		DeviceTime:  s.Timestamp,
		Config:      s.Config,
		Count:       rec.Count,
	}
}

// Status is the device state published next to the samples.
type Status struct {
	Time time.Time `json:"time" yaml:"time"`

	AccelODR          string `json:"accel_odr" yaml:"accel_odr"`
	GyroODR           string `json:"gyro_odr" yaml:"gyro_odr"`
	AccelODRRequested string `json:"accel_odr_requested" yaml:"accel_odr_requested"`
	GyroODRRequested  string `json:"gyro_odr_requested" yaml:"gyro_odr_requested"`

	FSMEnabled bool   `json:"fsm_enabled" yaml:"fsm_enabled"`
	FSMRate    string `json:"fsm_rate,omitempty" yaml:"fsm_rate,omitempty"`
	MLCEnabled bool   `json:"mlc_enabled" yaml:"mlc_enabled"`
	MLCRate    string `json:"mlc_rate,omitempty" yaml:"mlc_rate,omitempty"`

	FIFOLevel   int  `json:"fifo_level" yaml:"fifo_level"`
	FIFOOverrun bool `json:"fifo_overrun" yaml:"fifo_overrun"`

	Int1             string `json:"int1" yaml:"int1"`
	Int2             string `json:"int2" yaml:"int2"`
	InterruptsEnable bool   `json:"interrupts_enable" yaml:"interrupts_enable"`
}
