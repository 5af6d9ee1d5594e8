// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_mlc/internal/config"
	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
)

// spiReadFlag is set on the address byte of SPI reads.
const spiReadFlag = 0x80

// i2cTransport reaches the device through a periph I2C bus.
type i2cTransport struct {
	dev *i2c.Dev
}

func (t *i2cTransport) ReadReg(reg byte, dst []byte) error {
	return t.dev.Tx([]byte{reg}, dst)
}

func (t *i2cTransport) WriteReg(reg byte, data ...byte) error {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, reg)
	buf = append(buf, data...)
	return t.dev.Tx(buf, nil)
}

// spiTransport reaches the device through a periph SPI connection in mode 3.
type spiTransport struct {
	conn spi.Conn
}

func (t *spiTransport) ReadReg(reg byte, dst []byte) error {
	w := make([]byte, len(dst)+1)
	r := make([]byte, len(dst)+1)
	w[0] = reg | spiReadFlag
	if err := t.conn.Tx(w, r); err != nil {
		return err
	}
	copy(dst, r[1:])
	return nil
}

func (t *spiTransport) WriteReg(reg byte, data ...byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg&^spiReadFlag)
	w = append(w, data...)
	return t.conn.Tx(w, nil)
}

// OpenBus opens the register transport selected by IMU_BUS. The returned
// closer releases the underlying bus.
func OpenBus(cfg *config.Config) (ism330dhcx.RegIO, io.Closer, error) {
	if cfg.IMUBus == "sim" {
		sim := NewSimBus(nil)
		return sim, sim, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}

	switch cfg.IMUBus {
	case "spi":
		port, err := spireg.Open(cfg.IMUSPIDevice)
		if err != nil {
			return nil, nil, fmt.Errorf("IMU SPI open (%s): %w", cfg.IMUSPIDevice, err)
		}
		conn, err := port.Connect(physic.Frequency(cfg.IMUSPISpeedHz)*physic.Hertz, spi.Mode3, 8)
		if err != nil {
			port.Close()
			return nil, nil, fmt.Errorf("IMU SPI connect: %w", err)
		}
		return &spiTransport{conn: conn}, port, nil

	default:
		bus, err := i2creg.Open(cfg.IMUI2CBus)
		if err != nil {
			return nil, nil, fmt.Errorf("IMU I2C open (%q): %w", cfg.IMUI2CBus, err)
		}
		return &i2cTransport{dev: &i2c.Dev{Addr: cfg.IMUI2CAddr, Bus: bus}}, bus, nil
	}
}
