// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_mlc/internal/config"
	"github.com/relabs-tech/inertial_mlc/internal/imu"
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	accel, gyro         imu.Sample
	haveAccel, haveGyro bool

	status     imu.Status
	haveStatus bool
}

func (d *DisplayData) onBatch(b imu.Batch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range b.Samples {
		switch s.Sensor {
		case "accel":
			d.accel, d.haveAccel = s, true
		case "gyro":
			d.gyro, d.haveGyro = s, true
		}
	}
}

func (d *DisplayData) onStatus(st imu.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status, d.haveStatus = st, true
}

// lines returns the four text rows for content.
func (d *DisplayData) lines(content string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch content {
	case "status":
		if !d.haveStatus {
			return []string{"ISM330DHCX", "Waiting..."}
		}
		st := d.status
		out := []string{
			fmt.Sprintf("XL %s G %s", st.AccelODR, st.GyroODR),
			fmt.Sprintf("FIFO %d", st.FIFOLevel),
		}
		if st.FIFOOverrun {
			out[1] += " OVR"
		}
		eng := "FSM - MLC -"
		if st.FSMEnabled || st.MLCEnabled {
			eng = fmt.Sprintf("FSM %s MLC %s", onOff(st.FSMEnabled), onOff(st.MLCEnabled))
		}
		return append(out, eng, "I1 "+st.Int1)
	default:
		if !d.haveAccel && !d.haveGyro {
			return []string{"ISM330DHCX", "Waiting..."}
		}
		a, g := d.accel, d.gyro
		return []string{
			fmt.Sprintf("A:%5d %5d", a.Raw[0], a.Raw[1]),
			fmt.Sprintf("  %5d", a.Raw[2]),
			fmt.Sprintf("G:%5d %5d", g.Raw[0], g.Raw[1]),
			fmt.Sprintf("  %5d", g.Raw[2]),
		}
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// renderLines draws up to four rows of 7x13 text on a 128x64 frame.
func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, l := range lines {
		if i == 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(l)
	}
	return img
}

// RunDisplay shows the latest samples or the device status on an SSD1306.
func RunDisplay(ctx context.Context) error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, cfg.DisplayI2CAddr, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderLines([]string{"", "  ISM330DHCX", "  FIFO monitor"}), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	data := &DisplayData{}
	if cfg.DisplayContent == "status" {
		err = subscribeJSON(client, cfg.TopicStatus, data.onStatus)
	} else {
		err = subscribeJSON(client, cfg.TopicSamples, data.onBatch)
	}
	if err != nil {
		return fmt.Errorf("display subscribe: %w", err)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()
	log.Println("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			return dev.Halt()
		case <-ticker.C:
			img := renderLines(data.lines(cfg.DisplayContent))
			if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}
