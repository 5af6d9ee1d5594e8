// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_mlc/internal/config"
	"github.com/relabs-tech/inertial_mlc/internal/imu"
)

// RunConsoleMQTT prints the published samples and status. Samples are
// thinned to the newest accel and gyro record every CONSOLE_LOG_INTERVAL.
func RunConsoleMQTT(ctx context.Context, out io.Writer) error {
	cfg := config.Get()
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	c := &console{out: out, interval: time.Duration(cfg.ConsoleLogInterval) * time.Millisecond}

	if err := subscribeJSON(client, cfg.TopicSamples, c.onBatch); err != nil {
		return err
	}
	log.Printf("console: subscribed to %s", cfg.TopicSamples)
	if err := subscribeJSON(client, cfg.TopicStatus, c.onStatus); err != nil {
		return err
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatus)

	<-ctx.Done()
	return nil
}

type console struct {
	mu       sync.Mutex
	out      io.Writer
	interval time.Duration
	last     time.Time
}

func (c *console) onBatch(b imu.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.last.IsZero() && b.Time.Sub(c.last) < c.interval {
		return
	}
	c.last = b.Time

	fmt.Fprintf(c.out, "[FIFO ] level=%d records=%d\n", b.Level, len(b.Samples))
	seen := map[string]bool{}
	for i := len(b.Samples) - 1; i >= 0; i-- {
		s := b.Samples[i]
		if seen[s.Sensor] {
			continue
		}
		seen[s.Sensor] = true
		if line := formatSample(s); line != "" {
			fmt.Fprintln(c.out, line)
		}
	}
}

func (c *console) onStatus(st imu.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, formatStatus(st))
}

func formatSample(s imu.Sample) string {
	switch s.Sensor {
	case "accel":
		return fmt.Sprintf("[ACCEL] x=%9.2f y=%9.2f z=%9.2f mg   #%d", s.X, s.Y, s.Z, s.Seq)
	case "gyro":
		return fmt.Sprintf("[GYRO ] x=%9.1f y=%9.1f z=%9.1f mdps #%d", s.X, s.Y, s.Z, s.Seq)
	case "temperature":
		return fmt.Sprintf("[TEMP ] raw=%d", s.Temperature)
	case "timestamp":
		return fmt.Sprintf("[TIME ] ticks=%d (%.3fs)", s.DeviceTime, float64(s.DeviceTime)*25e-6)
	case "cfg_change":
		if s.Config != nil {
			return fmt.Sprintf("[CFG  ] accel %s fs=%d gyro %s fs=%d", s.Config.AccelODR, s.Config.AccelFS, s.Config.GyroODR, s.Config.GyroFS)
		}
	}
	return ""
}

func formatStatus(st imu.Status) string {
	engines := "none"
	switch {
	case st.FSMEnabled && st.MLCEnabled:
		engines = fmt.Sprintf("fsm@%s mlc@%s", st.FSMRate, st.MLCRate)
	case st.FSMEnabled:
		engines = "fsm@" + st.FSMRate
	case st.MLCEnabled:
		engines = "mlc@" + st.MLCRate
	}
	return fmt.Sprintf("[STAT ] accel=%s (req %s) gyro=%s (req %s) engines=%s fifo=%d ovr=%v int1=%s int2=%s",
		st.AccelODR, st.AccelODRRequested, st.GyroODR, st.GyroODRRequested, engines,
		st.FIFOLevel, st.FIFOOverrun, st.Int1, st.Int2)
}
