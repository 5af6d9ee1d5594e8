// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_mlc/internal/config"
	"github.com/relabs-tech/inertial_mlc/internal/sensors"
)

// RunProducer drains the FIFO every FIFO_POLL_INTERVAL and publishes each
// batch to TOPIC_SAMPLES. Device status goes to TOPIC_STATUS, retained, every
// CONSOLE_LOG_INTERVAL.
func RunProducer(ctx context.Context) error {
	log.Println("starting ISM330DHCX FIFO producer (FIFO → MQTT)")
	cfg := config.Get()

	imuManager := sensors.GetIMUManager()
	if err := imuManager.Init(); err != nil {
		return err
	}
	defer imuManager.Close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	return produce(ctx, client, imuManager, cfg)
}

type producer struct {
	client publisher
	mgr    *sensors.IMUManager
	cfg    *config.Config

	published int
}

func produce(ctx context.Context, client publisher, mgr *sensors.IMUManager, cfg *config.Config) error {
	p := &producer{client: client, mgr: mgr, cfg: cfg}

	poll := time.NewTicker(time.Duration(cfg.FIFOPollInterval) * time.Millisecond)
	defer poll.Stop()
	status := time.NewTicker(time.Duration(cfg.ConsoleLogInterval) * time.Millisecond)
	defer status.Stop()

	p.publishStatus()
	for {
		select {
		case <-ctx.Done():
			log.Printf("producer: stopping after %d samples", p.published)
			return nil
		case <-poll.C:
			p.publishSamples()
		case <-status.C:
			p.publishStatus()
		}
	}
}

// publishSamples drains once. Errors are logged and the loop goes on.
func (p *producer) publishSamples() {
	batch, err := p.mgr.Drain()
	if err != nil {
		log.Printf("producer: fifo drain error: %v", err)
	}
	if len(batch.Samples) == 0 {
		return
	}
	if err := publishJSON(p.client, p.cfg.TopicSamples, false, batch); err != nil {
		log.Printf("producer: %v", err)
		return
	}
	p.published += len(batch.Samples)
}

func (p *producer) publishStatus() {
	st, err := p.mgr.Status()
	if err != nil {
		log.Printf("producer: status read error: %v", err)
		return
	}
	if err := publishJSON(p.client, p.cfg.TopicStatus, true, st); err != nil {
		log.Printf("producer: %v", err)
		return
	}
	log.WithFields(log.Fields{
		"accel":      st.AccelODR,
		"gyro":       st.GyroODR,
		"fifo_level": st.FIFOLevel,
		"published":  p.published,
	}).Info("producer: status")
}
