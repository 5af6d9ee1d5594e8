// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes bus, FIFO and data rate counters for the ISM330DHCX
// services in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
)

// Metrics groups the collectors of one device.
type Metrics struct {
	reg *prometheus.Registry

	BusTransactions *prometheus.CounterVec // op
	BusBytes        *prometheus.CounterVec // op
	BusErrors       *prometheus.CounterVec // op
	FIFORecords     *prometheus.CounterVec // tag
	FIFOLevel       prometheus.Gauge
	FIFODrains      prometheus.Counter
	ODR             *prometheus.GaugeVec // sensor, kind
}

// Default is used by the services; tests build their own with New.
var Default = New()

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		BusTransactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dhcx_bus_transactions_total",
			Help: "Register transactions issued to the device.",
		}, []string{"op"}),
		BusBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dhcx_bus_bytes_total",
			Help: "Register payload bytes moved over the bus.",
		}, []string{"op"}),
		BusErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dhcx_bus_errors_total",
			Help: "Register transactions that failed.",
		}, []string{"op"}),
		FIFORecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dhcx_fifo_records_total",
			Help: "FIFO records drained, by tag.",
		}, []string{"tag"}),
		FIFOLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dhcx_fifo_level",
			Help: "FIFO level seen by the last drain.",
		}),
		FIFODrains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dhcx_fifo_drains_total",
			Help: "FIFO drains performed.",
		}),
		ODR: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dhcx_odr_hz",
			Help: "Output data rate in Hz, as requested and as programmed.",
		}, []string{"sensor", "kind"}),
	}
	m.reg.MustRegister(m.BusTransactions, m.BusBytes, m.BusErrors,
		m.FIFORecords, m.FIFOLevel, m.FIFODrains, m.ODR)
	m.reg.MustRegister(prometheus.NewGoCollector())
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// SetODR records the requested and programmed rate of sensor ("accel" or
// "gyro").
func (m *Metrics) SetODR(sensor string, requested, effective ism330dhcx.ODR) {
	m.ODR.WithLabelValues(sensor, "requested").Set(requested.Hz())
	m.ODR.WithLabelValues(sensor, "effective").Set(effective.Hz())
}

// ObserveDrain counts one drain that found level records.
func (m *Metrics) ObserveDrain(level int) {
	m.FIFODrains.Inc()
	m.FIFOLevel.Set(float64(level))
}

// ObserveRecord counts one drained record.
func (m *Metrics) ObserveRecord(tag ism330dhcx.Tag) {
	m.FIFORecords.WithLabelValues(tag.String()).Inc()
}

// Instrument wraps a bus so every transaction is counted.
func (m *Metrics) Instrument(next ism330dhcx.RegIO) ism330dhcx.RegIO {
	return &instrumentedIO{next: next, m: m}
}

type instrumentedIO struct {
	next ism330dhcx.RegIO
	m    *Metrics
}

func (i *instrumentedIO) ReadReg(reg byte, dst []byte) error {
	err := i.next.ReadReg(reg, dst)
	i.observe("read", len(dst), err)
	return err
}

func (i *instrumentedIO) WriteReg(reg byte, data ...byte) error {
	err := i.next.WriteReg(reg, data...)
	i.observe("write", len(data), err)
	return err
}

func (i *instrumentedIO) observe(op string, n int, err error) {
	i.m.BusTransactions.WithLabelValues(op).Inc()
	if err != nil {
		i.m.BusErrors.WithLabelValues(op).Inc()
		return
	}
	i.m.BusBytes.WithLabelValues(op).Add(float64(n))
}
