// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_mlc/internal/config"
	"github.com/relabs-tech/inertial_mlc/internal/imu"
	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
	"github.com/relabs-tech/inertial_mlc/internal/metrics"
)

// ErrNotInitialized is returned by every device call before Init.
var ErrNotInitialized = errors.New("imu: device not initialized")

// IMUManager owns the ISM330DHCX. The device driver does not lock, so every
// call goes through the manager mutex; producer, debugger and CLI share it.
type IMUManager struct {
	mu sync.Mutex

	dev     *ism330dhcx.Dev
	closer  io.Closer
	dec     *ism330dhcx.Decoder
	metrics *metrics.Metrics
	log     log.FieldLogger

	// full scale the configured sensitivities belong to
	fsXL, fsG uint8

	seq    uint64
	latest map[string]imu.Sample
}

var (
	imuManager     *IMUManager
	imuManagerOnce sync.Once
)

// GetIMUManager returns the process-wide manager.
func GetIMUManager() *IMUManager {
	imuManagerOnce.Do(func() {
		imuManager = NewIMUManager(metrics.Default, nil)
	})
	return imuManager
}

// NewIMUManager creates an uninitialized manager. A nil logger uses the
// logrus standard logger.
func NewIMUManager(m *metrics.Metrics, logger log.FieldLogger) *IMUManager {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if m == nil {
		m = metrics.New()
	}
	return &IMUManager{metrics: m, log: logger, latest: make(map[string]imu.Sample)}
}

// Init opens the bus named by the global configuration and configures the
// device from it.
func (m *IMUManager) Init() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("imu: configuration not loaded")
	}
	bus, closer, err := OpenBus(cfg)
	if err != nil {
		return err
	}
	if err := m.InitWithBus(bus, closer, cfg); err != nil {
		closer.Close()
		return err
	}
	return nil
}

// InitWithBus configures the device behind bus: UCF program first, since it
// may change the FSM/MLC rates, then ODRs, FIFO and interrupt routes.
func (m *IMUManager) InitWithBus(bus ism330dhcx.RegIO, closer io.Closer, cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dev, err := ism330dhcx.New(m.metrics.Instrument(bus), &ism330dhcx.Opts{Logger: m.log})
	if err != nil {
		return fmt.Errorf("imu: %w", err)
	}
	m.log.Printf("imu: found ISM330DHCX on %s bus", cfg.IMUBus)

	if cfg.UCFFile != "" {
		n, err := applyUCFFile(dev, cfg.UCFFile)
		if err != nil {
			return fmt.Errorf("imu: UCF %s: %w", cfg.UCFFile, err)
		}
		m.log.Printf("imu: applied %d UCF steps from %s", n, cfg.UCFFile)
	}

	xl, err := dev.SetAccelODR(cfg.IMUAccelODRHz)
	if err != nil {
		return fmt.Errorf("imu: set accel ODR: %w", err)
	}
	g, err := dev.SetGyroODR(cfg.IMUGyroODRHz)
	if err != nil {
		return fmt.Errorf("imu: set gyro ODR: %w", err)
	}
	m.log.Printf("imu: accel %s (requested %v Hz), gyro %s (requested %v Hz)", xl, cfg.IMUAccelODRHz, g, cfg.IMUGyroODRHz)
	reqXL, reqG := dev.RequestedODRs()
	m.metrics.SetODR("accel", reqXL, xl)
	m.metrics.SetODR("gyro", reqG, g)

	fsXL, fsG, err := dev.FullScale()
	if err != nil {
		return fmt.Errorf("imu: read full scale: %w", err)
	}

	if err := configureFIFO(dev, cfg); err != nil {
		return fmt.Errorf("imu: %w", err)
	}

	for _, r := range []struct {
		pin   ism330dhcx.Pin
		route string
	}{{ism330dhcx.Pin1, cfg.Int1Route}, {ism330dhcx.Pin2, cfg.Int2Route}} {
		table, err := ism330dhcx.ParseRouteTable(r.route)
		if err != nil {
			return fmt.Errorf("imu: %s route: %w", r.pin, err)
		}
		if err := dev.SetRoute(r.pin, table); err != nil {
			return fmt.Errorf("imu: %s route: %w", r.pin, err)
		}
		m.log.Printf("imu: %s route %s", r.pin, table)
	}

	if m.closer != nil {
		m.closer.Close()
	}
	m.dev = dev
	m.closer = closer
	m.fsXL, m.fsG = fsXL, fsG
	m.dec = &ism330dhcx.Decoder{
		Sens:           ism330dhcx.Sensitivity{Accel: cfg.AccelSensitivity, Gyro: cfg.GyroSensitivity},
		OnConfigChange: m.onConfigChange,
	}
	m.seq = 0
	m.latest = make(map[string]imu.Sample)
	return nil
}

// onConfigChange keeps the configured sensitivities. ACCEL_SENSITIVITY and
// GYRO_SENSITIVITY describe the full scale programmed at Init; a record
// announcing another full scale is reported at Warn and later samples stay
// scaled with the configured values until the sensitivities are updated.
func (m *IMUManager) onConfigChange(cc ism330dhcx.CfgChange, cur ism330dhcx.Sensitivity) ism330dhcx.Sensitivity {
	entry := m.log.WithFields(log.Fields{
		"accel_odr": cc.AccelODR, "accel_fs": cc.AccelFS,
		"gyro_odr": cc.GyroODR, "gyro_fs": cc.GyroFS,
	})
	if cc.AccelFS != m.fsXL || cc.GyroFS != m.fsG {
		entry.Warn("imu: full scale changed, ACCEL_SENSITIVITY and GYRO_SENSITIVITY no longer match")
		return cur
	}
	entry.Info("imu: sensor configuration changed")
	return cur
}

func configureFIFO(dev *ism330dhcx.Dev, cfg *config.Config) error {
	mode, err := ism330dhcx.ParseFIFOMode(cfg.FIFOMode)
	if err != nil {
		return err
	}
	if err := dev.SetFIFOWatermark(cfg.FIFOWatermark); err != nil {
		return fmt.Errorf("fifo watermark: %w", err)
	}
	if err := dev.SetBatchRates(ism330dhcx.QuantizeODR(cfg.FIFOAccelBDRHz), ism330dhcx.QuantizeODR(cfg.FIFOGyroBDRHz)); err != nil {
		return fmt.Errorf("fifo batch rates: %w", err)
	}
	if err := dev.SetTimestampBatching(cfg.FIFOTimestampDecimation); err != nil {
		return fmt.Errorf("fifo timestamp batching: %w", err)
	}
	// Mode last: leaving bypass starts collecting.
	if err := dev.SetFIFOMode(mode); err != nil {
		return fmt.Errorf("fifo mode: %w", err)
	}
	return nil
}

func applyUCFFile(dev *ism330dhcx.Dev, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	ops, err := ism330dhcx.ParseUCF(f)
	if err != nil {
		return 0, err
	}
	return len(ops), dev.ApplyUCF(ops, time.Sleep)
}

// IsAvailable reports whether Init succeeded.
func (m *IMUManager) IsAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dev != nil
}

// Close releases the bus.
func (m *IMUManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dev = nil
	if m.closer == nil {
		return nil
	}
	err := m.closer.Close()
	m.closer = nil
	return err
}

// Drain empties the records present in the FIFO. On a read error the
// records decoded so far are returned together with the error.
func (m *IMUManager) Drain() (imu.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return imu.Batch{}, ErrNotInitialized
	}

	it, err := m.dev.Drain()
	if err != nil {
		return imu.Batch{}, err
	}
	batch := imu.Batch{Time: time.Now(), Level: it.Len(), Samples: make([]imu.Sample, 0, it.Len())}
	for it.Next() {
		rec := it.Record()
		s := imu.FromRecord(m.seq, rec, m.dec.Decode(rec))
		m.seq++
		batch.Samples = append(batch.Samples, s)
		m.latest[s.Sensor] = s
		m.metrics.ObserveRecord(rec.Tag)
	}
	m.metrics.ObserveDrain(it.Len())
	return batch, it.Err()
}

// Latest returns the most recent sample of every record kind seen.
func (m *IMUManager) Latest() map[string]imu.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]imu.Sample, len(m.latest))
	for k, v := range m.latest {
		out[k] = v
	}
	return out
}

// Status reads rates, engines, FIFO state and interrupt routes.
func (m *IMUManager) Status() (imu.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return imu.Status{}, ErrNotInitialized
	}
	d := m.dev
	st := imu.Status{Time: time.Now()}

	xl, err := d.AccelODR()
	if err != nil {
		return st, err
	}
	g, err := d.GyroODR()
	if err != nil {
		return st, err
	}
	reqXL, reqG := d.RequestedODRs()
	st.AccelODR, st.GyroODR = xl.String(), g.String()
	st.AccelODRRequested, st.GyroODRRequested = reqXL.String(), reqG.String()

	dm, err := d.ReadEmbeddedDemand()
	if err != nil {
		return st, err
	}
	st.FSMEnabled, st.MLCEnabled = dm.FSMEnabled, dm.MLCEnabled
	if dm.FSMEnabled {
		st.FSMRate = dm.FSMRate.String()
	}
	if dm.MLCEnabled {
		st.MLCRate = dm.MLCRate.String()
	}

	fs, err := d.ReadFIFOStatus()
	if err != nil {
		return st, err
	}
	st.FIFOLevel, st.FIFOOverrun = fs.Level, fs.Overrun || fs.OverrunLatched

	r1, err := d.Route(ism330dhcx.Pin1)
	if err != nil {
		return st, err
	}
	r2, err := d.Route(ism330dhcx.Pin2)
	if err != nil {
		return st, err
	}
	st.Int1, st.Int2 = r1.String(), r2.String()
	if st.InterruptsEnable, err = d.GlobalInterruptsEnabled(); err != nil {
		return st, err
	}
	return st, nil
}

// ReadRegister reads one register of bank.
func (m *IMUManager) ReadRegister(bank ism330dhcx.Bank, addr byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return 0, ErrNotInitialized
	}
	return m.dev.ReadBankRegister(bank, addr)
}

// WriteRegister writes one register of bank.
func (m *IMUManager) WriteRegister(bank ism330dhcx.Bank, addr, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return ErrNotInitialized
	}
	m.log.WithFields(log.Fields{"bank": bank, "reg": fmt.Sprintf("0x%02X", addr), "value": fmt.Sprintf("0x%02X", value)}).
		Info("imu: register write")
	return m.dev.WriteBankRegister(bank, addr, value)
}

// readSideEffect lists registers whose read consumes data.
func readSideEffect(bank ism330dhcx.Bank, addr byte) bool {
	if bank == ism330dhcx.UserBank {
		return addr >= ism330dhcx.RegFIFODataOutTag && addr < ism330dhcx.RegFIFODataOutXL+6
	}
	return bank == ism330dhcx.EmbeddedFuncBank && addr == ism330dhcx.RegPageValue
}

// mappedAddrs returns the addresses of bank's register map, optionally only
// the writable ones, skipping registers that change state when read.
func mappedAddrs(bank ism330dhcx.Bank, writableOnly bool) ([]byte, error) {
	regs, err := RegisterMap(bank)
	if err != nil {
		return nil, err
	}
	addrs := make([]byte, 0, len(regs))
	for _, r := range regs {
		if writableOnly && r.Access != "RW" {
			continue
		}
		a, err := strconv.ParseUint(r.Address, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("register map %s: %w", r.Name, err)
		}
		if readSideEffect(bank, byte(a)) {
			continue
		}
		addrs = append(addrs, byte(a))
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs, nil
}

func (m *IMUManager) readAddrs(bank ism330dhcx.Bank, writableOnly bool) (map[byte]byte, error) {
	addrs, err := mappedAddrs(bank, writableOnly)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return nil, ErrNotInitialized
	}
	out := make(map[byte]byte, len(addrs))
	for _, a := range addrs {
		v, err := m.dev.ReadBankRegister(bank, a)
		if err != nil {
			return nil, err
		}
		out[a] = v
	}
	return out, nil
}

// ReadAllRegisters reads every mapped register of bank. FIFO output and
// PAGE_VALUE are skipped.
func (m *IMUManager) ReadAllRegisters(bank ism330dhcx.Bank) (map[byte]byte, error) {
	return m.readAddrs(bank, false)
}

// ExportRegisterConfig reads the writable registers of bank.
func (m *IMUManager) ExportRegisterConfig(bank ism330dhcx.Bank) (map[byte]byte, error) {
	return m.readAddrs(bank, true)
}

// GetRegisterMap returns the metadata of bank.
func (m *IMUManager) GetRegisterMap(bank ism330dhcx.Bank) ([]RegisterInfo, error) {
	return RegisterMap(bank)
}

// ReadPage reads n bytes of paged memory.
func (m *IMUManager) ReadPage(addr uint16, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return nil, ErrNotInitialized
	}
	return m.dev.ReadPage(addr, n)
}

// WritePage writes data to paged memory.
func (m *IMUManager) WritePage(addr uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return ErrNotInitialized
	}
	return m.dev.WritePage(addr, data)
}

// Route reads the routing of pin.
func (m *IMUManager) Route(pin ism330dhcx.Pin) (ism330dhcx.RouteTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return ism330dhcx.RouteTable{}, ErrNotInitialized
	}
	return m.dev.Route(pin)
}

// SetRoute replaces the routing of pin.
func (m *IMUManager) SetRoute(pin ism330dhcx.Pin, t ism330dhcx.RouteTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return ErrNotInitialized
	}
	return m.dev.SetRoute(pin, t)
}

// SetODR requests hz for sensor ("accel" or "gyro") and returns the rate
// actually programmed.
func (m *IMUManager) SetODR(sensor string, hz float64) (ism330dhcx.ODR, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return ism330dhcx.ODROff, ErrNotInitialized
	}
	var (
		odr ism330dhcx.ODR
		err error
	)
	switch sensor {
	case "accel":
		odr, err = m.dev.SetAccelODR(hz)
	case "gyro":
		odr, err = m.dev.SetGyroODR(hz)
	default:
		return ism330dhcx.ODROff, fmt.Errorf("unknown sensor %q, use accel or gyro", sensor)
	}
	if err != nil {
		return odr, err
	}
	m.syncODRMetrics()
	return odr, nil
}

// ApplyUCFFile loads a UCF program and returns the number of steps run.
func (m *IMUManager) ApplyUCFFile(path string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return 0, ErrNotInitialized
	}
	n, err := applyUCFFile(m.dev, path)
	if err != nil {
		return n, err
	}
	m.syncODRMetrics()
	return n, nil
}

func (m *IMUManager) syncODRMetrics() {
	reqXL, reqG := m.dev.RequestedODRs()
	if xl, err := m.dev.AccelODR(); err == nil {
		m.metrics.SetODR("accel", reqXL, xl)
	}
	if g, err := m.dev.GyroODR(); err == nil {
		m.metrics.SetODR("gyro", reqG, g)
	}
}
