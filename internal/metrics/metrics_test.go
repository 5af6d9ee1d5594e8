package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
)

type stubIO struct{ fail bool }

func (s *stubIO) ReadReg(reg byte, dst []byte) error {
	if s.fail {
		return errors.New("nack")
	}
	return nil
}

func (s *stubIO) WriteReg(reg byte, data ...byte) error {
	if s.fail {
		return errors.New("nack")
	}
	return nil
}

func TestInstrumentCountsTransactions(t *testing.T) {
	m := New()
	stub := &stubIO{}
	io := m.Instrument(stub)

	_ = io.ReadReg(0x3A, make([]byte, 2))
	_ = io.WriteReg(0x10, 0x40)
	_ = io.WriteReg(0x10, 0x40, 0x40)
	stub.fail = true
	_ = io.ReadReg(0x0F, make([]byte, 1))

	if got := testutil.ToFloat64(m.BusTransactions.WithLabelValues("read")); got != 2 {
		t.Errorf("read transactions = %v", got)
	}
	if got := testutil.ToFloat64(m.BusBytes.WithLabelValues("write")); got != 3 {
		t.Errorf("write bytes = %v", got)
	}
	if got := testutil.ToFloat64(m.BusBytes.WithLabelValues("read")); got != 2 {
		t.Errorf("read bytes = %v", got)
	}
	if got := testutil.ToFloat64(m.BusErrors.WithLabelValues("read")); got != 1 {
		t.Errorf("read errors = %v", got)
	}
}

func TestObserveFIFOAndODR(t *testing.T) {
	m := New()
	m.ObserveDrain(12)
	m.ObserveRecord(ism330dhcx.TagAccelNC)
	m.ObserveRecord(ism330dhcx.TagAccelNC)
	m.SetODR("accel", ism330dhcx.ODROff, ism330dhcx.ODR52Hz)

	if got := testutil.ToFloat64(m.FIFOLevel); got != 12 {
		t.Errorf("level = %v", got)
	}
	if got := testutil.ToFloat64(m.FIFORecords.WithLabelValues("accel")); got != 2 {
		t.Errorf("accel records = %v", got)
	}
	if got := testutil.ToFloat64(m.ODR.WithLabelValues("accel", "effective")); got != 52 {
		t.Errorf("effective odr = %v", got)
	}
	if got := testutil.ToFloat64(m.ODR.WithLabelValues("accel", "requested")); got != 0 {
		t.Errorf("requested odr = %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveDrain(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "dhcx_fifo_level 3") {
		t.Errorf("metrics output lacks fifo level:\n%s", body)
	}
}
