package ism330dhcx

import (
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
)

type busWrite struct {
	bank int
	reg  byte
	val  byte
}

// fakeBus models the register file: three banks switched through
// FUNC_CFG_ACCESS, the paged memory behind PAGE_VALUE and a FIFO queue whose
// level is reported live in FIFO_STATUS1/2. Every PAGE_VALUE transfer
// advances PAGE_ADDRESS, wrapping at the page end.
type fakeBus struct {
	banks [3][256]byte
	bank  int
	page  [PagedMemorySize]byte

	fifo []fifoEntry
	cur  fifoEntry

	writes []busWrite

	failRead  func(bank int, reg byte) error
	failWrite func(bank int, reg, val byte) error
}

type fifoEntry struct {
	tag     byte
	payload [6]byte
}

func newFakeBus() *fakeBus {
	b := &fakeBus{}
	b.banks[UserBank][RegWhoAmI] = WhoAmIValue
	return b
}

func (b *fakeBus) pushFIFO(tag Tag, payload ...byte) {
	var e fifoEntry
	e.tag = byte(tag) << tagSensorShift
	copy(e.payload[:], payload)
	b.fifo = append(b.fifo, e)
}

func (b *fakeBus) pageIndex() int {
	emb := &b.banks[EmbeddedFuncBank]
	return int(emb[RegPageSel]>>pageSelShift)*PageSize + int(emb[RegPageAddress])
}

func (b *fakeBus) ReadReg(reg byte, dst []byte) error {
	for i := range dst {
		r := reg + byte(i)
		if b.failRead != nil {
			if err := b.failRead(b.bank, r); err != nil {
				return err
			}
		}
		dst[i] = b.readOne(r)
	}
	return nil
}

func (b *fakeBus) readOne(r byte) byte {
	if r == RegFuncCfgAccess {
		return b.banks[UserBank][RegFuncCfgAccess]
	}
	switch b.bank {
	case int(UserBank):
		switch {
		case r == RegFIFOStatus1:
			return byte(len(b.fifo))
		case r == RegFIFOStatus2:
			return b.banks[UserBank][r]&^fifoStatus2Hi | byte(len(b.fifo)>>8)&fifoStatus2Hi
		case r == RegFIFODataOutTag:
			if len(b.fifo) == 0 {
				return 0
			}
			b.cur, b.fifo = b.fifo[0], b.fifo[1:]
			return b.cur.tag
		case r >= RegFIFODataOutXL && r < RegFIFODataOutXL+6:
			return b.cur.payload[r-RegFIFODataOutXL]
		}
	case int(EmbeddedFuncBank):
		if r == RegPageValue && b.banks[EmbeddedFuncBank][RegPageRW]&pageRWRead != 0 {
			v := b.page[b.pageIndex()]
			b.banks[EmbeddedFuncBank][RegPageAddress]++
			return v
		}
	}
	return b.banks[b.bank][r]
}

func (b *fakeBus) WriteReg(reg byte, data ...byte) error {
	for i, v := range data {
		r := reg + byte(i)
		if b.failWrite != nil {
			if err := b.failWrite(b.bank, r, v); err != nil {
				return err
			}
		}
		b.writes = append(b.writes, busWrite{bank: b.bank, reg: r, val: v})
		if r == RegFuncCfgAccess {
			b.banks[UserBank][RegFuncCfgAccess] = v
			b.bank = int(v >> bankShift)
			continue
		}
		if b.bank == int(EmbeddedFuncBank) && r == RegPageValue &&
			b.banks[EmbeddedFuncBank][RegPageRW]&pageRWWrite != 0 {
			b.page[b.pageIndex()] = v
			b.banks[EmbeddedFuncBank][RegPageAddress]++
		}
		b.banks[b.bank][r] = v
	}
	return nil
}

// writesTo returns the values written to reg while bank was selected.
func (b *fakeBus) writesTo(bank Bank, reg byte) []byte {
	var out []byte
	for _, w := range b.writes {
		if w.bank == int(bank) && w.reg == reg {
			out = append(out, w.val)
		}
	}
	return out
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestDev(t *testing.T) (*Dev, *fakeBus) {
	t.Helper()
	bus := newFakeBus()
	d, err := New(bus, &Opts{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bus.writes = nil
	return d, bus
}
