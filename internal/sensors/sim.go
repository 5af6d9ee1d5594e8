// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
)

const (
	simFIFODepth   = 512
	simTagShift    = 3
	simTickPerSec  = 40000 // timestamp LSB is 25 us
	simBankShift   = 6
	simPageShift   = 4
	simPageRWRead  = 0x20
	simPageRWWrite = 0x40
)

type simRecord struct {
	tag     byte
	payload [6]byte
}

// SimBus is an in-process ISM330DHCX register file used when IMU_BUS=sim and
// by tests. It switches banks through FUNC_CFG_ACCESS, backs PAGE_VALUE with
// the paged memory and fills the FIFO at the batch rates programmed in
// FIFO_CTRL3. Accel reads as a slowly rocking 1 g vector and gyro as its
// derivative.
type SimBus struct {
	mu sync.Mutex

	now   func() time.Time
	start time.Time
	last  time.Time

	banks [3][256]byte
	bank  int
	page  [ism330dhcx.PagedMemorySize]byte

	fifo    []simRecord
	cur     simRecord
	overrun bool

	// fractional samples carried between fills
	accXL, accG float64
}

// NewSimBus creates a simulated device. A nil now uses time.Now.
func NewSimBus(now func() time.Time) *SimBus {
	if now == nil {
		now = time.Now
	}
	t := now()
	s := &SimBus{now: now, start: t, last: t}
	s.banks[ism330dhcx.UserBank][ism330dhcx.RegWhoAmI] = ism330dhcx.WhoAmIValue
	return s
}

// Close implements io.Closer.
func (s *SimBus) Close() error { return nil }

// PagedMemory returns a copy of the paged memory contents.
func (s *SimBus) PagedMemory() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.page))
	copy(out, s.page[:])
	return out
}

// ReadReg implements ism330dhcx.RegIO.
func (s *SimBus) ReadReg(reg byte, dst []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fill()
	for i := range dst {
		dst[i] = s.readOne(reg + byte(i))
	}
	return nil
}

// WriteReg implements ism330dhcx.RegIO.
func (s *SimBus) WriteReg(reg byte, data ...byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range data {
		s.writeOne(reg+byte(i), v)
	}
	return nil
}

func (s *SimBus) pageIndex() int {
	emb := &s.banks[ism330dhcx.EmbeddedFuncBank]
	return int(emb[ism330dhcx.RegPageSel]>>simPageShift)*ism330dhcx.PageSize + int(emb[ism330dhcx.RegPageAddress])
}

func (s *SimBus) readOne(r byte) byte {
	user := &s.banks[ism330dhcx.UserBank]
	if r == ism330dhcx.RegFuncCfgAccess {
		return user[r]
	}
	switch s.bank {
	case int(ism330dhcx.UserBank):
		switch {
		case r == ism330dhcx.RegFIFOStatus1:
			return byte(len(s.fifo))
		case r == ism330dhcx.RegFIFOStatus2:
			v := byte(len(s.fifo)>>8) & 0x03
			if s.overrun {
				v |= 0x40 | 0x08
			}
			if len(s.fifo) >= simFIFODepth {
				v |= 0x20
			}
			wtm := int(user[ism330dhcx.RegFIFOCtrl2]&0x01)<<8 | int(user[ism330dhcx.RegFIFOCtrl1])
			if wtm > 0 && len(s.fifo) >= wtm {
				v |= 0x80
			}
			return v
		case r == ism330dhcx.RegFIFODataOutTag:
			if len(s.fifo) == 0 {
				s.cur = simRecord{}
				return 0
			}
			s.cur, s.fifo = s.fifo[0], s.fifo[1:]
			s.overrun = false
			return s.cur.tag
		case r >= ism330dhcx.RegFIFODataOutXL && r < ism330dhcx.RegFIFODataOutXL+6:
			return s.cur.payload[r-ism330dhcx.RegFIFODataOutXL]
		}
	case int(ism330dhcx.EmbeddedFuncBank):
		emb := &s.banks[ism330dhcx.EmbeddedFuncBank]
		if r == ism330dhcx.RegPageValue && emb[ism330dhcx.RegPageRW]&simPageRWRead != 0 {
			v := s.page[s.pageIndex()]
			emb[ism330dhcx.RegPageAddress]++
			return v
		}
	}
	return s.banks[s.bank][r]
}

func (s *SimBus) writeOne(r, v byte) {
	user := &s.banks[ism330dhcx.UserBank]
	if r == ism330dhcx.RegFuncCfgAccess {
		user[r] = v
		s.bank = int(v>>simBankShift) % len(s.banks)
		return
	}
	if s.bank == int(ism330dhcx.UserBank) && r == ism330dhcx.RegFIFOCtrl4 && v&0x07 == 0 {
		// bypass mode empties the FIFO
		s.fifo = s.fifo[:0]
		s.overrun = false
	}
	if s.bank == int(ism330dhcx.EmbeddedFuncBank) && r == ism330dhcx.RegPageValue &&
		s.banks[ism330dhcx.EmbeddedFuncBank][ism330dhcx.RegPageRW]&simPageRWWrite != 0 {
		s.page[s.pageIndex()] = v
		s.banks[ism330dhcx.EmbeddedFuncBank][ism330dhcx.RegPageAddress]++
	}
	s.banks[s.bank][r] = v
}

// fill queues the records batched since the previous call.
func (s *SimBus) fill() {
	now := s.now()
	dt := now.Sub(s.last).Seconds()
	s.last = now
	user := &s.banks[ism330dhcx.UserBank]

	mode := user[ism330dhcx.RegFIFOCtrl4] & 0x07
	if mode == 0 || dt <= 0 {
		return
	}
	bdr := user[ism330dhcx.RegFIFOCtrl3]
	xlHz := ism330dhcx.ODR(bdr & 0x0F).Hz()
	gHz := ism330dhcx.ODR(bdr >> 4).Hz()
	withTS := user[ism330dhcx.RegFIFOCtrl4]>>6 != 0

	s.accXL += dt * xlHz
	s.accG += dt * gHz
	nXL, nG := int(s.accXL), int(s.accG)
	s.accXL -= float64(nXL)
	s.accG -= float64(nG)

	// Spread the new records over [last, now) so timestamps increase.
	span := now.Sub(s.start).Seconds()
	for i := 0; i < nXL || i < nG; i++ {
		if i < nXL {
			t := span - dt + dt*float64(i)/float64(nXL)
			if withTS {
				s.push(ism330dhcx.TagTimestamp, timestampPayload(t))
			}
			s.push(ism330dhcx.TagAccelNC, vectorPayload(simAccel(t)))
		}
		if i < nG {
			t := span - dt + dt*float64(i)/float64(nG)
			s.push(ism330dhcx.TagGyroNC, vectorPayload(simGyro(t)))
		}
	}
}

func (s *SimBus) push(tag ism330dhcx.Tag, payload [6]byte) {
	if len(s.fifo) >= simFIFODepth {
		s.overrun = true
		if s.banks[ism330dhcx.UserBank][ism330dhcx.RegFIFOCtrl4]&0x07 == byte(ism330dhcx.FIFOStopWhenFull) {
			return
		}
		s.fifo = s.fifo[1:]
	}
	s.fifo = append(s.fifo, simRecord{tag: byte(tag) << simTagShift, payload: payload})
}

// simAccel is in LSB at ±2 g (0.061 mg/LSB).
func simAccel(t float64) [3]int16 {
	const oneG = 1000 / 0.061
	tilt := 0.2 * math.Sin(2*math.Pi*0.25*t)
	return [3]int16{
		int16(oneG * math.Sin(tilt)),
		0,
		int16(oneG * math.Cos(tilt)),
	}
}

// simGyro is in LSB at ±250 dps (8.75 mdps/LSB).
func simGyro(t float64) [3]int16 {
	rate := 0.2 * 2 * math.Pi * 0.25 * math.Cos(2*math.Pi*0.25*t) // rad/s
	mdps := rate * 180 / math.Pi * 1000
	return [3]int16{0, int16(mdps / 8.75), 0}
}

func vectorPayload(v [3]int16) [6]byte {
	var p [6]byte
	for i, c := range v {
		binary.LittleEndian.PutUint16(p[2*i:], uint16(c))
	}
	return p
}

func timestampPayload(t float64) [6]byte {
	var p [6]byte
	binary.LittleEndian.PutUint32(p[:4], uint32(t*simTickPerSec))
	return p
}
