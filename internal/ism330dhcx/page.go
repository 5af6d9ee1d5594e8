package ism330dhcx

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	PageSize  = 256
	PageCount = 16

	// PagedMemorySize is the extent of the extended memory behind PAGE_VALUE.
	PagedMemorySize = PageSize * PageCount
)

// PageCursor is a position in the paged memory.
type PageCursor struct {
	Page   uint8 // 0..15
	Offset uint8
}

// CursorAt splits a paged address into page and offset.
func CursorAt(addr uint16) (PageCursor, error) {
	if int(addr) >= PagedMemorySize {
		return PageCursor{}, errors.Wrapf(ErrInvalidRange, "address 0x%03X", addr)
	}
	return PageCursor{Page: uint8(addr / PageSize), Offset: uint8(addr % PageSize)}, nil
}

// Addr is the inverse of CursorAt.
func (c PageCursor) Addr() uint16 {
	return uint16(c.Page)*PageSize + uint16(c.Offset)
}

// Next advances by one byte. Offset 255 moves to offset 0 of the following
// page; the result is not checked against the page ceiling.
func (c PageCursor) Next() PageCursor {
	if c.Offset == PageSize-1 {
		return PageCursor{Page: c.Page + 1}
	}
	return PageCursor{Page: c.Page, Offset: c.Offset + 1}
}

func (c PageCursor) String() string {
	return fmt.Sprintf("%d:%02X", c.Page, c.Offset)
}

// checkSpan rejects transfers that would run past the last page. Nothing is
// sent to the device for a rejected request.
func checkSpan(addr uint16, n int) (PageCursor, error) {
	if n < 0 || int(addr)+n > PagedMemorySize {
		return PageCursor{}, errors.Wrapf(ErrInvalidRange, "0x%03X+%d exceeds %d bytes", addr, n, PagedMemorySize)
	}
	return CursorAt(addr)
}

// WritePageByte stores one byte in the paged memory.
func (d *Dev) WritePageByte(addr uint16, value byte) error {
	return d.WritePage(addr, []byte{value})
}

// WritePage stores data starting at addr. PAGE_SEL and PAGE_ADDRESS are
// written once for the first page and once more for every page boundary
// crossed; in between the device advances PAGE_ADDRESS after each byte.
func (d *Dev) WritePage(addr uint16, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	cur, err := checkSpan(addr, len(data))
	if err != nil {
		return err
	}
	d.log.WithFields(log.Fields{"addr": fmt.Sprintf("0x%03X", addr), "len": len(data)}).Debug("ism330dhcx: page write")

	return d.WithBank(EmbeddedFuncBank, func(s *BankScope) error {
		if err := s.UpdateBits(RegPageRW, pageRWMask, pageRWWrite); err != nil {
			return err
		}
		if err := seekPage(s, cur); err != nil {
			return err
		}
		for i, b := range data {
			if err := s.WriteU8(RegPageValue, b); err != nil {
				return err
			}
			next := cur.Next()
			if next.Page != cur.Page && i < len(data)-1 {
				if err := seekPage(s, next); err != nil {
					return err
				}
			}
			cur = next
		}
		return s.UpdateBits(RegPageRW, pageRWMask, 0)
	})
}

// ReadPageByte loads one byte from the paged memory.
func (d *Dev) ReadPageByte(addr uint16) (byte, error) {
	buf, err := d.ReadPage(addr, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadPage loads n bytes starting at addr, following page boundaries the
// same way WritePage does.
func (d *Dev) ReadPage(addr uint16, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	cur, err := checkSpan(addr, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	err = d.WithBank(EmbeddedFuncBank, func(s *BankScope) error {
		if err := s.UpdateBits(RegPageRW, pageRWMask, pageRWRead); err != nil {
			return err
		}
		if err := seekPage(s, cur); err != nil {
			return err
		}
		for i := range out {
			v, err := s.ReadU8(RegPageValue)
			if err != nil {
				return err
			}
			out[i] = v
			next := cur.Next()
			if next.Page != cur.Page && i < n-1 {
				if err := seekPage(s, next); err != nil {
					return err
				}
			}
			cur = next
		}
		return s.UpdateBits(RegPageRW, pageRWMask, 0)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// seekPage points PAGE_SEL and PAGE_ADDRESS at c.
func seekPage(s *BankScope, c PageCursor) error {
	if err := s.WriteU8(RegPageSel, c.Page<<pageSelShift|pageSelFixed); err != nil {
		return err
	}
	return s.WriteU8(RegPageAddress, c.Offset)
}
