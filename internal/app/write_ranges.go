// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
)

type addrRange struct {
	bank   ism330dhcx.Bank
	lo, hi byte
}

// writeRanges is the parsed form of REGISTER_DEBUG_ALLOWED_RANGES, e.g.
// "0x10-0x19,0x58,emb:0x46-0x47,page,routes". Entries without a bank prefix
// are user bank registers. "page" unlocks paged memory writes and "routes"
// unlocks interrupt routing changes. Empty allows nothing.
type writeRanges struct {
	regs   []addrRange
	page   bool
	routes bool
}

func parseWriteRanges(s string) (writeRanges, error) {
	var w writeRanges
	for _, item := range strings.Split(s, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		switch item {
		case "":
			continue
		case "page":
			w.page = true
			continue
		case "routes":
			w.routes = true
			continue
		}

		bank := ism330dhcx.UserBank
		if i := strings.IndexByte(item, ':'); i >= 0 {
			b, err := ism330dhcx.ParseBank(item[:i])
			if err != nil {
				return writeRanges{}, fmt.Errorf("allowed ranges: %w", err)
			}
			bank, item = b, item[i+1:]
		}

		lo, hi := item, item
		if i := strings.IndexByte(item, '-'); i >= 0 {
			lo, hi = item[:i], item[i+1:]
		}
		l, err := strconv.ParseUint(lo, 0, 8)
		if err != nil {
			return writeRanges{}, fmt.Errorf("allowed ranges: invalid address %q", lo)
		}
		h, err := strconv.ParseUint(hi, 0, 8)
		if err != nil {
			return writeRanges{}, fmt.Errorf("allowed ranges: invalid address %q", hi)
		}
		if h < l {
			return writeRanges{}, fmt.Errorf("allowed ranges: %s-%s is reversed", lo, hi)
		}
		w.regs = append(w.regs, addrRange{bank: bank, lo: byte(l), hi: byte(h)})
	}
	return w, nil
}

// register reports whether addr in bank may be written.
func (w writeRanges) register(bank ism330dhcx.Bank, addr byte) bool {
	for _, r := range w.regs {
		if r.bank == bank && addr >= r.lo && addr <= r.hi {
			return true
		}
	}
	return false
}
