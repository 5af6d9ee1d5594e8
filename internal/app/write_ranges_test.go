package app

import (
	"testing"

	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
)

func TestParseWriteRanges(t *testing.T) {
	w, err := parseWriteRanges(" 0x10-0x19, 0x58 ,emb:0x46-0x47,page")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		bank ism330dhcx.Bank
		addr byte
		want bool
	}{
		{ism330dhcx.UserBank, 0x10, true},
		{ism330dhcx.UserBank, 0x19, true},
		{ism330dhcx.UserBank, 0x1A, false},
		{ism330dhcx.UserBank, 0x58, true},
		{ism330dhcx.UserBank, 0x46, false},
		{ism330dhcx.EmbeddedFuncBank, 0x46, true},
		{ism330dhcx.EmbeddedFuncBank, 0x10, false},
	}
	for _, tt := range tests {
		if got := w.register(tt.bank, tt.addr); got != tt.want {
			t.Errorf("register(%s, 0x%02X) = %v want %v", tt.bank, tt.addr, got, tt.want)
		}
	}
	if !w.page || w.routes {
		t.Errorf("page=%v routes=%v", w.page, w.routes)
	}
}

func TestParseWriteRangesEmptyAllowsNothing(t *testing.T) {
	w, err := parseWriteRanges("")
	if err != nil {
		t.Fatal(err)
	}
	if w.register(ism330dhcx.UserBank, 0x10) || w.page || w.routes {
		t.Errorf("empty ranges allow writes: %+v", w)
	}
}

func TestParseWriteRangesErrors(t *testing.T) {
	for _, in := range []string{"0x1G", "0x19-0x10", "0x100", "bogus:0x10", "0x10-"} {
		if _, err := parseWriteRanges(in); err == nil {
			t.Errorf("parseWriteRanges(%q) succeeded", in)
		}
	}
}
