package imu

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
)

func TestFromRecordJSON(t *testing.T) {
	rec := ism330dhcx.ParseRecord(byte(ism330dhcx.TagAccelNC)<<3|0x02, [6]byte{0x64})
	dec := ism330dhcx.Decoder{Sens: ism330dhcx.Sensitivity{Accel: 0.061}}
	s := FromRecord(7, rec, dec.Decode(rec))

	if s.Sensor != "accel" || s.Raw[0] != 100 || s.Count != 1 {
		t.Fatalf("sample = %+v", s)
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"seq":7`, `"sensor":"accel"`, `"raw":[100,0,0]`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("%s missing %s", b, want)
		}
	}
	if strings.Contains(string(b), "config") {
		t.Errorf("%s carries an empty config", b)
	}
}
