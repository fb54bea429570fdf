package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		err  *RailError
		want []string
	}{
		{ConfigOption("rail", "microsteps"), []string{"CONFIG_OPTION", "[rail]", "microsteps"}},
		{ConfigType("rail", "screw_lead", "eight", "number"), []string{"CONFIG_TYPE", `"eight"`, "number"}},
		{ConfigParse("rail.cfg", 7, "malformed line"), []string{"CONFIG_PARSE", "rail.cfg line 7"}},
		{BoardProtocol("XX 1 2"), []string{"BOARD_PROTOCOL", `"XX 1 2"`}},
	}
	for _, tt := range tests {
		msg := tt.err.Error()
		for _, want := range tt.want {
			if !strings.Contains(msg, want) {
				t.Errorf("%q missing %q", msg, want)
			}
		}
	}
}

func TestWrapUnwrap(t *testing.T) {
	base := stderrors.New("no such device")
	err := SerialOpen("/dev/ttyUSB0", base)

	if !stderrors.Is(err, base) {
		t.Error("wrapped error should match the base via errors.Is")
	}

	var re *RailError
	if !stderrors.As(error(err), &re) || re.Code != ErrSerialOpen {
		t.Errorf("errors.As failed or wrong code: %v", re)
	}
	if !strings.Contains(err.Error(), "SERIAL_OPEN") || !strings.Contains(err.Error(), "/dev/ttyUSB0") {
		t.Errorf("message = %q", err.Error())
	}
}
