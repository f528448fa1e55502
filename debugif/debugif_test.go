package debugif_test

import (
	"testing"

	"github.com/arret/arret/debugif"
)

func TestMemOpString(t *testing.T) {
	cases := []struct {
		op   debugif.MemOp
		want string
	}{
		{debugif.OpNone, "-"},
		{debugif.OpExec, "X"},
		{debugif.OpRead | debugif.OpWrite, "RW"},
		{debugif.OpExec | debugif.OpRead | debugif.OpWrite, "XRW"},
	}
	for _, c := range cases {
		if got := c.op.String(); got != c.want {
			t.Errorf("MemOp(%d).String() = %q, want %q", c.op, got, c.want)
		}
	}
}

func TestCPUTypeString(t *testing.T) {
	if debugif.CPULR35902.String() != "lr35902" {
		t.Errorf("unexpected CPUType string: %s", debugif.CPULR35902.String())
	}
}
