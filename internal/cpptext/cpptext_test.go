package cpptext

import (
	"strings"
	"testing"
)

func TestStripComments(t *testing.T) {
	src := `int x = 1; // trailing
/* block
spanning lines */ int y = 2;`
	out := StripComments(src)
	if want := "int x = 1; "; out[:len(want)] != want {
		t.Errorf("line comment not stripped: %q", out)
	}
	for _, gone := range []string{"trailing", "block", "spanning"} {
		if strings.Contains(out, gone) {
			t.Errorf("comment text %q survived stripping", gone)
		}
	}
}

func TestCountCalls(t *testing.T) {
	body := `{
    if (m_nStatus == STATUS_TRAIN_MOVING) {
        float speed = m_fSpeed * CTimer::GetTimeStep();
        UpdateTrainNodes();
        ProcessPassengers();
    }
    plugin::CallMethod<0x6F5900, CTrain*>(this);
}`
	total, stub, nonStub := CountCalls(body, "plugin::Call")
	if total != 4 {
		t.Errorf("expected 4 total calls, got %d", total)
	}
	if stub != 1 {
		t.Errorf("expected 1 stub call, got %d", stub)
	}
	if nonStub != 3 {
		t.Errorf("expected 3 non-stub calls, got %d", nonStub)
	}
}

func TestCountCallsSkipsKeywords(t *testing.T) {
	body := "{ if (x) { while (y) { return sizeof(z); } } DoWork(); }"
	total, _, _ := CountCalls(body, "plugin::Call")
	if total != 1 {
		t.Errorf("expected only DoWork counted, got %d", total)
	}
}

func TestCountControlFlow(t *testing.T) {
	body := "{ if (a) { for (;;) { switch (b) { } } } do { } while (c); }"
	if n := CountControlFlow(body); n != 5 {
		t.Errorf("expected 5 control-flow keywords, got %d", n)
	}
}

func TestHasFPToken(t *testing.T) {
	if !HasFPToken("float a = std::sqrt(b);") {
		t.Error("expected FP token for std::sqrt")
	}
	if HasFPToken("int a = b + c;") {
		t.Error("did not expect FP token for integer math")
	}
}

func TestParseAsmLineOp(t *testing.T) {
	if op := ParseAsmLineOp("006f8b20  FMUL dword ptr [EAX]"); op != "FMUL" {
		t.Errorf("expected FMUL, got %q", op)
	}
	if op := ParseAsmLineOp("not an asm line"); op != "" {
		t.Errorf("expected empty opcode, got %q", op)
	}
}

func TestHasFPAsm(t *testing.T) {
	listing := "006f8b20  MOV EAX, ECX\n006f8b22  FSQRT\n006f8b24  RET"
	if !HasFPAsm(listing) {
		t.Error("expected FP-sensitive listing")
	}
	if HasFPAsm("006f8b20  MOV EAX, ECX\n006f8b22  RET") {
		t.Error("did not expect FP-sensitive listing")
	}
}
