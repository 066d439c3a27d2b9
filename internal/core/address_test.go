package core

import "testing"

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0x5E3E90", "005e3e90"},
		{"5e3e90", "005e3e90"},
		{"0x005E3E90", "005e3e90"},
		{"  0x6F5900 ", "006f5900"},
		{"0x12345678", "12345678"},
	}
	for _, c := range cases {
		if got := NormalizeAddress(c.in); got != c.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatAddress(t *testing.T) {
	if got := FormatAddress("5E3E90"); got != "0x5e3e90" {
		t.Errorf("expected 0x5e3e90, got %s", got)
	}
	if got := FormatAddress("0x5E3E90"); got != "0x5e3e90" {
		t.Errorf("expected 0x5e3e90, got %s", got)
	}
}

func TestHookEntrySymbol(t *testing.T) {
	h := HookEntry{ClassPath: "game/entities/CTrain", FnName: "ProcessControl"}
	if h.ClassName() != "CTrain" {
		t.Errorf("expected CTrain, got %s", h.ClassName())
	}
	if h.Symbol() != "CTrain::ProcessControl" {
		t.Errorf("expected CTrain::ProcessControl, got %s", h.Symbol())
	}
}
