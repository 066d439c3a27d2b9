package core

import "strings"

// NormalizeAddress lowercases an address, strips any 0x prefix, and
// zero-pads it to 8 hex digits. "0x5E3E90" and "5e3e90" both normalize
// to "005e3e90".
func NormalizeAddress(addr string) string {
	cleaned := strings.ToLower(strings.TrimSpace(addr))
	cleaned = strings.TrimPrefix(cleaned, "0x")
	if len(cleaned) < 8 {
		cleaned = strings.Repeat("0", 8-len(cleaned)) + cleaned
	}
	return cleaned
}

// FormatAddress ensures an address is lowercase with a 0x prefix.
func FormatAddress(addr string) string {
	cleaned := strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(cleaned, "0x") {
		cleaned = "0x" + cleaned
	}
	return cleaned
}
