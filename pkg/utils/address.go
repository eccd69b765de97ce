package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// AddressMax is the largest representable numeric address (24 bits, the
// address width the downstream decoder distinguishes tracked objects by).
const AddressMax = 0xFFFFFF

// ParseHexAddress parses a hex address string, with or without a 0x prefix,
// into a 24-bit numeric address.
func ParseHexAddress(s string) (uint32, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	n, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	if n > AddressMax {
		return 0, fmt.Errorf("address %q exceeds 24 bits", s)
	}
	return uint32(n), nil
}

// FormatAddress renders a numeric address in the lowercase 0x form used as
// reverse-map keys in the identifier map.
func FormatAddress(addr uint32) string {
	return fmt.Sprintf("0x%x", addr)
}
