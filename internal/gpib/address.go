package gpib

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxAddress is the highest primary GPIB address.
const MaxAddress = 30

// ParseAddress accepts a bare primary address ("18") or a VISA resource
// string ("GPIB0::18::INSTR") and returns the primary address.
func ParseAddress(s string) (int, error) {
	s = strings.TrimSpace(s)
	field := s
	if strings.HasPrefix(strings.ToUpper(s), "GPIB") {
		parts := strings.Split(s, "::")
		if len(parts) < 2 || len(parts) > 3 {
			return 0, fmt.Errorf("invalid GPIB resource %q", s)
		}
		if len(parts) == 3 && !strings.EqualFold(parts[2], "INSTR") {
			return 0, fmt.Errorf("invalid GPIB resource %q: unsupported resource class %q", s, parts[2])
		}
		field = parts[1]
	}
	addr, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("invalid GPIB address %q: %w", s, err)
	}
	if err := validAddress(addr); err != nil {
		return 0, err
	}
	return addr, nil
}

func validAddress(addr int) error {
	if addr < 0 || addr > MaxAddress {
		return fmt.Errorf("GPIB address %d out of range 0-%d", addr, MaxAddress)
	}
	return nil
}
