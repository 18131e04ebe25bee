package render

import (
	"fmt"
	"strings"
)

// MICR E-13B delimiter symbols
const (
	micrTransit = "⑆" // routing number delimiter
	micrOnUs    = "⑈" // account and serial delimiter
)

// FormatSerial renders a serial number as the fixed-width digit field
// printed on the check face.
func FormatSerial(serial int) string {
	return fmt.Sprintf("%08d", serial)
}

// MICRLine is the raw machine-readable line for one check leaf, in field
// order: serial, account, routing, type digit.
func MICRLine(serial int, accountNumber, routingNumber string, typeDigit int) string {
	return fmt.Sprintf("%s %s %s %d", FormatSerial(serial), accountNumber, routingNumber, typeDigit)
}

// DisplayMICRLine reorders a raw MICR line into the right-to-left layout
// the MICR font expects: type, on-us account, transit routing, on-us
// serial.
func DisplayMICRLine(raw string) string {
	parts := strings.Fields(raw)
	if len(parts) != 4 {
		return raw
	}
	serial, account, routing, typeDigit := cleanDigits(parts[0]), cleanDigits(parts[1]), cleanDigits(parts[2]), cleanDigits(parts[3])
	return fmt.Sprintf("%s %s%s%s %s%s%s %s%s%s",
		typeDigit,
		micrOnUs, account, micrOnUs,
		micrTransit, routing, micrTransit,
		micrOnUs, serial, micrOnUs)
}

func cleanDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
