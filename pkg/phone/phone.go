// Package phone validates and normalizes North American numbers used as SMS destinations.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidFormat = errors.New("invalid phone number format")

const countryCode = "1"

// Digits strips every non-digit character from raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// National returns the 10-digit national number for raw, accepting either
// 10 digits or 11 digits with a leading country code.
func National(raw string) (string, error) {
	d := Digits(raw)
	switch {
	case len(d) == 10:
		return d, nil
	case len(d) == 11 && strings.HasPrefix(d, countryCode):
		return d[1:], nil
	default:
		return "", ErrInvalidFormat
	}
}

// Valid reports whether raw is an acceptable destination.
func Valid(raw string) bool {
	_, err := National(raw)
	return err == nil
}

// E164 normalizes raw into the canonical international form, e.g. +15551234567.
func E164(raw string) (string, error) {
	n, err := National(raw)
	if err != nil {
		return "", err
	}
	return "+" + countryCode + n, nil
}

// LookupForms returns the key forms a stored number may have been indexed under.
// A 10-digit number yields the bare and country-code forms; an 11-digit number with a
// leading 1 yields itself and its bare form. Anything else yields its digits only.
func LookupForms(raw string) []string {
	d := Digits(raw)
	switch {
	case d == "":
		return nil
	case len(d) == 10:
		return []string{d, countryCode + d}
	case len(d) == 11 && strings.HasPrefix(d, countryCode):
		return []string{d, d[1:]}
	default:
		return []string{d}
	}
}

// Mask hides every digit except the last four.
func Mask(raw string) string {
	d := Digits(raw)
	if len(d) <= 4 {
		return strings.Repeat("*", len(d))
	}
	return strings.Repeat("*", len(d)-4) + d[len(d)-4:]
}

var numberLike = regexp.MustCompile(`\+?\(?\d[\d\s().-]{8,16}\d`)

// Redact masks every phone number found in free text, such as a gateway error body.
func Redact(text string) string {
	return numberLike.ReplaceAllStringFunc(text, func(m string) string {
		if d := Digits(m); len(d) == 10 || len(d) == 11 {
			return Mask(m)
		}
		return m
	})
}
