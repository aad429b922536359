package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	// defaultRegion is assumed for numbers written without a country code.
	defaultRegion = "CN"
	chinaCode     = 86
)

var errNormalize = errors.New("phone number cannot be normalized")

// normalizeNumber reduces formatted input ("+86 180-8683-4111",
// "(180) 8683 4111") to the national significant number. Input that is
// already bare digits, or that carries no formatting characters, is
// returned unchanged so the database reports length and format errors.
func normalizeNumber(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !strings.ContainsAny(s, "+ -().") {
		return s, nil
	}

	num, err := phonenumbers.Parse(s, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", errNormalize, raw, err)
	}
	if cc := num.GetCountryCode(); cc != chinaCode {
		return "", fmt.Errorf("%w: %q has country code +%d, only +%d is supported", errNormalize, raw, cc, chinaCode)
	}
	return phonenumbers.GetNationalSignificantNumber(num), nil
}
