package phonedata

import (
	pderrors "github.com/phonedata/phonedata/errors"
)

const (
	// minNumberLength and maxNumberLength bound the accepted input length.
	// A 7 character input is a bare prefix; 11 is a full mobile number.
	minNumberLength = 7
	maxNumberLength = 11
)

// parsePrefix validates number and returns the decimal value of its first
// seven characters.
//
// Length is checked before content, so "12a" is ErrInvalidLength and
// "12a4567890" is ErrInvalidFormat. Only the prefix digits are inspected;
// characters after the seventh are not validated.
func parsePrefix(number string) (int32, error) {
	if len(number) < minNumberLength || len(number) > maxNumberLength {
		return 0, pderrors.ErrInvalidLength
	}

	var prefix int32
	for i := 0; i < prefixDigits; i++ {
		c := number[i]
		if c < '0' || c > '9' {
			return 0, pderrors.ErrInvalidFormat
		}
		prefix = prefix*10 + int32(c-'0')
	}
	return prefix, nil
}

// PrefixOf returns the 7 digit lookup key for number, applying the same
// validation as Find.
func PrefixOf(number string) (int32, error) {
	return parsePrefix(number)
}
