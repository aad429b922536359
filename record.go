package phonedata

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	pderrors "github.com/phonedata/phonedata/errors"
)

const (
	fieldSeparator   = '|'
	recordTerminator = 0
	recordFields     = 4
)

// PhoneRecord is the metadata resolved for a phone number.
type PhoneRecord struct {
	Province    string  `json:"province"`
	City        string  `json:"city"`
	ZipCode     string  `json:"zip_code"`
	AreaCode    string  `json:"area_code"`
	Carrier     string  `json:"carrier"`
	CarrierCode Carrier `json:"carrier_code"`
}

// Region is the carrier-independent part of a record: the four fields stored
// in the records region.
type Region struct {
	Province string
	City     string
	ZipCode  string
	AreaCode string
}

// encode joins the fields with '|' without the terminator. For any record
// decoded from a database this reproduces the original bytes.
func (r Region) encode() []byte {
	return []byte(r.Province + "|" + r.City + "|" + r.ZipCode + "|" + r.AreaCode)
}

// validate checks that r can be written as a record.
func (r Region) validate() error {
	for _, f := range [recordFields]string{r.Province, r.City, r.ZipCode, r.AreaCode} {
		if f == "" || strings.ContainsAny(f, "|\x00") || !utf8.ValidString(f) {
			return fmt.Errorf("%w: %q", pderrors.ErrInvalidRecord, f)
		}
	}
	return nil
}

// decodeRecord extracts the record starting at the absolute file offset
// absOffset from the records blob (which begins at file offset headerSize).
func decodeRecord(blob []byte, absOffset int32) (Region, error) {
	rel := int64(absOffset) - headerSize
	if rel < 0 || rel >= int64(len(blob)) {
		return Region{}, fmt.Errorf("%w: record offset %d outside records region [%d, %d)",
			pderrors.ErrCorruptDatabase, absOffset, headerSize, headerSize+len(blob))
	}

	rest := blob[rel:]
	end := bytes.IndexByte(rest, recordTerminator)
	if end < 0 {
		return Region{}, fmt.Errorf("%w: record at offset %d is not terminated", pderrors.ErrCorruptDatabase, absOffset)
	}
	raw := rest[:end]
	if !utf8.Valid(raw) {
		return Region{}, fmt.Errorf("%w: record at offset %d is not valid UTF-8", pderrors.ErrCorruptDatabase, absOffset)
	}

	fields := strings.Split(string(raw), string(fieldSeparator))
	if len(fields) != recordFields {
		return Region{}, fmt.Errorf("%w: record at offset %d has %d fields, want %d",
			pderrors.ErrCorruptDatabase, absOffset, len(fields), recordFields)
	}

	return Region{
		Province: fields[0],
		City:     fields[1],
		ZipCode:  fields[2],
		AreaCode: fields[3],
	}, nil
}

// resolveEntry decodes the record an index entry points to. The carrier code
// is checked first, so an unknown carrier fails regardless of the region bytes.
func resolveEntry(blob []byte, e indexEntry) (PhoneRecord, error) {
	desc, err := e.Carrier.Describe()
	if err != nil {
		return PhoneRecord{}, err
	}
	r, err := decodeRecord(blob, e.RecordOffset)
	if err != nil {
		return PhoneRecord{}, err
	}
	return makePhoneRecord(r, e.Carrier, desc), nil
}

// newPhoneRecord combines a decoded region with its carrier code.
func newPhoneRecord(r Region, c Carrier) (PhoneRecord, error) {
	desc, err := c.Describe()
	if err != nil {
		return PhoneRecord{}, err
	}
	return makePhoneRecord(r, c, desc), nil
}

func makePhoneRecord(r Region, c Carrier, desc string) PhoneRecord {
	return PhoneRecord{
		Province:    r.Province,
		City:        r.City,
		ZipCode:     r.ZipCode,
		AreaCode:    r.AreaCode,
		Carrier:     desc,
		CarrierCode: c,
	}
}
