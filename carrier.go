package phonedata

import (
	"fmt"

	pderrors "github.com/phonedata/phonedata/errors"
)

// Carrier identifies the telecom operator a prefix is assigned to.
// It is stored as the last byte of every index entry.
type Carrier uint8

const (
	CarrierMobile          Carrier = 1 // China Mobile
	CarrierUnicom          Carrier = 2 // China Unicom
	CarrierTelecom         Carrier = 3 // China Telecom
	CarrierTelecomVirtual  Carrier = 4 // China Telecom virtual operator
	CarrierUnicomVirtual   Carrier = 5 // China Unicom virtual operator
	CarrierMobileVirtual   Carrier = 6 // China Mobile virtual operator
	CarrierBroadnet        Carrier = 7 // China Broadnet
	CarrierBroadnetVirtual Carrier = 8 // China Broadnet virtual operator
)

var carrierDescriptions = [...]string{
	CarrierMobile:          "China Mobile",
	CarrierUnicom:          "China Unicom",
	CarrierTelecom:         "China Telecom",
	CarrierTelecomVirtual:  "China Telecom (virtual operator)",
	CarrierUnicomVirtual:   "China Unicom (virtual operator)",
	CarrierMobileVirtual:   "China Mobile (virtual operator)",
	CarrierBroadnet:        "China Broadnet",
	CarrierBroadnetVirtual: "China Broadnet (virtual operator)",
}

// Valid reports whether c is one of the known carrier codes.
func (c Carrier) Valid() bool {
	return c >= CarrierMobile && c <= CarrierBroadnetVirtual
}

// Describe returns the human-readable carrier name.
// Unknown codes return ErrInvalidCarrierCode; there is no default carrier.
func (c Carrier) Describe() (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("%w: %d", pderrors.ErrInvalidCarrierCode, uint8(c))
	}
	return carrierDescriptions[c], nil
}

// String returns the carrier name, or "carrier(N)" for unknown codes.
func (c Carrier) String() string {
	if !c.Valid() {
		return fmt.Sprintf("carrier(%d)", uint8(c))
	}
	return carrierDescriptions[c]
}

// Carriers returns every valid carrier code in ascending order.
func Carriers() []Carrier {
	out := make([]Carrier, 0, CarrierBroadnetVirtual)
	for c := CarrierMobile; c <= CarrierBroadnetVirtual; c++ {
		out = append(out, c)
	}
	return out
}
