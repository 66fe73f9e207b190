package model

import (
	"errors"
	"fmt"
)

// ErrSpecificationMismatch is returned when a kiln carries specifications for
// a kiln type other than its own.
var ErrSpecificationMismatch = errors.New("kiln specifications do not match kiln type")

// ElectricSpec holds electric kiln details.
type ElectricSpec struct {
	Voltage      int    `json:"voltage"`
	Amperage     int    `json:"amperage"`
	Phase        int    `json:"phase"`
	ElementCount int    `json:"elementCount"`
	Controller   string `json:"controller,omitempty"`
}

// GasSpec holds gas kiln details.
type GasSpec struct {
	Fuel        string `json:"fuel"` // natural or propane
	BurnerCount int    `json:"burnerCount"`
	BTUPerHour  int    `json:"btuPerHour"`
}

// WoodSpec holds wood kiln details.
type WoodSpec struct {
	FireboxCubicFeet float64 `json:"fireboxCubicFeet"`
	ChamberCount     int     `json:"chamberCount"`
	Style            string  `json:"style,omitempty"` // anagama, noborigama, ...
}

// RakuSpec holds raku kiln details.
type RakuSpec struct {
	Fuel              string `json:"fuel"`
	ReductionCanCount int    `json:"reductionCanCount"`
	TopLoading        bool   `json:"topLoading"`
}

// Specifications is a union keyed by KilnType: at most the variant matching
// the kiln's type is set.
type Specifications struct {
	Electric *ElectricSpec `json:"electric,omitempty"`
	Gas      *GasSpec      `json:"gas,omitempty"`
	Wood     *WoodSpec     `json:"wood,omitempty"`
	Raku     *RakuSpec     `json:"raku,omitempty"`
}

// Kind returns the kiln type of the variant that is set, or "" when none is.
func (s Specifications) Kind() KilnType {
	switch {
	case s.Electric != nil:
		return KilnTypeElectric
	case s.Gas != nil:
		return KilnTypeGas
	case s.Wood != nil:
		return KilnTypeWood
	case s.Raku != nil:
		return KilnTypeRaku
	}
	return ""
}

func (s Specifications) count() int {
	n := 0
	if s.Electric != nil {
		n++
	}
	if s.Gas != nil {
		n++
	}
	if s.Wood != nil {
		n++
	}
	if s.Raku != nil {
		n++
	}
	return n
}

// Validate checks that s is empty or holds exactly the variant for t.
func (s Specifications) Validate(t KilnType) error {
	switch s.count() {
	case 0:
		return nil
	case 1:
		if s.Kind() != t {
			return fmt.Errorf("%w: have %s, kiln is %s", ErrSpecificationMismatch, s.Kind(), t)
		}
		return nil
	default:
		return fmt.Errorf("%w: more than one variant set", ErrSpecificationMismatch)
	}
}
