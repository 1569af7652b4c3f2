package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Tristate is a boolean that may also be unknown.
type Tristate int8

const (
	Unknown Tristate = iota
	No
	Yes
)

// TristateOf converts a known boolean.
func TristateOf(b bool) Tristate {
	if b {
		return Yes
	}
	return No
}

func (t Tristate) String() string {
	switch t {
	case Yes:
		return "True"
	case No:
		return "False"
	default:
		return ""
	}
}

// Listing is one flat advertisement extracted from its listing page.
// Nil pointers and Unknown amenities mean the source did not carry the value.
type Listing struct {
	Link string

	Area  *float64
	Price *float64
	Rent  *float64

	RoomsNum  *int
	FloorsNum *int
	FloorNo   *int
	BuildYear *int

	Market             *string
	District           *string
	ConstructionStatus *string

	Garage   Tristate
	Lift     Tristate
	Basement Tristate
	Balcony  Tristate
	Garden   Tristate
	Terrace  Tristate

	Latitude  *float64
	Longitude *float64
}

// Value returns the typed value of a field and whether it is present.
func (l *Listing) Value(f Field) (any, bool) {
	switch f {
	case FieldLink:
		return l.Link, l.Link != ""
	case FieldArea:
		return floatValue(l.Area)
	case FieldPrice:
		return floatValue(l.Price)
	case FieldRent:
		return floatValue(l.Rent)
	case FieldRoomsNum:
		return intValue(l.RoomsNum)
	case FieldFloorsNum:
		return intValue(l.FloorsNum)
	case FieldFloorNo:
		return intValue(l.FloorNo)
	case FieldBuildYear:
		return intValue(l.BuildYear)
	case FieldMarket:
		return stringValue(l.Market)
	case FieldDistrict:
		return stringValue(l.District)
	case FieldConstructionStatus:
		return stringValue(l.ConstructionStatus)
	case FieldGarage:
		return tristateValue(l.Garage)
	case FieldLift:
		return tristateValue(l.Lift)
	case FieldBasement:
		return tristateValue(l.Basement)
	case FieldBalcony:
		return tristateValue(l.Balcony)
	case FieldGarden:
		return tristateValue(l.Garden)
	case FieldTerrace:
		return tristateValue(l.Terrace)
	case FieldLatitude:
		return floatValue(l.Latitude)
	case FieldLongitude:
		return floatValue(l.Longitude)
	}
	return nil, false
}

// Amenity returns a pointer to the amenity slot for one of the six amenity
// fields, or nil for any other field.
func (l *Listing) Amenity(f Field) *Tristate {
	switch f {
	case FieldGarage:
		return &l.Garage
	case FieldLift:
		return &l.Lift
	case FieldBasement:
		return &l.Basement
	case FieldBalcony:
		return &l.Balcony
	case FieldGarden:
		return &l.Garden
	case FieldTerrace:
		return &l.Terrace
	}
	return nil
}

// PricePerSqM returns price divided by area when both are known.
func (l *Listing) PricePerSqM() (float64, bool) {
	if l.Price == nil || l.Area == nil || *l.Area <= 0 {
		return 0, false
	}
	return *l.Price / *l.Area, true
}

func floatValue(p *float64) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func intValue(p *int) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func stringValue(p *string) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func tristateValue(t Tristate) (any, bool) {
	if t == Unknown {
		return nil, false
	}
	return t == Yes, true
}

// SetCell parses a dataset cell written by FormatValue back into l. An
// empty cell leaves the field unset.
func (l *Listing) SetCell(f Field, cell string) error {
	spec, ok := f.Spec()
	if !ok {
		return fmt.Errorf("unknown field %q", f)
	}
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}

	switch spec.Kind {
	case KindReal:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		switch f {
		case FieldArea:
			l.Area = &v
		case FieldPrice:
			l.Price = &v
		case FieldRent:
			l.Rent = &v
		case FieldLatitude:
			l.Latitude = &v
		case FieldLongitude:
			l.Longitude = &v
		}
	case KindInteger:
		v, err := strconv.Atoi(cell)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		switch f {
		case FieldRoomsNum:
			l.RoomsNum = &v
		case FieldFloorsNum:
			l.FloorsNum = &v
		case FieldFloorNo:
			l.FloorNo = &v
		case FieldBuildYear:
			l.BuildYear = &v
		}
	case KindTristate:
		b, err := strconv.ParseBool(cell)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		*l.Amenity(f) = TristateOf(b)
	case KindText:
		switch f {
		case FieldLink:
			l.Link = cell
		case FieldMarket:
			l.Market = &cell
		case FieldDistrict:
			l.District = &cell
		case FieldConstructionStatus:
			l.ConstructionStatus = &cell
		}
	}
	return nil
}
