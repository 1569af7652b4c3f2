package otodom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// nextData mirrors the part of the __NEXT_DATA__ document a listing page
// embeds that the extractor reads.
type nextData struct {
	Props struct {
		PageProps struct {
			Ad *adPayload `json:"ad"`
		} `json:"pageProps"`
	} `json:"props"`
}

type adPayload struct {
	// Target values arrive as numbers, numeric strings or one-element
	// lists depending on the field, so they are decoded lazily.
	Target          map[string]json.RawMessage `json:"target"`
	Characteristics []characteristic           `json:"characteristics"`
	Location        *locationPayload           `json:"location"`
}

type characteristic struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type locationPayload struct {
	Coordinates *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"coordinates"`
	MapDetails *struct {
		Radius *float64 `json:"radius"`
	} `json:"mapDetails"`
}

// Target keys.
const (
	keyArea               = "Area"
	keyPrice              = "Price"
	keyRent               = "Rent"
	keyBuildYear          = "Build_year"
	keyFloorsNum          = "Building_floors_num"
	keyFloorNo            = "Floor_no"
	keyRoomsNum           = "Rooms_num"
	keyConstructionStatus = "Construction_status"
	keyExtras             = "Extras_types"
)

// Floor codes.
const (
	groundFloorCode  = "ground_floor"
	higherFloorCode  = "floor_higher_10"
	higherFloorValue = 11
)

var floorCodePattern = regexp.MustCompile(`^floor_(\d+)$`)

// groupedThousands matches "500,000": a comma that may be a thousands
// separator rather than a decimal comma.
var groupedThousands = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+$`)

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// number decodes a JSON number or numeric string. Spaces are ignored and a
// comma is read as the Polish decimal comma, except where it could group
// thousands; such values are treated as absent.
func number(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\t':
			return -1
		}
		return r
	}, s)
	if groupedThousands.MatchString(s) {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// integer accepts only integral numbers.
func integer(raw json.RawMessage) (int, bool) {
	f, ok := number(raw)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// text decodes a string, or the literal text of a number.
func text(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// first returns the first element of a JSON list, or raw itself when it is
// not a list.
func first(raw json.RawMessage) (json.RawMessage, bool) {
	if isNull(raw) {
		return nil, false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return raw, true
	}
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// stringSet decodes a list of strings. A missing list reports false.
func stringSet(raw json.RawMessage) (map[string]bool, bool) {
	if isNull(raw) {
		return nil, false
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return set, true
}

// decodeFloor maps a Floor_no code to a floor number.
func decodeFloor(code string) (int, error) {
	switch code {
	case groundFloorCode:
		return 0, nil
	case higherFloorCode:
		return higherFloorValue, nil
	}
	if m := floorCodePattern.FindStringSubmatch(code); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFloor, code)
}
