// Package otodom crawls flat listings from otodom.pl search results.
package otodom

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"otodom-scraper/geo"
	"otodom-scraper/models"
)

// payloadSelector finds the Next.js data block every listing page embeds.
const payloadSelector = "script#__NEXT_DATA__"

// Reasons a listing is skipped. None of them should stop a crawl.
var (
	ErrNoPayload        = errors.New("no __NEXT_DATA__ payload")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrPayloadShape     = errors.New("unexpected payload shape")
	ErrUnknownFloor     = errors.New("unrecognised floor code")
	ErrInexactLocation  = errors.New("inexact location")
	ErrRejected         = errors.New("listing rejected")
)

// IsSkippable reports whether err only rules out the one listing it came from.
func IsSkippable(err error) bool {
	for _, target := range []error{
		ErrNoPayload, ErrMalformedPayload, ErrPayloadShape,
		ErrUnknownFloor, ErrInexactLocation, ErrRejected,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// amenityTags maps Extras_types tags to amenity fields.
var amenityTags = []struct {
	tag   string
	field models.Field
}{
	{"garage", models.FieldGarage},
	{"lift", models.FieldLift},
	{"basement", models.FieldBasement},
	{"balcony", models.FieldBalcony},
	{"garden", models.FieldGarden},
	{"terrace", models.FieldTerrace},
}

// Extractor turns listing pages into records.
type Extractor struct {
	classifier *geo.Classifier
	strict     bool
}

// NewExtractor creates an Extractor. With a nil classifier no district is
// assigned. Strict mode also requires market and room count.
func NewExtractor(classifier *geo.Classifier, strict bool) *Extractor {
	return &Extractor{classifier: classifier, strict: strict}
}

// Extract returns the requested fields of the listing at link, in order.
// Absent values are nil.
func (e *Extractor) Extract(link string, doc []byte, fields models.Schema) ([]any, error) {
	l, err := e.ExtractListing(link, doc)
	if err != nil {
		return nil, err
	}
	return fields.Project(l), nil
}

// ExtractListing parses the full record of one listing page.
func (e *Extractor) ExtractListing(link string, doc []byte) (*models.Listing, error) {
	raw, err := locatePayload(doc)
	if err != nil {
		return nil, err
	}

	var data nextData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	ad := data.Props.PageProps.Ad
	if ad == nil {
		return nil, fmt.Errorf("%w: props.pageProps.ad missing", ErrPayloadShape)
	}

	if loc := ad.Location; loc != nil && loc.MapDetails != nil &&
		loc.MapDetails.Radius != nil && *loc.MapDetails.Radius != 0 {
		return nil, fmt.Errorf("%w: radius %v", ErrInexactLocation, *loc.MapDetails.Radius)
	}

	l := &models.Listing{Link: link}
	if err := e.fillTarget(l, ad.Target); err != nil {
		return nil, err
	}
	l.Market = marketOf(ad.Characteristics)
	e.fillLocation(l, ad.Location)

	if err := e.validate(l); err != nil {
		return nil, err
	}
	return l, nil
}

func locatePayload(doc []byte) ([]byte, error) {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPayload, err)
	}
	script := d.Find(payloadSelector).First()
	if script.Length() == 0 {
		return nil, ErrNoPayload
	}
	body := strings.TrimSpace(script.Text())
	if body == "" {
		return nil, ErrNoPayload
	}
	return []byte(body), nil
}

func (e *Extractor) fillTarget(l *models.Listing, target map[string]json.RawMessage) error {
	if v, ok := number(target[keyArea]); ok {
		l.Area = &v
	}
	if v, ok := number(target[keyPrice]); ok {
		l.Price = &v
	}
	if v, ok := number(target[keyRent]); ok {
		l.Rent = &v
	}
	if v, ok := integer(target[keyBuildYear]); ok {
		l.BuildYear = &v
	}
	if v, ok := integer(target[keyFloorsNum]); ok {
		l.FloorsNum = &v
	}
	if raw, ok := first(target[keyRoomsNum]); ok {
		if v, ok := integer(raw); ok {
			l.RoomsNum = &v
		}
	}
	if raw, ok := first(target[keyConstructionStatus]); ok {
		if v, ok := text(raw); ok {
			l.ConstructionStatus = &v
		}
	}

	if raw, ok := first(target[keyFloorNo]); ok {
		code, _ := text(raw)
		floor, err := decodeFloor(code)
		if err != nil {
			return err
		}
		l.FloorNo = &floor
	}

	// Without an extras list the amenities stay Unknown.
	if extras, ok := stringSet(target[keyExtras]); ok {
		for _, a := range amenityTags {
			*l.Amenity(a.field) = models.TristateOf(extras[a.tag])
		}
	}
	return nil
}

func marketOf(chars []characteristic) *string {
	for _, c := range chars {
		if c.Key != "market" {
			continue
		}
		if v, ok := text(c.Value); ok {
			return &v
		}
		return nil
	}
	return nil
}

func (e *Extractor) fillLocation(l *models.Listing, loc *locationPayload) {
	if loc == nil || loc.Coordinates == nil {
		return
	}
	lat, lon := loc.Coordinates.Latitude, loc.Coordinates.Longitude
	if lat == nil || lon == nil || *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		return
	}
	l.Latitude, l.Longitude = lat, lon

	if name, ok := e.classifier.Classify(*lat, *lon); ok {
		l.District = &name
	}
}

// validate is the single gate deciding whether a record is emitted.
func (e *Extractor) validate(l *models.Listing) error {
	switch {
	case l.Area == nil || *l.Area <= 0:
		return fmt.Errorf("%w: area missing or not positive", ErrRejected)
	case l.Price == nil || *l.Price <= 0:
		return fmt.Errorf("%w: price missing or not positive", ErrRejected)
	}
	if !e.strict {
		return nil
	}
	switch {
	case l.Market == nil:
		return fmt.Errorf("%w: market missing", ErrRejected)
	case l.RoomsNum == nil:
		return fmt.Errorf("%w: room count missing", ErrRejected)
	}
	return nil
}
