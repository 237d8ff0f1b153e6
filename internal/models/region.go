package models

import (
	"strings"

	"github.com/pkg/errors"
)

// Region is a fixed geographic bucket an event location or subscription
// belongs to. Values are persisted as integers, so the order here is stable.
type Region int

const (
	RegionNorthland Region = iota
	RegionAuckland
	RegionWaikato
	RegionBayOfPlenty
	RegionGisborne
	RegionHawkesBay
	RegionTaranaki
	RegionManawatuWhanganui
	RegionWellington
	RegionTasman
	RegionNelson
	RegionMarlborough
	RegionWestCoast
	RegionCanterbury
	RegionOtago
	RegionSouthland
	RegionAPAC
	RegionOnline
)

// AllRegions lists every region in persisted order.
var AllRegions = []Region{
	RegionNorthland, RegionAuckland, RegionWaikato, RegionBayOfPlenty,
	RegionGisborne, RegionHawkesBay, RegionTaranaki, RegionManawatuWhanganui,
	RegionWellington, RegionTasman, RegionNelson, RegionMarlborough,
	RegionWestCoast, RegionCanterbury, RegionOtago, RegionSouthland,
	RegionAPAC, RegionOnline,
}

var regionSlugs = map[Region]string{
	RegionNorthland:         "northland",
	RegionAuckland:          "auckland",
	RegionWaikato:           "waikato",
	RegionBayOfPlenty:       "bay_of_plenty",
	RegionGisborne:          "gisborne",
	RegionHawkesBay:         "hawkes_bay",
	RegionTaranaki:          "taranaki",
	RegionManawatuWhanganui: "manawatu_whanganui",
	RegionWellington:        "wellington",
	RegionTasman:            "tasman",
	RegionNelson:            "nelson",
	RegionMarlborough:       "marlborough",
	RegionWestCoast:         "west_coast",
	RegionCanterbury:        "canterbury",
	RegionOtago:             "otago",
	RegionSouthland:         "southland",
	RegionAPAC:              "apac",
	RegionOnline:            "online",
}

var regionsBySlug = func() map[string]Region {
	m := make(map[string]Region, len(regionSlugs))
	for r, s := range regionSlugs {
		m[s] = r
	}
	return m
}()

// String returns the stable slug for a region.
func (r Region) String() string {
	return regionSlugs[r]
}

// Valid reports whether r is one of the recognized regions.
func (r Region) Valid() bool {
	_, ok := regionSlugs[r]
	return ok
}

// DisplayLabel returns the human-facing label. The "Asia Pacific" label for
// the aggregate bucket is a presentation rule only.
func (r Region) DisplayLabel() string {
	if r == RegionAPAC {
		return "Asia Pacific"
	}
	return titleize(r.String())
}

// ParseRegion resolves a slug to a Region.
func ParseRegion(s string) (Region, error) {
	r, ok := regionsBySlug[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, errors.Errorf("unknown region %q", s)
	}
	return r, nil
}

func titleize(slug string) string {
	parts := strings.Split(slug, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// CitiesByRegion suggests known cities per region for the event form. City
// remains free text; this list is never used to validate input.
var CitiesByRegion = map[Region][]string{
	RegionNorthland:         {"Whangarei", "Kerikeri", "Kaitaia", "Other"},
	RegionAuckland:          {"Auckland CBD", "North Shore", "West Auckland", "South Auckland", "East Auckland", "Other"},
	RegionWaikato:           {"Hamilton", "Cambridge", "Te Awamutu", "Other"},
	RegionBayOfPlenty:       {"Tauranga", "Rotorua", "Whakatane", "Other"},
	RegionGisborne:          {"Gisborne", "Other"},
	RegionHawkesBay:         {"Napier", "Hastings", "Other"},
	RegionTaranaki:          {"New Plymouth", "Hawera", "Other"},
	RegionManawatuWhanganui: {"Palmerston North", "Whanganui", "Other"},
	RegionWellington:        {"Wellington CBD", "Lower Hutt", "Upper Hutt", "Porirua", "Kapiti Coast", "Other"},
	RegionTasman:            {"Richmond", "Motueka", "Other"},
	RegionNelson:            {"Nelson", "Other"},
	RegionMarlborough:       {"Blenheim", "Other"},
	RegionWestCoast:         {"Greymouth", "Hokitika", "Other"},
	RegionCanterbury:        {"Christchurch", "Timaru", "Ashburton", "Other"},
	RegionOtago:             {"Dunedin", "Queenstown", "Wanaka", "Other"},
	RegionSouthland:         {"Invercargill", "Gore", "Other"},
	RegionAPAC:              {"Sydney", "Melbourne", "Brisbane", "Singapore", "Kuala Lumpur", "Jakarta", "Bangkok", "Ho Chi Minh City", "Hanoi", "Manila", "Pacific Islands", "China", "Japan", "Other Australia", "Other APAC"},
	RegionOnline:            {"Online"},
}
