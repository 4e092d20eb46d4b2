package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/openeduhub/metaextract/internal/fields"
	"github.com/openeduhub/metaextract/internal/geocode"
	"github.com/openeduhub/metaextract/internal/normalize"
)

// leafKind classifies a sub-field leaf by its path's last segment.
type leafKind int

const (
	leafOther leafKind = iota
	leafStreet
	leafPostal
	leafLocality
	leafRegion
	leafCountry
	leafLatitude
	leafLongitude
)

func classifyLeaf(path string) leafKind {
	leaf := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		leaf = path[i+1:]
	}
	leaf = strings.ToLower(leaf)

	switch {
	case strings.Contains(leaf, "latitude"):
		return leafLatitude
	case strings.Contains(leaf, "longitude"):
		return leafLongitude
	case strings.Contains(leaf, "street"):
		return leafStreet
	case strings.Contains(leaf, "postal"), strings.Contains(leaf, "postcode"), strings.Contains(leaf, "zip"):
		return leafPostal
	case strings.Contains(leaf, "locality"), strings.Contains(leaf, "city"):
		return leafLocality
	case strings.Contains(leaf, "region"), leaf == "state":
		return leafRegion
	case strings.Contains(leaf, "country"):
		return leafCountry
	default:
		return leafOther
	}
}

// isAddressPath reports whether editing this sub-field should trigger a new
// geocoding pass.
func isAddressPath(path string) bool {
	switch classifyLeaf(path) {
	case leafStreet, leafPostal, leafLocality, leafRegion, leafCountry:
		return true
	}
	return false
}

// addressGroup is one geocodable object: the address leaves of a single
// parent field at a single array index.
type addressGroup struct {
	parentID string
	index    int

	components map[leafKind]string
	paths      map[leafKind]string
	latPath    string
	lonPath    string
	hasCoords  bool
}

// enrichLocations geocodes every address-bearing parent whose coordinates
// are still missing. Lookup failures are logged and skipped; the address text
// keeps its value either way.
func (p *Pipeline) enrichLocations(ctx context.Context, col *fields.Collection) {
	if p.geo == nil {
		return
	}

	groups := collectAddressGroups(col)
	for _, g := range groups {
		if g.hasCoords || len(g.components) == 0 {
			continue
		}
		if g.latPath == "" && g.lonPath == "" {
			// No coordinate leaves declared, nothing to fill.
			continue
		}

		query := geocode.BuildQuery(
			g.components[leafStreet],
			g.components[leafPostal],
			g.components[leafLocality],
			g.components[leafRegion],
			g.components[leafCountry],
		)
		place, err := p.geo.Lookup(ctx, query)
		if err != nil {
			p.logger.Warn("Geocoding failed", "field", g.parentID, "query", query, "error", err)
			continue
		}
		if place == nil {
			p.logger.Info("Geocoding found no match", "field", g.parentID, "query", query)
			continue
		}

		if g.latPath != "" {
			col.FillSub(g.parentID, g.latPath, g.index, normalize.RoundCoordinate(place.Latitude))
		}
		if g.lonPath != "" {
			col.FillSub(g.parentID, g.lonPath, g.index, normalize.RoundCoordinate(place.Longitude))
		}

		// The geocoder result may carry address parts the text never named;
		// fill those leaves only when they were empty.
		if path, ok := g.paths[leafRegion]; ok && g.components[leafRegion] == "" && place.State != "" {
			col.FillSub(g.parentID, path, g.index, place.State)
		}
		if path, ok := g.paths[leafCountry]; ok && g.components[leafCountry] == "" && place.Country != "" {
			col.FillSub(g.parentID, path, g.index, place.Country)
		}
		p.logger.Info("Location geocoded",
			"field", g.parentID, "query", query,
			"latitude", place.Latitude, "longitude", place.Longitude)
	}
}

// collectAddressGroups reads the sub-field tree under the collection's read
// lock and returns a mutation plan, so FillSub calls happen lock-free
// afterwards.
func collectAddressGroups(col *fields.Collection) []*addressGroup {
	byKey := map[string]*addressGroup{}
	var order []*addressGroup

	col.Each(func(s *fields.State) {
		for _, sub := range s.Subs {
			kind := classifyLeaf(sub.Path)
			if kind == leafOther {
				continue
			}

			key := s.Field.ID + "\x00" + strconv.Itoa(sub.Index)
			g, ok := byKey[key]
			if !ok {
				g = &addressGroup{
					parentID:   s.Field.ID,
					index:      sub.Index,
					components: map[leafKind]string{},
					paths:      map[leafKind]string{},
				}
				byKey[key] = g
				order = append(order, g)
			}

			switch kind {
			case leafLatitude:
				g.latPath = sub.Path
				if fields.Present(sub.Value) {
					g.hasCoords = true
				}
			case leafLongitude:
				g.lonPath = sub.Path
				if fields.Present(sub.Value) {
					g.hasCoords = true
				}
			default:
				g.paths[kind] = sub.Path
				if text, ok := sub.Value.(string); ok && text != "" {
					g.components[kind] = text
				}
			}
		}
	})

	return order
}
