package enrich

import (
	"context"
	"errors"

	"github.com/yourorg/vacants-enricher/geocode"
	"github.com/yourorg/vacants-enricher/internal/canon"
	"github.com/yourorg/vacants-enricher/parcels"
	"github.com/yourorg/vacants-enricher/taxes"
)

// Source wraps one upstream behind a uniform lookup. Lookup never returns a
// Go error: every failure is reported as an Outcome.
type Source interface {
	Name() string
	// Triggers are the fields whose joint absence makes the source worth
	// calling.
	Triggers() []string
	// Ready reports whether the record carries the source's query key.
	Ready(rec Record) (bool, string)
	Lookup(ctx context.Context, rec Record) Outcome
}

type Geocoder interface {
	Geocode(ctx context.Context, query string) (geocode.Location, error)
}

type ParcelFetcher interface {
	Fetch(ctx context.Context, block, lot string) ([]byte, error)
}

type TaxLookup interface {
	Lookup(ctx context.Context, block, lot string) taxes.Result
}

// GeocodeSource fills lat and lng from the record's street address.
type GeocodeSource struct {
	Client Geocoder
	// Suffix is appended to every address to pin it to one municipality.
	Suffix string
}

func (s *GeocodeSource) Name() string       { return "geocode" }
func (s *GeocodeSource) Triggers() []string { return []string{FieldLat, FieldLng} }

func (s *GeocodeSource) Ready(rec Record) (bool, string) {
	if rec.Text(FieldAddress) == "" {
		return false, "no address"
	}
	return true, ""
}

func (s *GeocodeSource) Lookup(ctx context.Context, rec Record) Outcome {
	loc, err := s.Client.Geocode(ctx, canon.GeocodeQuery(rec.Text(FieldAddress), s.Suffix))
	if err != nil {
		var se *geocode.StatusError
		var he *geocode.HTTPError
		switch {
		case errors.As(err, &se):
			return notFound(s.Name(), se.Error())
		case errors.As(err, &he):
			return failed(s.Name(), TransportFailure, he.StatusCode, he.Body)
		default:
			return failed(s.Name(), TransportFailure, 0, err.Error())
		}
	}
	return found(s.Name(), map[string]any{FieldLat: loc.Lat, FieldLng: loc.Lng})
}

// ParcelSource fills geojson from the parcel service.
type ParcelSource struct {
	Client ParcelFetcher
	Keys   Keys
}

func (s *ParcelSource) Name() string       { return "parcel" }
func (s *ParcelSource) Triggers() []string { return []string{FieldGeoJSON} }

func (s *ParcelSource) Ready(rec Record) (bool, string) {
	return blockLotReady(s.Keys, rec)
}

func (s *ParcelSource) Lookup(ctx context.Context, rec Record) Outcome {
	block, lot := s.Keys.BlockLot(rec)
	body, err := s.Client.Fetch(ctx, block, lot)
	if err != nil {
		var he *parcels.HTTPError
		switch {
		case errors.Is(err, parcels.ErrNotFound):
			return notFound(s.Name(), err.Error())
		case errors.Is(err, parcels.ErrInvalidJSON):
			return failed(s.Name(), InvalidPayload, 200, err.Error())
		case errors.As(err, &he):
			return failed(s.Name(), TransportFailure, he.StatusCode, he.Body)
		default:
			return failed(s.Name(), TransportFailure, 0, err.Error())
		}
	}
	out := found(s.Name(), map[string]any{FieldGeoJSON: string(body)})
	out.Raw = body
	return out
}

// TaxSource fills the tax account fields and marks tax_status on success.
// Sub-fields come from a single page, so the lookup runs whenever the status
// is absent.
type TaxSource struct {
	Client TaxLookup
	Keys   Keys
}

func (s *TaxSource) Name() string       { return "tax" }
func (s *TaxSource) Triggers() []string { return []string{FieldTaxStatus} }

func (s *TaxSource) Ready(rec Record) (bool, string) {
	return blockLotReady(s.Keys, rec)
}

func (s *TaxSource) Lookup(ctx context.Context, rec Record) Outcome {
	block, lot := s.Keys.BlockLot(rec)
	res := s.Client.Lookup(ctx, block, lot)
	echo := &Echo{Block: res.Block, Lot: res.Lot, PageBlock: res.PageBlock, PageLot: res.PageLot}

	var out Outcome
	switch res.State {
	case taxes.StateSuccess:
		fields := make(map[string]any, len(res.Fields)+1)
		for k, v := range res.Fields {
			fields[k] = v
		}
		fields[FieldTaxStatus] = TaxSuccess
		out = found(s.Name(), fields)
	case taxes.StateNoAccountFound:
		out = notFound(s.Name(), res.Detail())
	case taxes.StateValidationError:
		out = failed(s.Name(), ValidationError, res.StatusCode, res.Detail())
	default:
		out = failed(s.Name(), TransportFailure, res.StatusCode, res.Detail())
	}
	out.Echo = echo
	out.Raw = res.Body
	return out
}

func blockLotReady(k Keys, rec Record) (bool, string) {
	block, lot := k.BlockLot(rec)
	if block == "" || lot == "" {
		return false, "no block or lot"
	}
	return true, ""
}
