package normalize

import (
	"errors"
	"math"

	"meshbridge/internal/icao"
	"meshbridge/pkg/models"
)

// Rejection reasons. Each gate in Normalize short-circuits with one of these;
// no partial record is ever emitted.
var (
	ErrNoIdentifier       = errors.New("packet has no identifier")
	ErrNoAddress          = errors.New("no address mapping for identifier")
	ErrNotPosition        = errors.New("not a position packet")
	ErrIncompletePosition = errors.New("position missing latitude or longitude")
)

// feetPerMeter is the exact conversion constant the downstream fixtures
// depend on; do not "improve" its precision.
const feetPerMeter = 3.28084

// MetersToFeet converts an altitude in meters to whole feet.
func MetersToFeet(meters float64) int {
	return int(math.Round(meters * feetPerMeter))
}

// FeetToMeters converts whole feet to meters, truncating to a whole meter
// count as the shared-location rebuild always has.
func FeetToMeters(feet int) float64 {
	return float64(int(float64(feet) / feetPerMeter))
}

// Normalizer converts raw inbound packets into canonical position records.
// Pure: a call computes a record or a rejection and nothing else.
type Normalizer struct {
	addrs *icao.Map
}

// New creates a normalizer backed by the given address space.
func New(addrs *icao.Map) *Normalizer {
	return &Normalizer{addrs: addrs}
}

// Normalize validates and translates one packet. sourceIsMesh tags records
// that arrived over the local radio mesh rather than a peer share or test
// injection.
func (n *Normalizer) Normalize(pkt *models.MeshPacket, sourceIsMesh bool) (*models.PositionRecord, error) {
	if pkt == nil || pkt.FromID == "" {
		return nil, ErrNoIdentifier
	}

	addr, err := n.addrs.Resolve(pkt.FromID)
	if err != nil {
		return nil, ErrNoAddress
	}

	if pkt.Decoded == nil || pkt.Decoded.PortNum != models.PortPosition {
		return nil, ErrNotPosition
	}
	pos := pkt.Decoded.Position
	if pos == nil || pos.Latitude == 0 || pos.Longitude == 0 {
		return nil, ErrIncompletePosition
	}

	var altFt int
	if pos.AltitudeM == nil {
		altFt = n.addrs.DefaultAlt()
	} else {
		altFt = MetersToFeet(*pos.AltitudeM)
	}

	name, unitNo, ok := n.addrs.NameFor(addr)
	if !ok {
		// Share-range address: the packet carries its own naming.
		name, unitNo = pkt.FamiliarName, pkt.UnitNo
		if name == "" {
			name, unitNo = "UNKNOWN", 0
		}
	}

	return &models.PositionRecord{
		Address:      addr,
		Lat:          pos.Latitude,
		Lon:          pos.Longitude,
		AltFt:        altFt,
		DisplayName:  name,
		UnitNo:       unitNo,
		SourceIsMesh: sourceIsMesh,
	}, nil
}

// Reason maps a rejection error to its counter label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNoIdentifier):
		return "no_identifier"
	case errors.Is(err, ErrNoAddress):
		return "no_address"
	case errors.Is(err, ErrNotPosition):
		return "not_position"
	case errors.Is(err, ErrIncompletePosition):
		return "incomplete_position"
	default:
		return "unknown"
	}
}
