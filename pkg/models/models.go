package models

// PortPosition is the application tag carried by position-bearing mesh packets.
const PortPosition = "POSITION_APP"

// Position is the decoded position payload of a mesh packet. Latitude and
// longitude of zero mean "not reported" (the radio omits the fields rather
// than sending zeros). Altitude is in meters and nil when absent.
type Position struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	AltitudeM *float64 `json:"altitude,omitempty"`
}

// Payload is the decoded portion of a mesh packet.
type Payload struct {
	PortNum  string    `json:"portnum"`
	Position *Position `json:"position,omitempty"`
}

// MeshPacket is the inbound packet shape handed to the bridge, whether it
// arrived from the radio transport, was rebuilt from a peer-shared location,
// or was synthesized for testing. FamiliarName and UnitNo are only set on
// packets rebuilt from shared locations; mesh devices are named through the
// identifier map instead.
type MeshPacket struct {
	FromID       string   `json:"fromId"`
	Decoded      *Payload `json:"decoded,omitempty"`
	FamiliarName string   `json:"familiar_name,omitempty"`
	UnitNo       int      `json:"unit_no,omitempty"`
}

// PositionRecord is the canonical unit of work: one normalized position,
// ready for delivery. Immutable after construction.
type PositionRecord struct {
	Address      uint32
	Lat          float64
	Lon          float64
	AltFt        int
	DisplayName  string
	UnitNo       int
	SourceIsMesh bool
}

// SharedLocation is the only entity serialized across the network boundary
// (line JSON over UDP between peer instances). Addressing happens on the
// receiving side; the wire format is independent of the numeric address space.
type SharedLocation struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	AltFtMSL   int     `json:"alt_ft_msl"`
	Timestamp  int64   `json:"timestamp"`
	Department string  `json:"department"`
	UnitNo     int     `json:"unit_no"`
	Name       string  `json:"name,omitempty"`
}

// TrackerStatus is one "device last seen" fact kept by the tracker registry.
// SharedWithUs marks devices that reached us over the peer share rather than
// the local mesh.
type TrackerStatus struct {
	MeshID       string `json:"mesh_id"`
	Name         string `json:"name"`
	LastSeen     int64  `json:"last_seen"`
	SharedWithUs bool   `json:"shared_with_us"`
}
