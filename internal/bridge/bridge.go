// Package bridge wires the pipeline together: normalize an inbound packet,
// record the sighting, deliver the position to readsb, and re-share it to
// peers when it originated on the local mesh.
package bridge

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"meshbridge/internal/config"
	"meshbridge/internal/icao"
	"meshbridge/internal/mesh"
	"meshbridge/internal/metrics"
	"meshbridge/internal/normalize"
	"meshbridge/internal/share"
	"meshbridge/internal/tracker"
	"meshbridge/pkg/models"
	"meshbridge/pkg/utils"
)

// Origin tags where a unit of work came from. Only mesh-originated work is
// eligible for re-broadcast to peers; peer and test work always runs with
// sharing off so two instances cannot echo positions back and forth.
type Origin int

const (
	OriginMesh Origin = iota
	OriginPeer
	OriginTest
)

// Encoder is the external codec contract: one canonical position in, the
// two raw sentences the decoder accepts out.
type Encoder interface {
	Encode(addr uint32, lat, lon float64, altFt int) (string, string)
}

// Injector is the delivery surface the bridge drives; *readsb.Client
// satisfies it.
type Injector interface {
	Inject(sentence1, sentence2 string) error
}

// LocationSender is the outbound half of the peer share; *share.Sender
// satisfies it.
type LocationSender interface {
	Send(loc *models.SharedLocation) error
}

// Bridge is the orchestrator.
type Bridge struct {
	cfg      *config.Config
	addrs    *icao.Map
	norm     *normalize.Normalizer
	trackers *tracker.Registry
	encoder  Encoder
	readsb   Injector
	sender   LocationSender // nil when sharing is disabled
	receiver *share.Receiver
	radio    mesh.Transport // nil when running without a radio
	sink     metrics.Sink

	// mu serializes packet handling: the radio transport invokes callbacks
	// on its own goroutine while the run loop processes peer and test work.
	mu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New wires a bridge. sender, receiver, and radio may be nil to disable the
// corresponding feature.
func New(cfg *config.Config, addrs *icao.Map, trackers *tracker.Registry,
	encoder Encoder, injector Injector, sender LocationSender,
	receiver *share.Receiver, radio mesh.Transport, sink metrics.Sink) *Bridge {

	if sink == nil {
		sink = metrics.Noop()
	}
	b := &Bridge{
		cfg:      cfg,
		addrs:    addrs,
		norm:     normalize.New(addrs),
		trackers: trackers,
		encoder:  encoder,
		readsb:   injector,
		sender:   sender,
		receiver: receiver,
		radio:    radio,
		sink:     sink,
		stopCh:   make(chan struct{}),
	}

	if radio != nil {
		radio.Subscribe(b.onPositionReceive, b.onReceive)
	}
	return b
}

// onPositionReceive is the transport callback for position packets.
func (b *Bridge) onPositionReceive(pkt *models.MeshPacket) {
	b.sink.Increment(metrics.PositionCallback)
	b.HandlePacket(pkt, OriginMesh)
}

// onReceive fires for every packet; it only counts and logs.
func (b *Bridge) onReceive(pkt *models.MeshPacket) {
	log.Printf("Generic packet from: %s", pkt.FromID)
	b.sink.Increment(metrics.PacketCallback)
}

// HandlePacket drives one unit of work through the whole pipeline.
func (b *Bridge) HandlePacket(pkt *models.MeshPacket, origin Origin) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pkt != nil && pkt.FromID != "" {
		b.sink.IncrementWith(metrics.AllTrackers, map[string]string{"id": pkt.FromID})
	}

	rec, err := b.norm.Normalize(pkt, origin == OriginMesh)
	if err != nil {
		log.Printf("Warning - dropping packet: %v", err)
		b.sink.IncrementWith(metrics.PositionReject, map[string]string{"reason": normalize.Reason(err)})
		return
	}

	log.Printf("Translated %s -> %s (%s unit %d) lat %f lon %f alt %d",
		pkt.FromID, utils.FormatAddress(rec.Address), rec.DisplayName, rec.UnitNo,
		rec.Lat, rec.Lon, rec.AltFt)
	b.sink.Increment(metrics.PositionDecode)
	b.sink.IncrementWith(metrics.KnownTrackers, map[string]string{
		"icao": strconv.FormatUint(uint64(rec.Address), 10),
		"name": rec.DisplayName,
	})

	b.trackers.Upsert(models.TrackerStatus{
		MeshID:       pkt.FromID,
		Name:         rec.DisplayName,
		LastSeen:     time.Now().Unix(),
		SharedWithUs: origin == OriginPeer,
	})
	utils.CheckWarn(b.trackers.Save(b.cfg.TrackerFile), "saving trackers")

	b.injectPosition(rec)

	if origin == OriginMesh && b.sender != nil {
		b.shareLocation(rec)
	}
}

// injectPosition sends one position to readsb. The command is delivered
// twice so the display tool's stale-entry timeout is refreshed; the
// duplicate is required, not an accident.
func (b *Bridge) injectPosition(rec *models.PositionRecord) {
	sentence1, sentence2 := b.encoder.Encode(rec.Address, rec.Lat, rec.Lon, rec.AltFt)

	err1 := b.readsb.Inject(sentence1, sentence2)
	err2 := b.readsb.Inject(sentence1, sentence2)
	if err1 != nil || err2 != nil {
		b.sink.Increment(metrics.XmitFail)
		log.Printf("Failed to send position to readsb")
	}
}

// shareLocation forwards one mesh-originated position to the peer.
func (b *Bridge) shareLocation(rec *models.PositionRecord) {
	loc := &models.SharedLocation{
		Lat:        rec.Lat,
		Lon:        rec.Lon,
		AltFtMSL:   rec.AltFt,
		Timestamp:  time.Now().Unix(),
		Department: b.cfg.Department,
		UnitNo:     rec.UnitNo,
		Name:       rec.DisplayName,
	}
	if err := b.sender.Send(loc); err != nil {
		log.Printf("Error sharing location data to internet: %v", err)
		b.sink.Increment(metrics.SharedOutError)
		return
	}
	b.sink.Increment(metrics.SharedOut)
}

// PacketFromShared rebuilds a mesh-shaped packet from a peer-shared
// location, assigning it an address in the share range.
func (b *Bridge) PacketFromShared(loc *models.SharedLocation) (*models.MeshPacket, error) {
	addr, err := b.addrs.ShareAddress(loc.UnitNo)
	if err != nil {
		return nil, err
	}

	altM := normalize.FeetToMeters(loc.AltFtMSL)
	return &models.MeshPacket{
		FromID:       utils.FormatAddress(addr),
		FamiliarName: loc.Name,
		UnitNo:       loc.UnitNo,
		Decoded: &models.Payload{
			PortNum: models.PortPosition,
			Position: &models.Position{
				Latitude:  loc.Lat,
				Longitude: loc.Lon,
				AltitudeM: &altM,
			},
		},
	}, nil
}

// TestPacket returns the fixed synthetic packet used by test mode.
func TestPacket() *models.MeshPacket {
	altM := 4000 / 3.28084 // feet to meters
	return &models.MeshPacket{
		FromID: "!cafebabe",
		Decoded: &models.Payload{
			PortNum: models.PortPosition,
			Position: &models.Position{
				Latitude:  40.7859839,
				Longitude: -119.2470743,
				AltitudeM: &altM,
			},
		},
	}
}

// Run is the bridge's top-level loop: each tick it checks transport
// liveness, drains at most one peer-shared location, and drives test
// injection when enabled. Returns only on Stop or on a failed transport
// reconnect, the one fatal condition (a radio-disconnected instance has no
// useful work to do).
func (b *Bridge) Run() error {
	ticker := time.NewTicker(b.cfg.TickInterval)
	defer ticker.Stop()

	var lastTest time.Time
	for {
		select {
		case <-b.stopCh:
			return nil

		case <-ticker.C:
			if b.radio != nil && !b.radio.Alive() {
				log.Printf("Attempting reconnect to mesh transport")
				b.sink.Increment(metrics.Reconnect)
				if err := b.radio.Reconnect(); err != nil {
					return fmt.Errorf("mesh transport reconnect failed: %w", err)
				}
			}

			if b.receiver != nil {
				select {
				case loc := <-b.receiver.Queue():
					b.handleShared(loc)
				default:
				}
			}

			if b.cfg.TestMode && time.Since(lastTest) >= b.cfg.TestInterval {
				b.HandlePacket(TestPacket(), OriginTest)
				lastTest = time.Now()
			}
		}
	}
}

// handleShared runs one dequeued peer location through the pipeline with
// sharing disabled.
func (b *Bridge) handleShared(loc *models.SharedLocation) {
	log.Printf("De-queued shared location: %s unit %d", loc.Name, loc.UnitNo)
	pkt, err := b.PacketFromShared(loc)
	if err != nil {
		log.Printf("Warning - dropping shared location: %v", err)
		b.sink.Increment(metrics.SharedInError)
		return
	}
	b.HandlePacket(pkt, OriginPeer)
}

// Trackers exposes the registry for the status server.
func (b *Bridge) Trackers() *tracker.Registry {
	return b.trackers
}

// Stop ends the run loop.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}
