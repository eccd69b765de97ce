package icao

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"gopkg.in/ini.v1"

	"meshbridge/pkg/utils"
)

// MeshSigil prefixes every identifier assigned by the mesh transport.
// Identifiers without it come from a test harness or a peer share and
// already encode their own address.
const MeshSigil = "!"

// ErrNotFound is returned when an identifier has no address mapping and no
// default is configured.
var ErrNotFound = errors.New("no address mapping")

// ErrShareOverflow is returned when a shared unit number falls outside the
// share address range and the overflow policy is "drop".
var ErrShareOverflow = errors.New("unit number exceeds share address range")

// Overflow policies for shared unit numbers that exceed the share range.
const (
	OverflowClamp = "clamp"
	OverflowDrop  = "drop"
)

// Map is the address space: it translates mesh device identifiers into the
// 24-bit address space the downstream decoder uses, and addresses back into
// display names. Safe for concurrent use; Reload swaps the tables in place.
type Map struct {
	path string

	mu          sync.RWMutex
	devices     map[string]uint32 // mesh id -> address
	names       map[uint32]string // address -> display name, below shareStart only
	start       uint32
	shareStart  uint32
	shareEnd    uint32
	defaultAddr uint32
	hasDefault  bool
	defaultAlt  int
	overflow    string
}

// Load reads an identifier map from an INI file. Required keys: icao_start,
// icao_share_start, icao_share_end. Optional: default, default_alt,
// share_overflow (clamp|drop). Device mappings live in [devices], reverse
// name mappings in [names].
func Load(path string) (*Map, error) {
	m := &Map{path: path}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads the identifier map file, replacing all tables atomically.
func (m *Map) Reload() error {
	cfg, err := ini.LoadSources(ini.LoadOptions{}, m.path)
	if err != nil {
		return fmt.Errorf("failed to load identifier map %s: %w", m.path, err)
	}

	section := cfg.Section("")
	start, err := utils.ParseHexAddress(section.Key("icao_start").String())
	if err != nil {
		return fmt.Errorf("icao_start: %w", err)
	}
	shareStart, err := utils.ParseHexAddress(section.Key("icao_share_start").String())
	if err != nil {
		return fmt.Errorf("icao_share_start: %w", err)
	}
	shareEnd, err := utils.ParseHexAddress(section.Key("icao_share_end").String())
	if err != nil {
		return fmt.Errorf("icao_share_end: %w", err)
	}
	if start > shareStart || shareStart > shareEnd {
		return fmt.Errorf("identifier map ranges out of order: %s <= %s <= %s required",
			utils.FormatAddress(start), utils.FormatAddress(shareStart), utils.FormatAddress(shareEnd))
	}

	hasDefault := false
	var defaultAddr uint32
	if v := section.Key("default").String(); v != "" {
		defaultAddr, err = utils.ParseHexAddress(v)
		if err != nil {
			return fmt.Errorf("default: %w", err)
		}
		hasDefault = true
	}

	defaultAlt := section.Key("default_alt").MustInt(0)

	overflow := strings.ToLower(section.Key("share_overflow").MustString(OverflowClamp))
	if overflow != OverflowClamp && overflow != OverflowDrop {
		return fmt.Errorf("share_overflow must be %q or %q, got %q", OverflowClamp, OverflowDrop, overflow)
	}

	devices := make(map[string]uint32)
	for _, key := range cfg.Section("devices").Keys() {
		addr, err := utils.ParseHexAddress(key.String())
		if err != nil {
			return fmt.Errorf("device %s: %w", key.Name(), err)
		}
		devices[key.Name()] = addr
	}

	names := make(map[uint32]string)
	for _, key := range cfg.Section("names").Keys() {
		addr, err := utils.ParseHexAddress(key.Name())
		if err != nil {
			return fmt.Errorf("name entry %s: %w", key.Name(), err)
		}
		names[addr] = key.String()
	}

	m.mu.Lock()
	m.devices = devices
	m.names = names
	m.start = start
	m.shareStart = shareStart
	m.shareEnd = shareEnd
	m.defaultAddr = defaultAddr
	m.hasDefault = hasDefault
	m.defaultAlt = defaultAlt
	m.overflow = overflow
	m.mu.Unlock()

	log.Printf("Loaded identifier map %s: %d devices, %d names", m.path, len(devices), len(names))
	return nil
}

// Resolve maps an incoming device identifier to a numeric address.
// Identifiers without the mesh sigil already encode their own address and
// parse directly as hex. Mesh identifiers use the explicit mapping, then the
// configured default, then fail.
func (m *Map) Resolve(identifier string) (uint32, error) {
	if identifier == "" {
		return 0, ErrNotFound
	}

	if !strings.HasPrefix(identifier, MeshSigil) {
		addr, err := utils.ParseHexAddress(identifier)
		if err != nil {
			return 0, ErrNotFound
		}
		return addr, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if addr, ok := m.devices[identifier]; ok {
		return addr, nil
	}
	if m.hasDefault {
		return m.defaultAddr, nil
	}
	return 0, ErrNotFound
}

// NameFor returns the display name and unit number for an address in the
// static range. Addresses at or above the share range carry their naming in
// the packet itself; for those ok is false. A static-range address missing
// from the reverse map soft-fails to ("UNKNOWN", 0) so naming never blocks
// delivery.
func (m *Map) NameFor(addr uint32) (name string, unitNo int, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if addr >= m.shareStart {
		return "", 0, false
	}
	name, found := m.names[addr]
	if !found {
		return "UNKNOWN", 0, true
	}
	return name, int(addr - m.start), true
}

// ShareAddress constructs the address for a peer-shared unit number:
// share_start + unit_no. Overflow past share_end is clamped (and logged)
// under the default policy, or rejected under the drop policy. Note that
// clamping silently reassigns distinct overflowing units to one address.
func (m *Map) ShareAddress(unitNo int) (uint32, error) {
	m.mu.RLock()
	shareStart, shareEnd, overflow := m.shareStart, m.shareEnd, m.overflow
	m.mu.RUnlock()

	addr := shareStart + uint32(unitNo)
	if unitNo < 0 || addr > shareEnd {
		if overflow == OverflowDrop {
			return 0, fmt.Errorf("%w: unit %d", ErrShareOverflow, unitNo)
		}
		log.Printf("Error: unit number %d exceeds share range end %s, clamping",
			unitNo, utils.FormatAddress(shareEnd))
		addr = shareEnd
	}
	return addr, nil
}

// DefaultAlt returns the configured fallback altitude in feet.
func (m *Map) DefaultAlt() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultAlt
}

// Path returns the backing file path.
func (m *Map) Path() string { return m.path }
