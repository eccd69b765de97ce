// Package adsb builds the two raw command sentences the downstream decoder
// accepts for one position: a DF17 airborne position report as an even/odd
// CPR frame pair, each rendered as an uppercase hex sentence.
package adsb

import (
	"fmt"
	"math"
)

const (
	downlinkFormat     = 17 // extended squitter
	capability         = 5
	typeCode           = 11 // airborne position with barometric altitude
	surveillanceStatus = 0
	nicSupplement      = 0

	// NZ is the number of geographic latitude zones in the CPR scheme.
	nz = 15

	cprBits  = 17
	cprScale = 1 << cprBits
)

// Codec implements the sentence contract the bridge injects through.
type Codec struct{}

// Encode produces the even and odd frame sentences for one position.
func (Codec) Encode(addr uint32, lat, lon float64, altFt int) (string, string) {
	return encodeFrame(addr, lat, lon, altFt, false), encodeFrame(addr, lat, lon, altFt, true)
}

func encodeFrame(addr uint32, lat, lon float64, altFt int, odd bool) string {
	frame := make([]byte, 14)
	frame[0] = downlinkFormat<<3 | capability
	frame[1] = byte(addr >> 16)
	frame[2] = byte(addr >> 8)
	frame[3] = byte(addr)

	latCPR, lonCPR := cprEncode(lat, lon, odd)

	oddFlag := uint64(0)
	if odd {
		oddFlag = 1
	}

	// ME field, 56 bits: TC(5) SS(2) NICsb(1) ALT(12) T(1) F(1) LAT(17) LON(17)
	me := uint64(typeCode)<<51 |
		uint64(surveillanceStatus)<<49 |
		uint64(nicSupplement)<<48 |
		uint64(encodeAltitude(altFt))<<36 |
		oddFlag<<34 |
		uint64(latCPR)<<17 |
		uint64(lonCPR)
	for i := 0; i < 7; i++ {
		frame[4+i] = byte(me >> (48 - 8*i))
	}

	parity := crc24(frame[:11])
	frame[11] = byte(parity >> 16)
	frame[12] = byte(parity >> 8)
	frame[13] = byte(parity)

	return fmt.Sprintf("%X", frame)
}

// encodeAltitude packs an altitude in feet into the 12-bit AC field with the
// Q bit set (25 ft increments, 1000 ft offset).
func encodeAltitude(altFt int) uint32 {
	n := (altFt + 1000) / 25
	if n < 0 {
		n = 0
	}
	if n > 0x7FF {
		n = 0x7FF
	}
	return uint32(n&0x7F0)<<1 | 0x010 | uint32(n&0x00F)
}

// cprEncode computes the 17-bit compact position report pair for a frame.
func cprEncode(lat, lon float64, odd bool) (uint32, uint32) {
	i := 0.0
	if odd {
		i = 1.0
	}

	dlat := 360.0 / (4*nz - i)
	yz := math.Floor(cprScale*wrap(lat, dlat)/dlat + 0.5)
	rlat := dlat * (yz/cprScale + math.Floor(lat/dlat))

	dlon := 360.0
	if nl := float64(cprNL(rlat)) - i; nl > 0 {
		dlon = 360.0 / nl
	}
	xz := math.Floor(cprScale*wrap(lon, dlon)/dlon + 0.5)

	return uint32(int64(yz)) & (cprScale - 1), uint32(int64(xz)) & (cprScale - 1)
}

// cprNL is the longitude zone count at a given latitude.
func cprNL(lat float64) int {
	abs := math.Abs(lat)
	switch {
	case lat == 0:
		return 59
	case abs == 87:
		return 2
	case abs > 87:
		return 1
	}
	a := 1 - math.Cos(math.Pi/(2*nz))
	b := math.Cos(math.Pi / 180.0 * abs)
	return int(math.Floor(2 * math.Pi / math.Acos(1-a/(b*b))))
}

// wrap is the positive modulus used by the CPR formulas.
func wrap(a, b float64) float64 {
	m := math.Mod(a, b)
	if m < 0 {
		m += b
	}
	return m
}

// crc24 computes the Mode S parity (polynomial 0xFFF409) over data. The
// parity appended to a frame makes the remainder over the full 112 bits zero.
func crc24(data []byte) uint32 {
	const poly = 0xFFF409
	crc := uint32(0)
	for _, b := range data {
		crc ^= uint32(b) << 16
		for i := 0; i < 8; i++ {
			crc <<= 1
			if crc&0x1000000 != 0 {
				crc = (crc ^ poly) & 0xFFFFFF
			}
		}
	}
	return crc & 0xFFFFFF
}
