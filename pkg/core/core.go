// Package core holds the value types shared by every part of the crossing:
// directions, vehicle classes and vehicle identities.
package core

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Direction is one of the two opposing approaches to the crossing
type Direction int

const (
	// NoDirection is the zero value, used for an unlocked zone
	NoDirection Direction = iota
	// East is the eastbound approach
	East
	// West is the westbound approach
	West
)

// Directions lists both approaches in display order
var Directions = []Direction{East, West}

// String returns the upper-case direction name
func (d Direction) String() string {
	switch d {
	case East:
		return "EAST"
	case West:
		return "WEST"
	default:
		return "NONE"
	}
}

// Letter returns the single-letter prefix used in vehicle labels
func (d Direction) Letter() byte {
	switch d {
	case East:
		return 'E'
	case West:
		return 'W'
	default:
		return '?'
	}
}

// Opposite returns the other approach. NoDirection has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case East:
		return West
	case West:
		return East
	default:
		return NoDirection
	}
}

// Valid reports whether d is East or West
func (d Direction) Valid() bool {
	return d == East || d == West
}

// ParseDirection accepts "east"/"west" in any case, or the single letters.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EAST", "E":
		return East, nil
	case "WEST", "W":
		return West, nil
	}
	return NoDirection, fmt.Errorf("unknown direction %q", s)
}

// Class is the priority class of a vehicle
type Class int

const (
	// Normal vehicles are served in arrival order
	Normal Class = iota
	// Emergency vehicles are selected ahead of any normal vehicle in the same queue
	Emergency
)

func (c Class) String() string {
	if c == Emergency {
		return "emergency"
	}
	return "normal"
}

// VehicleID identifies a vehicle by its approach and its per-direction sequence number.
type VehicleID struct {
	Direction Direction
	Seq       int
}

// String renders the id as E01, W12, ...
func (id VehicleID) String() string {
	return fmt.Sprintf("%c%02d", id.Direction.Letter(), id.Seq)
}

// Vehicle is a single car or emergency vehicle waiting for or using the crossing.
type Vehicle struct {
	ID        VehicleID
	Class     Class
	ArrivedAt time.Time
}

// Direction returns the approach the vehicle came from
func (v Vehicle) Direction() Direction {
	return v.ID.Direction
}

// IsEmergency reports whether the vehicle preempts normal traffic
func (v Vehicle) IsEmergency() bool {
	return v.Class == Emergency
}

// Kind returns the noun used in arrival log lines
func (v Vehicle) Kind() string {
	if v.IsEmergency() {
		return "ambulance"
	}
	return "car"
}

// Label is the subject used in zone entry and exit lines,
// e.g. "Car E01" or "AMBULANCE from EAST".
func (v Vehicle) Label() string {
	if v.IsEmergency() {
		return "AMBULANCE from " + v.Direction().String()
	}
	return "Car " + v.ID.String()
}

// Sequence hands out monotonic per-direction sequence numbers starting at 1.
type Sequence struct {
	mu   sync.Mutex
	next map[Direction]int
}

// NewSequence creates a sequence with both directions starting at 1
func NewSequence() *Sequence {
	return &Sequence{
		next: map[Direction]int{East: 1, West: 1},
	}
}

// Next returns a fresh id for the given direction
func (s *Sequence) Next(dir Direction) VehicleID {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.next[dir]
	if seq == 0 {
		seq = 1
	}
	s.next[dir] = seq + 1
	return VehicleID{Direction: dir, Seq: seq}
}

// NewVehicle builds a vehicle with the next id for dir
func (s *Sequence) NewVehicle(dir Direction, class Class, now time.Time) Vehicle {
	return Vehicle{
		ID:        s.Next(dir),
		Class:     class,
		ArrivedAt: now,
	}
}
