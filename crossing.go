// Package crossing coordinates a single-lane construction zone shared by two opposing directions of traffic.
//
// Vehicles arrive on the EAST and WEST approaches and wait in bounded per-direction queues. A traffic light
// alternates the privileged direction, a dispatcher admits waiting vehicles into the zone, and each admitted vehicle
// crosses in timed steps before releasing its slot. Emergency vehicles are selected ahead of normal ones in their
// queue. The zone admits at most its capacity and only one direction at a time.
//
// Simulation wires the pieces together; the pkg/ packages can also be used on their own.
package crossing

import (
	"github.com/anggasct/crossing/pkg/core"
	"github.com/anggasct/crossing/pkg/zone"
)

// Core types
type (
	// Direction is an approach to the crossing
	Direction = core.Direction

	// Class distinguishes normal from emergency vehicles
	Class = core.Class

	// Vehicle is a car or emergency vehicle
	Vehicle = core.Vehicle

	// VehicleID identifies a vehicle by direction and sequence number
	VehicleID = core.VehicleID

	// ZoneView is a consistent copy of the zone state
	ZoneView = zone.View

	// InvariantError reports a broken zone invariant
	InvariantError = zone.InvariantError
)

// Re-export constants
const (
	East = core.East
	West = core.West

	Normal    = core.Normal
	Emergency = core.Emergency
)

// Re-export functions
var (
	// ParseDirection parses EAST or WEST
	ParseDirection = core.ParseDirection

	// IsInvariantError checks if an error is a zone InvariantError
	IsInvariantError = zone.IsInvariantError
)
