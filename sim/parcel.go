// Defines the Parcel struct that models a single parcel moving through the hub.
// Tracks destination, priority, size class, arrival/dispatch ticks and retries.

package sim

import (
	"fmt"
	"strings"
)

// ParcelStatus represents the lifecycle state of a parcel.
//
//	InQueue ──> Sorted ──┬──> Dispatched
//	              ^      │
//	              └──────┴──> Returned
//
// Dispatched is terminal. Returned -> Sorted is the only back-edge.
type ParcelStatus int

const (
	// StatusUnknown is the zero value and never a valid status.
	StatusUnknown ParcelStatus = iota
	StatusInQueue
	StatusSorted
	StatusDispatched
	StatusReturned
)

// numStatuses sizes per-status counter arrays.
const numStatuses = int(StatusReturned) + 1

var statusNames = map[ParcelStatus]string{
	StatusInQueue:    "InQueue",
	StatusSorted:     "Sorted",
	StatusDispatched: "Dispatched",
	StatusReturned:   "Returned",
}

// String returns the status name, or "Unknown" for invalid values.
func (s ParcelStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether s is one of the four lifecycle states.
func (s ParcelStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle edge.
func (s ParcelStatus) CanTransitionTo(next ParcelStatus) bool {
	switch s {
	case StatusInQueue:
		return next == StatusSorted
	case StatusSorted:
		return next == StatusDispatched || next == StatusReturned
	case StatusReturned:
		return next == StatusSorted
	default:
		return false
	}
}

// SizeClass is the physical size bucket of a parcel.
type SizeClass int

const (
	SizeUnknown SizeClass = iota
	SizeSmall
	SizeMedium
	SizeLarge
)

var sizeNames = map[SizeClass]string{
	SizeSmall:  "Small",
	SizeMedium: "Medium",
	SizeLarge:  "Large",
}

// AllSizes lists the recognized size classes in ascending order.
var AllSizes = []SizeClass{SizeSmall, SizeMedium, SizeLarge}

func (s SizeClass) String() string {
	if name, ok := sizeNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether s is Small, Medium or Large.
func (s SizeClass) Valid() bool {
	_, ok := sizeNames[s]
	return ok
}

// ParseSizeClass maps a case-insensitive name ("small", "Medium", ...) to a SizeClass.
func ParseSizeClass(name string) (SizeClass, error) {
	for size, n := range sizeNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return size, nil
		}
	}
	return SizeUnknown, NewInvalidArgument(fmt.Sprintf("unknown size class %q", name))
}

// Priority is the dispatch urgency of a parcel: 1 (low) to 3 (high).
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// Valid reports whether p is within 1..3.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// NotDispatched is the DispatchTick sentinel for parcels that never left the hub.
const NotDispatched int64 = -1

// Parcel is owned by exactly one structure at a time: the ArrivalQueue, a
// DestinationIndex queue, or the RetryStack. The ParcelRegistry only keeps a
// record describing it.
type Parcel struct {
	ID          string       // Unique identifier
	Destination string       // Destination key used by the DestinationIndex
	Priority    Priority     // 1..3
	Size        SizeClass    // Small, Medium, Large
	ArrivalTick int64        // Tick at which the parcel was generated
	Status      ParcelStatus // Current lifecycle state

	DispatchTick int64 // NotDispatched until the parcel leaves through a terminal
	ReturnCount  int   // Number of times the parcel was misrouted
}

// NewParcel creates a parcel in the InQueue state.
func NewParcel(id, destination string, priority Priority, size SizeClass, arrivalTick int64) *Parcel {
	return &Parcel{
		ID:           id,
		Destination:  destination,
		Priority:     priority,
		Size:         size,
		ArrivalTick:  arrivalTick,
		Status:       StatusInQueue,
		DispatchTick: NotDispatched,
	}
}

func (p Parcel) String() string {
	return fmt.Sprintf("Parcel: (ID: %s, Destination: %s, Priority: %d, Size: %s, ArrivalTick: %d, Status: %s)",
		p.ID, p.Destination, p.Priority, p.Size, p.ArrivalTick, p.Status)
}
