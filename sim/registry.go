// Implements the ParcelRegistry: a chained hash table of lifecycle records keyed by
// parcel ID, with status history and hub-wide counters.

package sim

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultRegistryCapacity is the initial bucket count when none is configured.
	DefaultRegistryCapacity = 30
	// MaxLoadFactor triggers a resize when the pending insertion would reach it.
	MaxLoadFactor = 0.75
)

// StatusChange is one entry of a record's status history.
type StatusChange struct {
	Status ParcelStatus
	Tick   int64
}

// Record is a read-only snapshot of what the registry knows about a parcel.
type Record struct {
	ID           string
	Status       ParcelStatus
	ArrivalTick  int64
	DispatchTick int64 // NotDispatched until the first transition into Dispatched
	ReturnCount  int
	Destination  string
	Priority     Priority
	Size         SizeClass
	History      []StatusChange // most recent first
}

// registryEntry is an arena slot. History is kept oldest first internally.
type registryEntry struct {
	id           string
	status       ParcelStatus
	arrivalTick  int64
	dispatchTick int64
	returnCount  int
	destination  string
	priority     Priority
	size         SizeClass
	history      []StatusChange
	next         int // next entry in the same bucket chain, or nilNode
}

// Counters are the hub-wide aggregates maintained by the registry.
type Counters struct {
	Generated    int // records ever inserted
	Enqueued     int // records inserted as InQueue or Sorted
	Dispatched   int // records currently Dispatched
	Returned     int // records currently Returned
	InSystem     int // records currently InQueue or Sorted
	ReturnEvents int // total IncrementReturnCount calls
}

// ParcelRegistry owns one record per parcel ID. Records are never removed.
//
// Entries are stored in insertion order in an arena; buckets hold the handle of the
// first entry of each chain. Resizing only rebuilds bucket heads and chain links,
// so records and their histories never move or reorder.
type ParcelRegistry struct {
	entries  []registryEntry
	buckets  []int
	capacity int

	currentTick  int64
	generated    int
	enqueued     int
	byStatus     [numStatuses]int
	returnEvents int
	dispatchedTo map[string]int
	resizes      int
}

// NewParcelRegistry creates an empty registry with the given initial bucket count.
// Non-positive capacities fall back to DefaultRegistryCapacity.
func NewParcelRegistry(initialCapacity int) *ParcelRegistry {
	if initialCapacity <= 0 {
		initialCapacity = DefaultRegistryCapacity
	}
	r := &ParcelRegistry{
		capacity:     initialCapacity,
		buckets:      newBuckets(initialCapacity),
		dispatchedTo: make(map[string]int),
	}
	logrus.Debugf("parcel registry created with capacity %d", initialCapacity)
	return r
}

func newBuckets(n int) []int {
	b := make([]int, n)
	for i := range b {
		b[i] = nilNode
	}
	return b
}

// hash is the polynomial accumulator hash*31 + c, reduced modulo capacity at every step.
func hash(id string, capacity int) int {
	h := 0
	for _, c := range id {
		h = (h*31 + int(c)) % capacity
	}
	return h
}

// SetCurrentTick sets the tick stamped on subsequent status changes.
func (r *ParcelRegistry) SetCurrentTick(tick int64) { r.currentTick = tick }

// CurrentTick returns the tick used for status history entries.
func (r *ParcelRegistry) CurrentTick() int64 { return r.currentTick }

func (r *ParcelRegistry) lookup(id string) int {
	for h := r.buckets[hash(id, r.capacity)]; h != nilNode; h = r.entries[h].next {
		if r.entries[h].id == id {
			return h
		}
	}
	return nilNode
}

// Exists reports whether id has a record.
func (r *ParcelRegistry) Exists(id string) bool {
	return r.lookup(id) != nilNode
}

// Insert creates the record for a parcel.
//
// Fails with INVALID_ARGUMENT on an empty id or destination, a priority outside 1..3,
// an unrecognized size or status, and with DUPLICATE_KEY if id is already tracked.
func (r *ParcelRegistry) Insert(id string, status ParcelStatus, arrivalTick int64, destination string, priority Priority, size SizeClass) error {
	switch {
	case strings.TrimSpace(id) == "":
		return NewInvalidArgument("parcel id must not be empty")
	case strings.TrimSpace(destination) == "":
		return &HubError{Code: ErrCodeInvalidArgument, Message: "destination must not be empty", ParcelID: id}
	case !priority.Valid():
		return &HubError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("priority %d outside 1..3", priority), ParcelID: id}
	case !size.Valid():
		return &HubError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unrecognized size class %d", size), ParcelID: id}
	case !status.Valid():
		return &HubError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unrecognized status %d", status), ParcelID: id}
	}
	if r.Exists(id) {
		logrus.Errorf("parcel registry: duplicate insert of %s", id)
		return NewDuplicateKey(id)
	}

	for float64(len(r.entries)+1)/float64(r.capacity) >= MaxLoadFactor {
		r.resize()
	}

	bucket := hash(id, r.capacity)
	r.entries = append(r.entries, registryEntry{
		id:           id,
		status:       status,
		arrivalTick:  arrivalTick,
		dispatchTick: NotDispatched,
		destination:  destination,
		priority:     priority,
		size:         size,
		history:      []StatusChange{{Status: status, Tick: arrivalTick}},
		next:         r.buckets[bucket],
	})
	h := len(r.entries) - 1
	r.buckets[bucket] = h

	r.generated++
	if status == StatusInQueue || status == StatusSorted {
		r.enqueued++
	}
	r.byStatus[status]++
	if status == StatusDispatched {
		r.entries[h].dispatchTick = arrivalTick
		r.dispatchedTo[destination]++
	}
	logrus.Debugf("parcel registry: %s tracked with status %s", id, status)
	return nil
}

// resize doubles the bucket array and relinks every entry.
func (r *ParcelRegistry) resize() {
	r.capacity *= 2
	r.buckets = newBuckets(r.capacity)
	for h := range r.entries {
		bucket := hash(r.entries[h].id, r.capacity)
		r.entries[h].next = r.buckets[bucket]
		r.buckets[bucket] = h
	}
	r.resizes++
	logrus.Debugf("parcel registry resized to capacity %d", r.capacity)
}

// UpdateStatus moves a record to newStatus at the current tick.
// Counters are adjusted symmetrically on entering and leaving Dispatched/Returned.
func (r *ParcelRegistry) UpdateStatus(id string, newStatus ParcelStatus) error {
	if !newStatus.Valid() {
		return &HubError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unrecognized status %d", newStatus), ParcelID: id}
	}
	h := r.lookup(id)
	if h == nilNode {
		return NewNotFound(id)
	}
	e := &r.entries[h]
	old := e.status
	e.history = append(e.history, StatusChange{Status: newStatus, Tick: r.currentTick})

	r.byStatus[old]--
	r.byStatus[newStatus]++
	if old == StatusDispatched && newStatus != StatusDispatched {
		r.dispatchedTo[e.destination]--
	} else if old != StatusDispatched && newStatus == StatusDispatched {
		r.dispatchedTo[e.destination]++
		e.dispatchTick = r.currentTick
	}
	e.status = newStatus
	logrus.Debugf("parcel registry: %s %s -> %s", id, old, newStatus)
	return nil
}

// IncrementReturnCount records one more misroute for id.
func (r *ParcelRegistry) IncrementReturnCount(id string) error {
	h := r.lookup(id)
	if h == nilNode {
		return NewNotFound(id)
	}
	r.entries[h].returnCount++
	r.returnEvents++
	return nil
}

// Get returns a snapshot of id's record.
func (r *ParcelRegistry) Get(id string) (Record, error) {
	h := r.lookup(id)
	if h == nilNode {
		return Record{}, NewNotFound(id)
	}
	return r.entries[h].record(), nil
}

// StatusOf returns the recorded status of id without copying its history.
func (r *ParcelRegistry) StatusOf(id string) (ParcelStatus, error) {
	h := r.lookup(id)
	if h == nilNode {
		return StatusUnknown, NewNotFound(id)
	}
	return r.entries[h].status, nil
}

func (e *registryEntry) record() Record {
	history := make([]StatusChange, len(e.history))
	for i, c := range e.history {
		history[len(e.history)-1-i] = c
	}
	return Record{
		ID:           e.id,
		Status:       e.status,
		ArrivalTick:  e.arrivalTick,
		DispatchTick: e.dispatchTick,
		ReturnCount:  e.returnCount,
		Destination:  e.destination,
		Priority:     e.priority,
		Size:         e.size,
		History:      history,
	}
}

// Each visits every record in insertion order.
func (r *ParcelRegistry) Each(fn func(Record)) {
	for h := range r.entries {
		fn(r.entries[h].record())
	}
}

// Len returns the number of records.
func (r *ParcelRegistry) Len() int { return len(r.entries) }

// Capacity returns the current bucket count.
func (r *ParcelRegistry) Capacity() int { return r.capacity }

// Resizes returns how many times the bucket array has doubled.
func (r *ParcelRegistry) Resizes() int { return r.resizes }

// LoadFactor returns Len()/Capacity().
func (r *ParcelRegistry) LoadFactor() float64 {
	return float64(len(r.entries)) / float64(r.capacity)
}

// CountStatus returns how many records are currently in status s.
func (r *ParcelRegistry) CountStatus(s ParcelStatus) int {
	if !s.Valid() {
		return 0
	}
	return r.byStatus[s]
}

// Counters returns the aggregate counters.
func (r *ParcelRegistry) Counters() Counters {
	return Counters{
		Generated:    r.generated,
		Enqueued:     r.enqueued,
		Dispatched:   r.byStatus[StatusDispatched],
		Returned:     r.byStatus[StatusReturned],
		InSystem:     r.byStatus[StatusInQueue] + r.byStatus[StatusSorted],
		ReturnEvents: r.returnEvents,
	}
}

// DispatchedTo returns the number of records currently Dispatched to destination.
func (r *ParcelRegistry) DispatchedTo(destination string) int {
	return r.dispatchedTo[destination]
}

// DispatchTotals returns a copy of the per-destination dispatch counters.
// Their sum always equals Counters().Dispatched.
func (r *ParcelRegistry) DispatchTotals() map[string]int {
	out := make(map[string]int, len(r.dispatchedTo))
	for k, v := range r.dispatchedTo {
		out[k] = v
	}
	return out
}

// MostDispatched returns the destination with the most dispatches; ties go to the
// smallest key. Returns "", 0 when nothing was dispatched.
func (r *ParcelRegistry) MostDispatched() (string, int) {
	keys := make([]string, 0, len(r.dispatchedTo))
	for k := range r.dispatchedTo {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestCount := "", 0
	for _, k := range keys {
		if r.dispatchedTo[k] > bestCount {
			best, bestCount = k, r.dispatchedTo[k]
		}
	}
	return best, bestCount
}

// TimingStats summarizes dispatch delays (dispatchTick - arrivalTick) over the registry.
type TimingStats struct {
	Dispatched           int     // records included in the delay statistics
	AverageDelay         float64 // ticks
	P50Delay             float64
	P90Delay             float64
	P99Delay             float64
	LongestDelayParcel   string // "" when nothing was dispatched
	LongestDelay         int64
	ReturnedMoreThanOnce int
}

// TimingStats computes delay statistics across all records.
func (r *ParcelRegistry) TimingStats() TimingStats {
	var ts TimingStats
	var delays []int64
	for i := range r.entries {
		e := &r.entries[i]
		if e.status == StatusDispatched && e.dispatchTick >= 0 {
			delay := e.dispatchTick - e.arrivalTick
			delays = append(delays, delay)
			if ts.LongestDelayParcel == "" || delay > ts.LongestDelay {
				ts.LongestDelay = delay
				ts.LongestDelayParcel = e.id
			}
		}
		if e.returnCount > 1 {
			ts.ReturnedMoreThanOnce++
		}
	}
	ts.Dispatched = len(delays)
	if len(delays) > 0 {
		ts.AverageDelay = CalculateMean(delays)
		sortInt64s(delays)
		ts.P50Delay = CalculatePercentile(delays, 50)
		ts.P90Delay = CalculatePercentile(delays, 90)
		ts.P99Delay = CalculatePercentile(delays, 99)
	}
	return ts
}
