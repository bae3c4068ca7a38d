// Package sim provides the tick-driven simulation core of the parcel sorting hub.
//
// # Reading Guide
//
// Start with these files to understand the hub:
//   - parcel.go: Parcel model and its lifecycle (InQueue → Sorted → Dispatched | Returned)
//   - simulator.go: the per-tick loop (admit, classify, dispatch or misroute, retry, rotate)
//   - errors.go: the error taxonomy and which kinds are expected steady-state outcomes
//
// # Structures
//
// Each structure is mutated only by the Simulator, one tick at a time:
//   - ArrivalQueue: bounded FIFO buffer; overflow is dropped and counted
//   - DestinationIndex: AVL tree keyed by destination, one FIFO queue per node
//   - ParcelRegistry: chained hash table of lifecycle records and hub counters
//   - RetryStack: LIFO of misrouted parcels, bounded by a per-parcel retry limit
//   - TerminalScheduler: fixed ring of terminals rotated every N ticks
//
// Sub-packages:
//   - sim/workload/: parcel sources (seeded generator, YAML manifest replay)
//   - sim/trace/: per-tick decision records and the tick log
//   - sim/export/: registry export sinks (text, SQLite, PostgreSQL)
package sim
