// sim/simulator.go
package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/parcel-sim/parcel-sim/sim/trace"
)

// ParcelSource produces the parcels that arrive at the hub on a given tick.
type ParcelSource interface {
	GenerateParcelsForTick(tick int64) []*Parcel
}

// Simulator is the SimulationController: it owns every hub structure and advances
// them one tick at a time. Each tick runs to quiescence before the next begins.
type Simulator struct {
	RunID   string
	Clock   int64
	Horizon int64
	Config  HubConfig

	Arrivals  *ArrivalQueue
	Index     *DestinationIndex
	Registry  *ParcelRegistry
	Retries   *RetryStack
	Terminals *TerminalScheduler
	Metrics   *Metrics
	Trace     *trace.SimulationTrace // nil or level none disables tick records

	source   ParcelSource
	rng      *PartitionedRNG
	misroute *rand.Rand
}

// NewSimulator validates cfg, builds every structure and initializes the terminal ring.
// rng is shared with the source so both draw from one seed; nil creates one from cfg.Seed.
func NewSimulator(cfg HubConfig, source ParcelSource, rng *PartitionedRNG) (*Simulator, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hub config: %w", err)
	}
	if source == nil {
		return nil, NewInvalidArgument("parcel source must not be nil")
	}
	if rng == nil {
		rng = NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	}

	terminals, err := NewTerminalScheduler(cfg.RotationInterval, cfg.RotationMode)
	if err != nil {
		return nil, err
	}
	if err := terminals.Initialize(cfg.Terminals); err != nil {
		return nil, err
	}

	s := &Simulator{
		RunID:     uuid.Must(uuid.NewV7()).String(),
		Horizon:   cfg.MaxTicks,
		Config:    cfg,
		Arrivals:  NewArrivalQueue(cfg.QueueCapacity),
		Index:     NewDestinationIndex(),
		Registry:  NewParcelRegistry(cfg.RegistryCapacity),
		Retries:   NewRetryStack(cfg.retryLimit()),
		Terminals: terminals,
		Metrics:   NewMetrics(),
		source:    source,
		rng:       rng,
		misroute:  rng.ForSubsystem(SubsystemMisroute),
	}
	return s, nil
}

// Run executes ticks Clock+1..Horizon. Call-local errors (INVALID_ARGUMENT,
// DUPLICATE_KEY, NOT_FOUND) reject the offending parcel and are counted in
// Metrics.Rejected; they never stop the run.
func (sim *Simulator) Run() {
	logrus.Infof("[run %s] simulating %d ticks over %d terminals", sim.RunID, sim.Horizon, len(sim.Config.Terminals))
	for tick := sim.Clock + 1; tick <= sim.Horizon; tick++ {
		if err := sim.Step(tick); err != nil {
			logrus.Warnf("[tick %07d] completed with rejected parcels", tick)
		}
	}
	logrus.Infof("[tick %07d] Simulation ended", sim.Clock)
}

// Step runs one tick: admit, classify, dispatch-or-misroute, retry, rotate.
// Every phase runs even when a parcel is rejected; the returned error joins the
// call-local errors of all parcels rejected during the tick.
func (sim *Simulator) Step(tick int64) error {
	sim.Clock = tick
	sim.Registry.SetCurrentTick(tick)
	sim.Metrics.TicksExecuted++
	logrus.Infof("[tick %07d] begin", tick)

	rec := trace.TickRecord{Tick: tick}
	var errs []error
	reject := func(p *Parcel, err error) {
		errs = append(errs, sim.reject(p, err, &rec))
	}

	sim.admit(tick, &rec, reject)
	sim.classify(&rec, reject)
	sim.Metrics.observeQueue(sim.Arrivals.Len())
	sim.dispatch(&rec, reject)
	sim.replayRetry(tick, &rec, reject)
	sim.rotate(tick, &rec)

	if sim.Config.SnapshotEvery > 0 && tick%int64(sim.Config.SnapshotEvery) == 0 {
		sim.logSnapshot(tick)
	}
	if sim.Trace.Enabled() {
		rec.QueueLen = sim.Arrivals.Len()
		rec.StackLen = sim.Retries.Len()
		rec.Pending = sim.pendingByDestination()
		sim.Trace.RecordTick(rec)
	}
	return errors.Join(errs...)
}

// reject sets p aside after a call-local error. p is no longer held by any
// structure; its registry record, if it has one, keeps its last legal status.
func (sim *Simulator) reject(p *Parcel, err error, rec *trace.TickRecord) error {
	id := ""
	if p != nil {
		id = p.ID
	}
	sim.Metrics.Rejected++
	rec.Rejected = append(rec.Rejected, trace.RejectRecord{ParcelID: id, Code: string(CodeOf(err)), Reason: err.Error()})
	logrus.Errorf("[tick %07d] parcel %s rejected: %v", sim.Clock, id, err)
	return fmt.Errorf("parcel %q: %w", id, err)
}

// admit moves freshly generated parcels into the arrival queue, dropping overflow.
// A parcel the registry refuses is taken back out of the queue.
func (sim *Simulator) admit(tick int64, rec *trace.TickRecord, reject func(*Parcel, error)) {
	for _, p := range sim.source.GenerateParcelsForTick(tick) {
		sim.Metrics.Generated++
		if err := sim.Arrivals.Enqueue(p); err != nil {
			if !errors.Is(err, ErrCapacityExceeded) {
				reject(p, err)
				continue
			}
			sim.Metrics.Overflowed++
			rec.Overflowed = append(rec.Overflowed, p.ID)
			continue
		}
		if err := sim.Registry.Insert(p.ID, p.Status, p.ArrivalTick, p.Destination, p.Priority, p.Size); err != nil {
			sim.Arrivals.retract(p)
			reject(p, err)
			continue
		}
		sim.Metrics.Admitted++
		rec.Admitted = append(rec.Admitted, p.ID)
	}
}

// classify moves at most SortBatchSize parcels from the arrival queue into the index.
func (sim *Simulator) classify(rec *trace.TickRecord, reject func(*Parcel, error)) {
	for i := 0; i < sim.Config.SortBatchSize; i++ {
		p := sim.Arrivals.Dequeue()
		if p == nil {
			break
		}
		if err := sim.transition(p, StatusSorted); err != nil {
			reject(p, err)
			continue
		}
		sim.Index.Insert(p)
		sim.Metrics.Sorted++
		rec.Sorted = append(rec.Sorted, p.ID)
	}
}

// dispatch attempts to send the head of the active terminal's queue.
//
// A misroute consumes the head exactly like a successful dispatch does: the parcel
// leaves the index before it is pushed on the retry stack, so it can never be
// offered to the same terminal twice before it is replayed.
func (sim *Simulator) dispatch(rec *trace.TickRecord, reject func(*Parcel, error)) {
	active, ok := sim.Terminals.Current()
	if !ok {
		return
	}
	head := sim.Index.PeekFront(active)
	if head == nil {
		sim.Metrics.IdleTicks++
		return
	}
	if !sim.Index.Remove(active, head.ID) {
		reject(head, &HubError{Code: ErrCodeNotFound, Message: "queue head vanished from index", ParcelID: head.ID})
		return
	}

	if sim.misroute.Float64() >= sim.Config.MisroutingRate {
		if err := sim.transition(head, StatusDispatched); err != nil {
			reject(head, err)
			return
		}
		sim.Metrics.Dispatched++
		rec.Dispatch = &trace.DispatchRecord{ParcelID: head.ID, Terminal: active, Outcome: trace.OutcomeDispatched, ReturnCount: head.ReturnCount}
		logrus.Infof("[tick %07d] dispatched %s to %s", sim.Clock, head.ID, active)
		return
	}

	sim.Metrics.Misrouted++
	if err := sim.transition(head, StatusReturned); err != nil {
		reject(head, err)
		return
	}
	if err := sim.Registry.IncrementReturnCount(head.ID); err != nil {
		reject(head, err)
		return
	}
	outcome := trace.OutcomeMisrouted
	if err := sim.Retries.Push(head); err != nil {
		if !errors.Is(err, ErrRetryLimitExceeded) {
			reject(head, err)
			return
		}
		sim.Metrics.Dropped++
		outcome = trace.OutcomeDropped
	}
	sim.Metrics.observeStack(sim.Retries.Len())
	rec.Dispatch = &trace.DispatchRecord{ParcelID: head.ID, Terminal: active, Outcome: outcome, ReturnCount: head.ReturnCount}
	logrus.Infof("[tick %07d] %s %s at %s (returns=%d)", sim.Clock, outcome, head.ID, active, head.ReturnCount)
}

// replayRetry reinserts the top of the retry stack every RetryEvery ticks.
func (sim *Simulator) replayRetry(tick int64, rec *trace.TickRecord, reject func(*Parcel, error)) {
	if sim.Config.RetryEvery <= 0 || tick%int64(sim.Config.RetryEvery) != 0 {
		return
	}
	p := sim.Retries.Pop()
	if p == nil {
		return
	}
	if err := sim.transition(p, StatusSorted); err != nil {
		reject(p, err)
		return
	}
	sim.Index.Insert(p)
	sim.Metrics.Reprocessed++
	rec.Reprocessed = p.ID
}

// rotate refreshes every terminal's pending load and advances the scheduler.
func (sim *Simulator) rotate(tick int64, rec *trace.TickRecord) {
	for _, t := range sim.Terminals.Terminals() {
		sim.Terminals.UpdatePendingLoad(t.Name, sim.Index.CountFor(t.Name))
	}
	if sim.Terminals.Tick(tick) {
		rec.RotatedTo, _ = sim.Terminals.Current()
	}
	rec.ActiveTerminal, _ = sim.Terminals.Current()
}

// transition moves p along a legal lifecycle edge and mirrors it in the registry.
// The edge is checked against the registry's recorded status, which must also
// agree with p's own status: a parcel whose record belongs to someone else or
// has moved on cannot rewrite it.
func (sim *Simulator) transition(p *Parcel, next ParcelStatus) error {
	recorded, err := sim.Registry.StatusOf(p.ID)
	if err != nil {
		return err
	}
	if recorded != p.Status {
		return &HubError{
			Code:     ErrCodeInvalidArgument,
			Message:  fmt.Sprintf("parcel holds status %s but registry records %s", p.Status, recorded),
			ParcelID: p.ID,
		}
	}
	if !recorded.CanTransitionTo(next) {
		return &HubError{
			Code:     ErrCodeInvalidArgument,
			Message:  fmt.Sprintf("illegal transition %s -> %s", recorded, next),
			ParcelID: p.ID,
		}
	}
	if err := sim.Registry.UpdateStatus(p.ID, next); err != nil {
		return err
	}
	p.Status = next
	if next == StatusDispatched {
		p.DispatchTick = sim.Clock
	}
	return nil
}

func (sim *Simulator) pendingByDestination() map[string]int {
	pending := make(map[string]int)
	sim.Index.Walk(func(key string, queued []*Parcel) {
		if len(queued) > 0 {
			pending[key] = len(queued)
		}
	})
	return pending
}

func (sim *Simulator) logSnapshot(tick int64) {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	active, _ := sim.Terminals.Current()
	logrus.Debugf("[tick %07d] state: queue=%d/%d stack=%d active=%s index(height=%d, pending=%d) pending=%v",
		tick, sim.Arrivals.Len(), sim.Arrivals.Cap(), sim.Retries.Len(), active,
		sim.Index.Height(), sim.Index.TotalCount(), sim.pendingByDestination())
}
