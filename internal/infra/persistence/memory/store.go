// Package memory provides an in-memory implementation of the persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kineticore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Observation aliases domain.Observation for in-memory persistence operations.
	Observation = domain.Observation
	// RateGroup aliases domain.RateGroup.
	RateGroup = domain.RateGroup
	// EaGroup aliases domain.EaGroup.
	EaGroup = domain.EaGroup
	// OrderGroup aliases domain.OrderGroup.
	OrderGroup = domain.OrderGroup
	// PooledSample aliases domain.PooledSample.
	PooledSample = domain.PooledSample
	// SimParams aliases domain.SimParams.
	SimParams = domain.SimParams
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	observations map[int64]Observation
	rateGroups   map[int64]RateGroup
	eaGroups     map[int64]EaGroup
	orderGroups  map[int64]OrderGroup
	pools        map[int64]PooledSample
	simParams    map[int64]SimParams
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Observations map[int64]Observation  `json:"observations"`
	RateGroups   map[int64]RateGroup    `json:"rate_groups"`
	EaGroups     map[int64]EaGroup      `json:"ea_groups"`
	OrderGroups  map[int64]OrderGroup   `json:"order_groups"`
	Pools        map[int64]PooledSample `json:"pooled_samples"`
	SimParams    map[int64]SimParams    `json:"sim_params"`
}

func newMemoryState() memoryState {
	return memoryState{
		observations: make(map[int64]Observation),
		rateGroups:   make(map[int64]RateGroup),
		eaGroups:     make(map[int64]EaGroup),
		orderGroups:  make(map[int64]OrderGroup),
		pools:        make(map[int64]PooledSample),
		simParams:    make(map[int64]SimParams),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Observations: make(map[int64]Observation, len(state.observations)),
		RateGroups:   make(map[int64]RateGroup, len(state.rateGroups)),
		EaGroups:     make(map[int64]EaGroup, len(state.eaGroups)),
		OrderGroups:  make(map[int64]OrderGroup, len(state.orderGroups)),
		Pools:        make(map[int64]PooledSample, len(state.pools)),
		SimParams:    make(map[int64]SimParams, len(state.simParams)),
	}
	for k, v := range state.observations {
		s.Observations[k] = cloneObservation(v)
	}
	for k, v := range state.rateGroups {
		s.RateGroups[k] = cloneRateGroup(v)
	}
	for k, v := range state.eaGroups {
		s.EaGroups[k] = cloneEaGroup(v)
	}
	for k, v := range state.orderGroups {
		s.OrderGroups[k] = cloneOrderGroup(v)
	}
	for k, v := range state.pools {
		s.Pools[k] = clonePooledSample(v)
	}
	for k, v := range state.simParams {
		s.SimParams[k] = cloneSimParams(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Observations {
		state.observations[k] = cloneObservation(v)
	}
	for k, v := range s.RateGroups {
		state.rateGroups[k] = cloneRateGroup(v)
	}
	for k, v := range s.EaGroups {
		state.eaGroups[k] = cloneEaGroup(v)
	}
	for k, v := range s.OrderGroups {
		state.orderGroups[k] = cloneOrderGroup(v)
	}
	for k, v := range s.Pools {
		state.pools[k] = clonePooledSample(v)
	}
	for k, v := range s.SimParams {
		state.simParams[k] = cloneSimParams(v)
	}
	return state
}

// migrateSnapshot fills nil buckets so older exports load cleanly.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Observations == nil {
		snapshot.Observations = map[int64]Observation{}
	}
	if snapshot.RateGroups == nil {
		snapshot.RateGroups = map[int64]RateGroup{}
	}
	if snapshot.EaGroups == nil {
		snapshot.EaGroups = map[int64]EaGroup{}
	}
	if snapshot.OrderGroups == nil {
		snapshot.OrderGroups = map[int64]OrderGroup{}
	}
	if snapshot.Pools == nil {
		snapshot.Pools = map[int64]PooledSample{}
	}
	if snapshot.SimParams == nil {
		snapshot.SimParams = map[int64]SimParams{}
	}
	for id, obs := range snapshot.Observations {
		if obs.Raw == nil {
			obs.Raw = map[string]quantityValue{}
			snapshot.Observations[id] = obs
		}
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.observations {
		out.observations[k] = cloneObservation(v)
	}
	for k, v := range s.rateGroups {
		out.rateGroups[k] = cloneRateGroup(v)
	}
	for k, v := range s.eaGroups {
		out.eaGroups[k] = cloneEaGroup(v)
	}
	for k, v := range s.orderGroups {
		out.orderGroups[k] = cloneOrderGroup(v)
	}
	for k, v := range s.pools {
		out.pools[k] = clonePooledSample(v)
	}
	for k, v := range s.simParams {
		out.simParams[k] = cloneSimParams(v)
	}
	return out
}

// Store provides an in-memory transactional store for the domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider, for deterministic tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListObservations returns all observations sorted by id.
func (v transactionView) ListObservations() []Observation {
	out := make([]Observation, 0, len(v.state.observations))
	for _, o := range v.state.observations {
		out = append(out, cloneObservation(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListRateGroups returns all rate groups sorted by id.
func (v transactionView) ListRateGroups() []RateGroup {
	out := make([]RateGroup, 0, len(v.state.rateGroups))
	for _, g := range v.state.rateGroups {
		out = append(out, cloneRateGroup(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListEaGroups returns all activation-energy groups sorted by id.
func (v transactionView) ListEaGroups() []EaGroup {
	out := make([]EaGroup, 0, len(v.state.eaGroups))
	for _, g := range v.state.eaGroups {
		out = append(out, cloneEaGroup(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListOrderGroups returns all reaction-order groups sorted by id.
func (v transactionView) ListOrderGroups() []OrderGroup {
	out := make([]OrderGroup, 0, len(v.state.orderGroups))
	for _, g := range v.state.orderGroups {
		out = append(out, cloneOrderGroup(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListPooledSamples returns all pooled samples sorted by id.
func (v transactionView) ListPooledSamples() []PooledSample {
	out := make([]PooledSample, 0, len(v.state.pools))
	for _, p := range v.state.pools {
		out = append(out, clonePooledSample(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListSimParams returns all fitted simulation parameters sorted by id.
func (v transactionView) ListSimParams() []SimParams {
	out := make([]SimParams, 0, len(v.state.simParams))
	for _, p := range v.state.simParams {
		out = append(out, cloneSimParams(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindObservation retrieves an observation by id from the snapshot.
func (v transactionView) FindObservation(id int64) (Observation, bool) {
	o, ok := v.state.observations[id]
	if !ok {
		return Observation{}, false
	}
	return cloneObservation(o), true
}

// FindRateGroup retrieves a rate group by id from the snapshot.
func (v transactionView) FindRateGroup(id int64) (RateGroup, bool) {
	g, ok := v.state.rateGroups[id]
	if !ok {
		return RateGroup{}, false
	}
	return cloneRateGroup(g), true
}

// FindEaGroup retrieves an activation-energy group by id from the snapshot.
func (v transactionView) FindEaGroup(id int64) (EaGroup, bool) {
	g, ok := v.state.eaGroups[id]
	if !ok {
		return EaGroup{}, false
	}
	return cloneEaGroup(g), true
}

// FindOrderGroup retrieves a reaction-order group by id from the snapshot.
func (v transactionView) FindOrderGroup(id int64) (OrderGroup, bool) {
	g, ok := v.state.orderGroups[id]
	if !ok {
		return OrderGroup{}, false
	}
	return cloneOrderGroup(g), true
}

// FindPooledSample retrieves the pooled sample of a dataset from the snapshot.
func (v transactionView) FindPooledSample(dataset string) (PooledSample, bool) {
	for _, p := range v.state.pools {
		if p.Dataset == dataset {
			return clonePooledSample(p), true
		}
	}
	return PooledSample{}, false
}

// FindSimParams retrieves the fitted parameters of a dataset from the snapshot.
func (v transactionView) FindSimParams(dataset string) (SimParams, bool) {
	for _, p := range v.state.simParams {
		if p.Dataset == dataset {
			return cloneSimParams(p), true
		}
	}
	return SimParams{}, false
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindObservation retrieves an observation from the transactional state.
func (tx *transaction) FindObservation(id int64) (Observation, bool) {
	o, ok := tx.state.observations[id]
	if !ok {
		return Observation{}, false
	}
	return cloneObservation(o), true
}

// FindRateGroup retrieves a rate group from the transactional state.
func (tx *transaction) FindRateGroup(id int64) (RateGroup, bool) {
	g, ok := tx.state.rateGroups[id]
	if !ok {
		return RateGroup{}, false
	}
	return cloneRateGroup(g), true
}

// CreateObservation stores a new observation. A zero id is assigned the next
// free id; caller-supplied ids are preserved so group member references stay
// stable across imports.
func (tx *transaction) CreateObservation(o Observation) (Observation, error) {
	if o.ID == 0 {
		o.ID = nextMapID(tx.state.observations)
	}
	if _, exists := tx.state.observations[o.ID]; exists {
		return Observation{}, fmt.Errorf("observation %d already exists", o.ID)
	}
	if o.Raw == nil {
		o.Raw = map[string]quantityValue{}
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.observations[o.ID] = cloneObservation(o)
	tx.recordChange(Change{Entity: domain.EntityObservation, Action: domain.ActionCreate, After: cloneObservation(o)})
	return cloneObservation(o), nil
}

// UpdateObservation mutates an observation using the provided mutator function.
func (tx *transaction) UpdateObservation(id int64, mutator func(*Observation) error) (Observation, error) {
	current, ok := tx.state.observations[id]
	if !ok {
		return Observation{}, domain.NotFoundError{Entity: domain.EntityObservation, ID: id}
	}
	before := cloneObservation(current)
	if err := mutator(&current); err != nil {
		return Observation{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.observations[id] = cloneObservation(current)
	tx.recordChange(Change{Entity: domain.EntityObservation, Action: domain.ActionUpdate, Before: before, After: cloneObservation(current)})
	return cloneObservation(current), nil
}

// DeleteObservation removes an observation from the transaction state.
func (tx *transaction) DeleteObservation(id int64) error {
	current, ok := tx.state.observations[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityObservation, ID: id}
	}
	delete(tx.state.observations, id)
	tx.recordChange(Change{Entity: domain.EntityObservation, Action: domain.ActionDelete, Before: cloneObservation(current)})
	return nil
}

// CreateRateGroup stores a new rate group.
func (tx *transaction) CreateRateGroup(g RateGroup) (RateGroup, error) {
	if g.ID == 0 {
		g.ID = nextMapID(tx.state.rateGroups)
	}
	if _, exists := tx.state.rateGroups[g.ID]; exists {
		return RateGroup{}, fmt.Errorf("rate group %d already exists", g.ID)
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.rateGroups[g.ID] = cloneRateGroup(g)
	tx.recordChange(Change{Entity: domain.EntityRateGroup, Action: domain.ActionCreate, After: cloneRateGroup(g)})
	return cloneRateGroup(g), nil
}

// UpdateRateGroup mutates a rate group.
func (tx *transaction) UpdateRateGroup(id int64, mutator func(*RateGroup) error) (RateGroup, error) {
	current, ok := tx.state.rateGroups[id]
	if !ok {
		return RateGroup{}, domain.NotFoundError{Entity: domain.EntityRateGroup, ID: id}
	}
	before := cloneRateGroup(current)
	if err := mutator(&current); err != nil {
		return RateGroup{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.rateGroups[id] = cloneRateGroup(current)
	tx.recordChange(Change{Entity: domain.EntityRateGroup, Action: domain.ActionUpdate, Before: before, After: cloneRateGroup(current)})
	return cloneRateGroup(current), nil
}

// DeleteRateGroup removes a rate group from state.
func (tx *transaction) DeleteRateGroup(id int64) error {
	current, ok := tx.state.rateGroups[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityRateGroup, ID: id}
	}
	delete(tx.state.rateGroups, id)
	tx.recordChange(Change{Entity: domain.EntityRateGroup, Action: domain.ActionDelete, Before: cloneRateGroup(current)})
	return nil
}

// CreateEaGroup stores a new activation-energy group.
func (tx *transaction) CreateEaGroup(g EaGroup) (EaGroup, error) {
	if g.ID == 0 {
		g.ID = nextMapID(tx.state.eaGroups)
	}
	if _, exists := tx.state.eaGroups[g.ID]; exists {
		return EaGroup{}, fmt.Errorf("activation-energy group %d already exists", g.ID)
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.eaGroups[g.ID] = cloneEaGroup(g)
	tx.recordChange(Change{Entity: domain.EntityEaGroup, Action: domain.ActionCreate, After: cloneEaGroup(g)})
	return cloneEaGroup(g), nil
}

// UpdateEaGroup mutates an activation-energy group.
func (tx *transaction) UpdateEaGroup(id int64, mutator func(*EaGroup) error) (EaGroup, error) {
	current, ok := tx.state.eaGroups[id]
	if !ok {
		return EaGroup{}, domain.NotFoundError{Entity: domain.EntityEaGroup, ID: id}
	}
	before := cloneEaGroup(current)
	if err := mutator(&current); err != nil {
		return EaGroup{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.eaGroups[id] = cloneEaGroup(current)
	tx.recordChange(Change{Entity: domain.EntityEaGroup, Action: domain.ActionUpdate, Before: before, After: cloneEaGroup(current)})
	return cloneEaGroup(current), nil
}

// DeleteEaGroup removes an activation-energy group from state.
func (tx *transaction) DeleteEaGroup(id int64) error {
	current, ok := tx.state.eaGroups[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityEaGroup, ID: id}
	}
	delete(tx.state.eaGroups, id)
	tx.recordChange(Change{Entity: domain.EntityEaGroup, Action: domain.ActionDelete, Before: cloneEaGroup(current)})
	return nil
}

// CreateOrderGroup stores a new reaction-order group.
func (tx *transaction) CreateOrderGroup(g OrderGroup) (OrderGroup, error) {
	if g.ID == 0 {
		g.ID = nextMapID(tx.state.orderGroups)
	}
	if _, exists := tx.state.orderGroups[g.ID]; exists {
		return OrderGroup{}, fmt.Errorf("reaction-order group %d already exists", g.ID)
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.orderGroups[g.ID] = cloneOrderGroup(g)
	tx.recordChange(Change{Entity: domain.EntityOrderGroup, Action: domain.ActionCreate, After: cloneOrderGroup(g)})
	return cloneOrderGroup(g), nil
}

// UpdateOrderGroup mutates a reaction-order group.
func (tx *transaction) UpdateOrderGroup(id int64, mutator func(*OrderGroup) error) (OrderGroup, error) {
	current, ok := tx.state.orderGroups[id]
	if !ok {
		return OrderGroup{}, domain.NotFoundError{Entity: domain.EntityOrderGroup, ID: id}
	}
	before := cloneOrderGroup(current)
	if err := mutator(&current); err != nil {
		return OrderGroup{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.orderGroups[id] = cloneOrderGroup(current)
	tx.recordChange(Change{Entity: domain.EntityOrderGroup, Action: domain.ActionUpdate, Before: before, After: cloneOrderGroup(current)})
	return cloneOrderGroup(current), nil
}

// DeleteOrderGroup removes a reaction-order group from state.
func (tx *transaction) DeleteOrderGroup(id int64) error {
	current, ok := tx.state.orderGroups[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityOrderGroup, ID: id}
	}
	delete(tx.state.orderGroups, id)
	tx.recordChange(Change{Entity: domain.EntityOrderGroup, Action: domain.ActionDelete, Before: cloneOrderGroup(current)})
	return nil
}

// CreatePooledSample stores a new pooled sample. Datasets keep at most one
// pool each.
func (tx *transaction) CreatePooledSample(p PooledSample) (PooledSample, error) {
	if p.ID == 0 {
		p.ID = nextMapID(tx.state.pools)
	}
	if _, exists := tx.state.pools[p.ID]; exists {
		return PooledSample{}, fmt.Errorf("pooled sample %d already exists", p.ID)
	}
	for _, existing := range tx.state.pools {
		if existing.Dataset == p.Dataset {
			return PooledSample{}, fmt.Errorf("dataset %q already has pooled sample %d", p.Dataset, existing.ID)
		}
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.pools[p.ID] = clonePooledSample(p)
	tx.recordChange(Change{Entity: domain.EntityPooledSample, Action: domain.ActionCreate, After: clonePooledSample(p)})
	return clonePooledSample(p), nil
}

// UpdatePooledSample mutates a pooled sample.
func (tx *transaction) UpdatePooledSample(id int64, mutator func(*PooledSample) error) (PooledSample, error) {
	current, ok := tx.state.pools[id]
	if !ok {
		return PooledSample{}, domain.NotFoundError{Entity: domain.EntityPooledSample, ID: id}
	}
	before := clonePooledSample(current)
	if err := mutator(&current); err != nil {
		return PooledSample{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.pools[id] = clonePooledSample(current)
	tx.recordChange(Change{Entity: domain.EntityPooledSample, Action: domain.ActionUpdate, Before: before, After: clonePooledSample(current)})
	return clonePooledSample(current), nil
}

// DeletePooledSample removes a pooled sample from state.
func (tx *transaction) DeletePooledSample(id int64) error {
	current, ok := tx.state.pools[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityPooledSample, ID: id}
	}
	delete(tx.state.pools, id)
	tx.recordChange(Change{Entity: domain.EntityPooledSample, Action: domain.ActionDelete, Before: clonePooledSample(current)})
	return nil
}

// CreateSimParams stores fitted simulation parameters for a dataset.
func (tx *transaction) CreateSimParams(p SimParams) (SimParams, error) {
	if p.ID == 0 {
		p.ID = nextMapID(tx.state.simParams)
	}
	if _, exists := tx.state.simParams[p.ID]; exists {
		return SimParams{}, fmt.Errorf("simulation parameters %d already exist", p.ID)
	}
	for _, existing := range tx.state.simParams {
		if existing.Dataset == p.Dataset {
			return SimParams{}, fmt.Errorf("dataset %q already has simulation parameters %d", p.Dataset, existing.ID)
		}
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.simParams[p.ID] = cloneSimParams(p)
	tx.recordChange(Change{Entity: domain.EntitySimParams, Action: domain.ActionCreate, After: cloneSimParams(p)})
	return cloneSimParams(p), nil
}

// UpdateSimParams mutates fitted simulation parameters.
func (tx *transaction) UpdateSimParams(id int64, mutator func(*SimParams) error) (SimParams, error) {
	current, ok := tx.state.simParams[id]
	if !ok {
		return SimParams{}, domain.NotFoundError{Entity: domain.EntitySimParams, ID: id}
	}
	before := cloneSimParams(current)
	if err := mutator(&current); err != nil {
		return SimParams{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.simParams[id] = cloneSimParams(current)
	tx.recordChange(Change{Entity: domain.EntitySimParams, Action: domain.ActionUpdate, Before: before, After: cloneSimParams(current)})
	return cloneSimParams(current), nil
}

// DeleteSimParams removes fitted simulation parameters from state.
func (tx *transaction) DeleteSimParams(id int64) error {
	current, ok := tx.state.simParams[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntitySimParams, ID: id}
	}
	delete(tx.state.simParams, id)
	tx.recordChange(Change{Entity: domain.EntitySimParams, Action: domain.ActionDelete, Before: cloneSimParams(current)})
	return nil
}

// GetObservation returns a cloned observation by id.
func (s *Store) GetObservation(id int64) (Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.observations[id]
	if !ok {
		return Observation{}, false
	}
	return cloneObservation(o), true
}

// ListObservations returns all observations sorted by id.
func (s *Store) ListObservations() []Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListObservations()
}

// GetRateGroup returns a cloned rate group by id.
func (s *Store) GetRateGroup(id int64) (RateGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.state.rateGroups[id]
	if !ok {
		return RateGroup{}, false
	}
	return cloneRateGroup(g), true
}

// ListRateGroups returns all rate groups sorted by id.
func (s *Store) ListRateGroups() []RateGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListRateGroups()
}

// ListEaGroups returns all activation-energy groups sorted by id.
func (s *Store) ListEaGroups() []EaGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListEaGroups()
}

// ListOrderGroups returns all reaction-order groups sorted by id.
func (s *Store) ListOrderGroups() []OrderGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListOrderGroups()
}

// ListPooledSamples returns all pooled samples sorted by id.
func (s *Store) ListPooledSamples() []PooledSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListPooledSamples()
}

// ListSimParams returns all fitted simulation parameters sorted by id.
func (s *Store) ListSimParams() []SimParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListSimParams()
}

func nextMapID[T any](m map[int64]T) int64 {
	var maxID int64
	for id := range m {
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}
