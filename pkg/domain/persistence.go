package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateObservation(Observation) (Observation, error)
	UpdateObservation(id int64, mutator func(*Observation) error) (Observation, error)
	DeleteObservation(id int64) error
	CreateRateGroup(RateGroup) (RateGroup, error)
	UpdateRateGroup(id int64, mutator func(*RateGroup) error) (RateGroup, error)
	DeleteRateGroup(id int64) error
	CreateEaGroup(EaGroup) (EaGroup, error)
	UpdateEaGroup(id int64, mutator func(*EaGroup) error) (EaGroup, error)
	DeleteEaGroup(id int64) error
	CreateOrderGroup(OrderGroup) (OrderGroup, error)
	UpdateOrderGroup(id int64, mutator func(*OrderGroup) error) (OrderGroup, error)
	DeleteOrderGroup(id int64) error
	CreatePooledSample(PooledSample) (PooledSample, error)
	UpdatePooledSample(id int64, mutator func(*PooledSample) error) (PooledSample, error)
	DeletePooledSample(id int64) error
	CreateSimParams(SimParams) (SimParams, error)
	UpdateSimParams(id int64, mutator func(*SimParams) error) (SimParams, error)
	DeleteSimParams(id int64) error
	FindObservation(id int64) (Observation, bool)
	FindRateGroup(id int64) (RateGroup, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// the incremental pipeline.
type TransactionView interface {
	ListObservations() []Observation
	ListRateGroups() []RateGroup
	ListEaGroups() []EaGroup
	ListOrderGroups() []OrderGroup
	ListPooledSamples() []PooledSample
	ListSimParams() []SimParams
	FindObservation(id int64) (Observation, bool)
	FindRateGroup(id int64) (RateGroup, bool)
	FindEaGroup(id int64) (EaGroup, bool)
	FindOrderGroup(id int64) (OrderGroup, bool)
	FindPooledSample(dataset string) (PooledSample, bool)
	FindSimParams(dataset string) (SimParams, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetObservation(id int64) (Observation, bool)
	ListObservations() []Observation
	GetRateGroup(id int64) (RateGroup, bool)
	ListRateGroups() []RateGroup
	ListEaGroups() []EaGroup
	ListOrderGroups() []OrderGroup
	ListPooledSamples() []PooledSample
	ListSimParams() []SimParams
}
