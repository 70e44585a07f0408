// Package core wires the derivation, grouping, and regression layers into a
// transactional service over a persistent store.
package core

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"kineticore/internal/derive"
	"kineticore/internal/infra/persistence/memory"
	"kineticore/internal/results"
	"kineticore/internal/simulate"
	"kineticore/pkg/domain"
	"kineticore/pkg/quantity"
	"kineticore/pkg/schema"
)

// Service exposes the transactional operations of the data-management
// pipeline: observation CRUD, incremental group maintenance, regression
// sweeps, and simulation.
type Service struct {
	store     PersistentStore
	schema    *schema.Schema
	consts    derive.Constants
	flow      derive.Flow
	runner    results.Runner
	simGlobal simulate.GlobalParams
	rng       *rand.Rand
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
}

// Option customizes service construction.
type Option func(*Service)

// WithLogger installs a structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder installs a metrics recorder observing every operation.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer installs a tracer spanning every operation.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithSimulationGlobals overrides the lab-wide fallback simulation parameters.
func WithSimulationGlobals(g simulate.GlobalParams) Option {
	return func(s *Service) { s.simGlobal = g }
}

// WithRand installs the noise source used for simulated observations. A nil
// source produces noise-free simulations.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

// NewEngine builds a rules engine carrying the standard observation guards
// for the supplied schema.
func NewEngine(sch *schema.Schema) *RulesEngine {
	engine := domain.NewRulesEngine()
	if sch != nil {
		engine.Register(NewSchemaRule(sch))
	}
	engine.Register(NewFiniteRawRule())
	return engine
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, sch *schema.Schema, consts derive.Constants, opts ...Option) *Service {
	s := &Service{
		store:     store,
		schema:    sch,
		consts:    consts,
		flow:      derive.NewFlow(consts),
		runner:    results.NewRunner(consts),
		simGlobal: simulate.DefaultGlobalParams(),
		logger:    noopLogger{},
		tracer:    noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store with the
// standard rules installed.
func NewInMemoryService(sch *schema.Schema, consts derive.Constants, opts ...Option) *Service {
	return NewService(memory.NewStore(NewEngine(sch)), sch, consts, opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) instrument(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	return ctx, func(err error) {
		span.End(err)
		if s.metrics != nil {
			s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
		}
		if err != nil {
			s.logger.Error(operation+" failed", "error", err)
		} else {
			s.logger.Debug(operation + " completed")
		}
	}
}

func (s *Service) normalize(raw map[string]quantity.Quantity) (map[string]quantity.Quantity, error) {
	if s.schema == nil {
		return raw, nil
	}
	normalized, err := s.schema.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize observation: %w", err)
	}
	return normalized, nil
}

// CreateObservation validates and stores a new measurement, then refreshes
// every result group it affects.
func (s *Service) CreateObservation(ctx context.Context, dataset string, raw map[string]quantity.Quantity, active bool) (domain.Observation, Result, error) {
	ctx, done := s.instrument(ctx, "create_observation")
	var created domain.Observation
	normalized, err := s.normalize(raw)
	if err != nil {
		done(err)
		return domain.Observation{}, Result{}, err
	}
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateObservation(domain.Observation{
			Dataset:  dataset,
			IsActive: active,
			Raw:      normalized,
		})
		if err != nil {
			return err
		}
		created, err = s.refresh(tx, created, false)
		return err
	})
	done(err)
	if err != nil {
		return domain.Observation{}, res, err
	}
	s.logger.Info("observation created", "id", created.ID, "dataset", created.Dataset)
	return created, res, nil
}

// UpdateObservationRaw replaces the raw fields of an observation and
// refreshes the affected result groups.
func (s *Service) UpdateObservationRaw(ctx context.Context, id int64, raw map[string]quantity.Quantity) (domain.Observation, Result, error) {
	ctx, done := s.instrument(ctx, "update_observation")
	var updated domain.Observation
	normalized, err := s.normalize(raw)
	if err != nil {
		done(err)
		return domain.Observation{}, Result{}, err
	}
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateObservation(id, func(o *domain.Observation) error {
			o.Raw = normalized
			o.DerivedAt = nil
			return nil
		})
		if err != nil {
			return err
		}
		updated, err = s.refresh(tx, updated, false)
		return err
	})
	done(err)
	return updated, res, err
}

// SetObservationActive toggles the active flag, moving the observation in or
// out of its result groups.
func (s *Service) SetObservationActive(ctx context.Context, id int64, active bool) (domain.Observation, Result, error) {
	ctx, done := s.instrument(ctx, "set_observation_active")
	var updated domain.Observation
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateObservation(id, func(o *domain.Observation) error {
			o.IsActive = active
			return nil
		})
		if err != nil {
			return err
		}
		updated, err = s.refresh(tx, updated, false)
		return err
	})
	done(err)
	return updated, res, err
}

// DeleteObservation removes a measurement and withdraws it from every result
// group. Group ids are never reused; a group left empty persists.
func (s *Service) DeleteObservation(ctx context.Context, id int64) (Result, error) {
	ctx, done := s.instrument(ctx, "delete_observation")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		obs, ok := tx.FindObservation(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityObservation, ID: id}
		}
		if err := tx.DeleteObservation(id); err != nil {
			return err
		}
		_, err := s.refresh(tx, obs, true)
		return err
	})
	done(err)
	return res, err
}

// SimulateObservation produces a synthetic measurement from instrument
// settings, using the dataset's fitted simulation parameters when their
// quality allows, and feeds it through the same pipeline as real uploads.
func (s *Service) SimulateObservation(ctx context.Context, dataset string, settings simulate.Settings) (domain.Observation, Result, error) {
	ctx, done := s.instrument(ctx, "simulate_observation")
	var created domain.Observation
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var params *domain.SimParams
		if sp, ok := tx.Snapshot().FindSimParams(dataset); ok {
			params = &sp
		}
		sim := simulate.NewSimulator(s.consts, s.simGlobal, s.rng)
		outcome, err := sim.Run(settings, params)
		if err != nil {
			return fmt.Errorf("simulate: %w", err)
		}
		raw := map[string]quantity.Quantity{
			derive.FieldBathTemp:     quantity.New(settings.BathTemp, "K"),
			derive.FieldReactorTemp:  quantity.New(settings.ReactorTemp, "K"),
			derive.FieldCatalystMass: quantity.New(settings.CatalystMass, "kg"),
			derive.FieldFlowRate:     quantity.New(settings.FlowRate, "m^3/s"),
			derive.FieldAreaReactant: quantity.New(outcome.AreaReactant, ""),
			derive.FieldAreaProduct:  quantity.New(outcome.AreaProduct, ""),
		}
		created, err = tx.CreateObservation(domain.Observation{
			Dataset:     dataset,
			IsActive:    true,
			IsSimulated: true,
			Raw:         raw,
		})
		if err != nil {
			return err
		}
		created, err = s.refresh(tx, created, false)
		return err
	})
	done(err)
	return created, res, err
}

// RecomputeAll marks every result group dirty and resweeps the whole store,
// for recovery after constants or code changes.
func (s *Service) RecomputeAll(ctx context.Context) (Result, error) {
	ctx, done := s.instrument(ctx, "recompute_all")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return s.resweepAll(tx)
	})
	done(err)
	return res, err
}

// Observation returns a stored measurement by id.
func (s *Service) Observation(id int64) (domain.Observation, bool) {
	return s.store.GetObservation(id)
}

// Observations lists all stored measurements.
func (s *Service) Observations() []domain.Observation {
	return s.store.ListObservations()
}

// RateGroups lists all rate result groups.
func (s *Service) RateGroups() []domain.RateGroup {
	return s.store.ListRateGroups()
}

// EaGroups lists all activation-energy result groups.
func (s *Service) EaGroups() []domain.EaGroup {
	return s.store.ListEaGroups()
}

// OrderGroups lists all reaction-order result groups.
func (s *Service) OrderGroups() []domain.OrderGroup {
	return s.store.ListOrderGroups()
}

// PooledSamples lists the per-dataset pooled samples.
func (s *Service) PooledSamples() []domain.PooledSample {
	return s.store.ListPooledSamples()
}

// SimParamsFor returns the fitted simulation parameters of a dataset.
func (s *Service) SimParamsFor(ctx context.Context, dataset string) (domain.SimParams, bool) {
	var out domain.SimParams
	found := false
	_ = s.store.View(ctx, func(view TransactionView) error {
		out, found = view.FindSimParams(dataset)
		return nil
	})
	return out, found
}
