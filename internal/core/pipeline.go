package core

import (
	"time"

	"kineticore/internal/results"
	"kineticore/internal/simulate"
	"kineticore/pkg/domain"
)

// refresh propagates one observation change through the incremental
// pipeline: derivation, rate group membership, regression sweeps, the
// chained activation-energy and reaction-order families, and the pooled
// simulation sample. It runs inside the caller's transaction so a blocked
// commit rolls the whole cascade back.
func (s *Service) refresh(tx Transaction, obs domain.Observation, deleted bool) (domain.Observation, error) {
	if !deleted && obs.NeedsDerivation() {
		updated, err := tx.UpdateObservation(obs.ID, func(o *domain.Observation) error {
			s.flow.Derive(o, time.Now().UTC())
			return nil
		})
		if err != nil {
			return obs, err
		}
		obs = updated
	}

	snap := tx.Snapshot()

	rateGroups := snap.ListRateGroups()
	results.UpsertRateMembership(&rateGroups, obs, deleted)
	swept := s.runner.SweepRateGroups(rateGroups)
	if err := persistRateGroups(tx, snap, rateGroups); err != nil {
		return obs, err
	}

	// only rate groups whose fit changed this pass can move within the
	// chained families
	if len(swept) > 0 {
		byID := make(map[int64]domain.RateGroup, len(rateGroups))
		for _, g := range rateGroups {
			byID[g.ID] = g
		}
		eaGroups := snap.ListEaGroups()
		orderGroups := snap.ListOrderGroups()
		for _, id := range swept {
			rg, ok := byID[id]
			if !ok {
				continue
			}
			results.UpsertEaMembership(&eaGroups, rg)
			results.UpsertOrderMembership(&orderGroups, rg)
		}
		s.runner.SweepEaGroups(eaGroups)
		s.runner.SweepOrderGroups(orderGroups)
		if err := persistEaGroups(tx, snap, eaGroups); err != nil {
			return obs, err
		}
		if err := persistOrderGroups(tx, snap, orderGroups); err != nil {
			return obs, err
		}
	}

	pools := snap.ListPooledSamples()
	results.UpsertPooledMembership(&pools, obs, deleted)
	if err := persistPools(tx, snap, pools); err != nil {
		return obs, err
	}
	if err := s.refitSimParams(tx, snap, pools, obs.Dataset); err != nil {
		return obs, err
	}
	return obs, nil
}

// resweepAll marks every group dirty, refits everything, and rebuilds the
// chained families from scratch.
func (s *Service) resweepAll(tx Transaction) error {
	snap := tx.Snapshot()

	rateGroups := snap.ListRateGroups()
	for i := range rateGroups {
		rateGroups[i].MarkDirty()
	}
	swept := s.runner.SweepRateGroups(rateGroups)
	if err := persistRateGroups(tx, snap, rateGroups); err != nil {
		return err
	}

	byID := make(map[int64]domain.RateGroup, len(rateGroups))
	for _, g := range rateGroups {
		byID[g.ID] = g
	}
	eaGroups := snap.ListEaGroups()
	orderGroups := snap.ListOrderGroups()
	for _, id := range swept {
		rg, ok := byID[id]
		if !ok {
			continue
		}
		results.UpsertEaMembership(&eaGroups, rg)
		results.UpsertOrderMembership(&orderGroups, rg)
	}
	for i := range eaGroups {
		eaGroups[i].MarkDirty()
	}
	for i := range orderGroups {
		orderGroups[i].MarkDirty()
	}
	s.runner.SweepEaGroups(eaGroups)
	s.runner.SweepOrderGroups(orderGroups)
	if err := persistEaGroups(tx, snap, eaGroups); err != nil {
		return err
	}
	if err := persistOrderGroups(tx, snap, orderGroups); err != nil {
		return err
	}

	pools := snap.ListPooledSamples()
	for _, pool := range pools {
		if err := s.refitSimParams(tx, snap, pools, pool.Dataset); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) refitSimParams(tx Transaction, snap TransactionView, pools []domain.PooledSample, dataset string) error {
	for _, pool := range pools {
		if pool.Dataset != dataset {
			continue
		}
		current, found := snap.FindSimParams(dataset)
		simulate.Refit(s.consts, s.simGlobal, pool, &current)
		if found {
			_, err := tx.UpdateSimParams(current.ID, func(dst *domain.SimParams) error {
				*dst = current
				return nil
			})
			return err
		}
		_, err := tx.CreateSimParams(current)
		return err
	}
	return nil
}

func persistRateGroups(tx Transaction, snap TransactionView, groups []domain.RateGroup) error {
	for i := range groups {
		g := groups[i]
		if _, ok := snap.FindRateGroup(g.ID); ok {
			if _, err := tx.UpdateRateGroup(g.ID, func(dst *domain.RateGroup) error {
				*dst = g
				return nil
			}); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.CreateRateGroup(g); err != nil {
			return err
		}
	}
	return nil
}

func persistEaGroups(tx Transaction, snap TransactionView, groups []domain.EaGroup) error {
	for i := range groups {
		g := groups[i]
		if _, ok := snap.FindEaGroup(g.ID); ok {
			if _, err := tx.UpdateEaGroup(g.ID, func(dst *domain.EaGroup) error {
				*dst = g
				return nil
			}); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.CreateEaGroup(g); err != nil {
			return err
		}
	}
	return nil
}

func persistOrderGroups(tx Transaction, snap TransactionView, groups []domain.OrderGroup) error {
	for i := range groups {
		g := groups[i]
		if _, ok := snap.FindOrderGroup(g.ID); ok {
			if _, err := tx.UpdateOrderGroup(g.ID, func(dst *domain.OrderGroup) error {
				*dst = g
				return nil
			}); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.CreateOrderGroup(g); err != nil {
			return err
		}
	}
	return nil
}

func persistPools(tx Transaction, snap TransactionView, pools []domain.PooledSample) error {
	for i := range pools {
		p := pools[i]
		if _, ok := snap.FindPooledSample(p.Dataset); ok {
			if _, err := tx.UpdatePooledSample(p.ID, func(dst *domain.PooledSample) error {
				*dst = p
				return nil
			}); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.CreatePooledSample(p); err != nil {
			return err
		}
	}
	return nil
}
