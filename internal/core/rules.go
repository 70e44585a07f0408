package core

import (
	"context"
	"fmt"

	"kineticore/pkg/domain"
	"kineticore/pkg/schema"
)

// schemaRule blocks observation writes whose raw fields do not satisfy the
// active dataset schema.
type schemaRule struct {
	schema *schema.Schema
}

// NewSchemaRule constructs a rule validating observation raw fields against
// the supplied schema.
func NewSchemaRule(s *schema.Schema) domain.Rule {
	return schemaRule{schema: s}
}

func (schemaRule) Name() string { return "observation-schema" }

func (r schemaRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	if r.schema == nil {
		return res, nil
	}
	for _, change := range changes {
		if change.Entity != domain.EntityObservation || change.Action == domain.ActionDelete {
			continue
		}
		obs, ok := change.After.(domain.Observation)
		if !ok {
			continue
		}
		if err := r.schema.Validate(obs.Raw); err != nil {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "observation-schema",
				Severity: domain.SeverityBlock,
				Message:  err.Error(),
				Entity:   domain.EntityObservation,
				EntityID: obs.ID,
			})
		}
	}
	return res, nil
}

// finiteRawRule blocks observations carrying non-finite raw magnitudes,
// which would poison every regression downstream.
type finiteRawRule struct{}

// NewFiniteRawRule constructs the finite-magnitude guard.
func NewFiniteRawRule() domain.Rule { return finiteRawRule{} }

func (finiteRawRule) Name() string { return "observation-finite-raw" }

func (finiteRawRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityObservation || change.Action == domain.ActionDelete {
			continue
		}
		obs, ok := change.After.(domain.Observation)
		if !ok {
			continue
		}
		for field, q := range obs.Raw {
			if !q.IsFinite() {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "observation-finite-raw",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("field %s is not finite", field),
					Entity:   domain.EntityObservation,
					EntityID: obs.ID,
				})
			}
		}
	}
	return res, nil
}
