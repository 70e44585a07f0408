package results

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"kineticore/internal/derive"
	"kineticore/pkg/domain"
	"kineticore/pkg/quantity"
)

func qptr(v float64, unit string) *quantity.Quantity {
	q := quantity.New(v, unit)
	return &q
}

func flowObs(id int64, pressure, temperature, tau, conversion float64) domain.Observation {
	return domain.Observation{
		Base:     domain.Base{ID: id},
		Dataset:  "grp-7",
		IsActive: true,
		Raw: map[string]quantity.Quantity{
			derive.FieldReactorTemp:  quantity.New(temperature, "K"),
			derive.FieldAreaReactant: quantity.New(1000, ""),
		},
		Derived: domain.Derived{
			PartialPressure: qptr(pressure, "Pa"),
			SpaceTime:       qptr(tau, "kg*s/mol"),
			Conversion:      qptr(conversion, ""),
		},
	}
}

func TestRateMembershipCreatesAndJoinsGroups(t *testing.T) {
	var groups []domain.RateGroup

	a := flowObs(1, 1e5, 300, 1.0, 0.01)
	if !UpsertRateMembership(&groups, a, false) {
		t.Fatalf("inserting A must touch the family")
	}
	if len(groups) != 1 || groups[0].ID != 1 {
		t.Fatalf("first group id = %v", groups)
	}

	b := flowObs(2, 2e5, 300, 1.0, 0.02)
	UpsertRateMembership(&groups, b, false)
	if len(groups) != 2 || groups[1].ID != 2 {
		t.Fatalf("different key must create group 2, got %v", groups)
	}

	c := flowObs(3, 1e5, 300, 1.5, 0.015)
	UpsertRateMembership(&groups, c, false)
	if len(groups) != 2 {
		t.Fatalf("matching key must join the existing group")
	}
	if len(groups[0].MemberIDs) != 2 || groups[0].MemberIDs[1] != 3 {
		t.Fatalf("group 1 members = %v", groups[0].MemberIDs)
	}
}

func TestRateMembershipExclusivity(t *testing.T) {
	var groups []domain.RateGroup
	UpsertRateMembership(&groups, flowObs(1, 1e5, 300, 1.0, 0.01), false)
	UpsertRateMembership(&groups, flowObs(2, 2e5, 300, 1.0, 0.02), false)

	// editing observation 1 onto the other key moves it between groups
	moved := flowObs(1, 2e5, 300, 1.2, 0.025)
	UpsertRateMembership(&groups, moved, false)

	count := 0
	for _, g := range groups {
		if g.Contains(1) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("observation 1 appears in %d groups, want 1", count)
	}
	if groups[0].Contains(1) {
		t.Fatalf("observation 1 must have left its old group")
	}
	if !groups[0].IsDirty() {
		t.Fatalf("abandoned group must be dirty")
	}
}

func TestRateMembershipGates(t *testing.T) {
	var groups []domain.RateGroup

	inactive := flowObs(1, 1e5, 300, 1.0, 0.01)
	inactive.IsActive = false
	UpsertRateMembership(&groups, inactive, false)
	if len(groups) != 0 {
		t.Fatalf("inactive observation must stay un-grouped")
	}

	underived := flowObs(2, 1e5, 300, 1.0, 0.01)
	underived.Derived.SpaceTime = nil
	UpsertRateMembership(&groups, underived, false)
	if len(groups) != 0 {
		t.Fatalf("underived observation must stay un-grouped")
	}

	UpsertRateMembership(&groups, flowObs(3, 1e5, 300, 1.0, 0.01), true)
	if len(groups) != 0 {
		t.Fatalf("deletion must never insert")
	}
}

func TestRateMembershipIdempotentRemoval(t *testing.T) {
	var groups []domain.RateGroup
	UpsertRateMembership(&groups, flowObs(1, 1e5, 300, 1.0, 0.01), false)
	groups[0].ClearDirty()

	if UpsertRateMembership(&groups, flowObs(99, 1e5, 300, 1.0, 0.01), true) {
		t.Fatalf("removing an absent id must be a no-op")
	}
	if groups[0].IsDirty() {
		t.Fatalf("no-op removal must not dirty any group")
	}
}

func TestGroupIDsNeverReused(t *testing.T) {
	var groups []domain.RateGroup
	UpsertRateMembership(&groups, flowObs(1, 1e5, 300, 1.0, 0.01), false)
	UpsertRateMembership(&groups, flowObs(2, 2e5, 300, 1.0, 0.02), false)

	// empty group 1 but keep the record, then add a new key
	UpsertRateMembership(&groups, flowObs(1, 1e5, 300, 1.0, 0.01), true)
	if len(groups[0].MemberIDs) != 0 {
		t.Fatalf("group 1 should be empty")
	}
	UpsertRateMembership(&groups, flowObs(3, 3e5, 300, 1.0, 0.03), false)
	if groups[2].ID != 3 {
		t.Fatalf("new group id = %d, want 3", groups[2].ID)
	}
	if len(groups) != 3 {
		t.Fatalf("emptied groups must persist, have %d", len(groups))
	}
}

func TestTierPolicy(t *testing.T) {
	runner := NewRunner(derive.DefaultConstants())

	mkGroup := func(taus []float64) []domain.RateGroup {
		g := domain.RateGroup{
			GroupMeta:   domain.GroupMeta{Base: domain.Base{ID: 1}, Dataset: "grp-7"},
			Pressure:    quantity.New(1e5, "Pa"),
			Temperature: quantity.New(300, "K"),
		}
		for i, tau := range taus {
			g.Append(int64(i+1), tau, 0.01*tau, true, false)
		}
		g.MarkDirty()
		return []domain.RateGroup{g}
	}

	t.Run("one distinct", func(t *testing.T) {
		groups := mkGroup([]float64{2, 2})
		runner.SweepRateGroups(groups)
		g := groups[0]
		if g.Fit != nil || g.K != nil {
			t.Fatalf("one distinct tau must not produce a fit")
		}
		if g.Diagnostic == "" || !strings.Contains(g.Diagnostic, "one distinct") {
			t.Fatalf("diagnostic = %q", g.Diagnostic)
		}
		if g.IsDirty() {
			t.Fatalf("sweep must clear the dirty flag")
		}
	})

	t.Run("two distinct", func(t *testing.T) {
		groups := mkGroup([]float64{2, 4})
		runner.SweepRateGroups(groups)
		g := groups[0]
		if g.Fit == nil || g.K == nil {
			t.Fatalf("two distinct taus must fit")
		}
		if !strings.Contains(g.Diagnostic, "estimate") {
			t.Fatalf("diagnostic = %q, want estimate warning", g.Diagnostic)
		}
	})

	t.Run("five distinct", func(t *testing.T) {
		groups := mkGroup([]float64{1, 2, 3, 4, 5})
		runner.SweepRateGroups(groups)
		g := groups[0]
		if g.Fit == nil || g.K == nil {
			t.Fatalf("five distinct taus must fit")
		}
		if g.Diagnostic != "" {
			t.Fatalf("diagnostic = %q, want empty", g.Diagnostic)
		}
		if math.Abs(g.K.Value-0.01) > 1e-9 {
			t.Fatalf("k = %g, want 0.01", g.K.Value)
		}
	})

	t.Run("zero members", func(t *testing.T) {
		groups := mkGroup(nil)
		runner.SweepRateGroups(groups)
		g := groups[0]
		if g.Fit != nil || g.K != nil || g.Diagnostic != "" {
			t.Fatalf("empty group must clear silently: %+v", g)
		}
		if g.IsDirty() {
			t.Fatalf("sweep must clear the dirty flag")
		}
	})
}

func TestSweepRateGroupsSkipsClean(t *testing.T) {
	runner := NewRunner(derive.DefaultConstants())
	g := domain.RateGroup{GroupMeta: domain.GroupMeta{Base: domain.Base{ID: 4}, Dataset: "grp-7"}}
	g.Append(1, 1, 0.01, true, false)
	g.ClearDirty()
	swept := runner.SweepRateGroups([]domain.RateGroup{g})
	if len(swept) != 0 {
		t.Fatalf("clean groups must not be swept, got %v", swept)
	}
}

func TestRateFitCurveAndSeries(t *testing.T) {
	runner := NewRunner(derive.DefaultConstants())
	g := domain.RateGroup{
		GroupMeta:   domain.GroupMeta{Base: domain.Base{ID: 1}, Dataset: "grp-7"},
		Pressure:    quantity.New(1e5, "Pa"),
		Temperature: quantity.New(300, "K"),
	}
	g.Append(1, 1, 0.03, true, false)
	g.Append(2, 2, 0.06, true, false)
	g.Append(3, 3, 0.09, true, true)
	groups := []domain.RateGroup{g}
	runner.SweepRateGroups(groups)

	fit := groups[0].Fit
	if fit == nil {
		t.Fatalf("expected a fit")
	}
	var exp, sim, curve *domain.PlotSeries
	for i := range fit.Series {
		switch fit.Series[i].Label {
		case "Exp":
			exp = &fit.Series[i]
		case "Sim":
			sim = &fit.Series[i]
		case "Fit":
			curve = &fit.Series[i]
		}
	}
	if exp == nil || sim == nil || curve == nil {
		t.Fatalf("series labels missing: %+v", fit.Series)
	}
	// two experimental points plus the synthetic origin
	if len(exp.X) != 3 || len(sim.X) != 1 {
		t.Fatalf("series split wrong: exp %d sim %d", len(exp.X), len(sim.X))
	}
	if len(curve.X) != fitCurvePoints {
		t.Fatalf("curve has %d points", len(curve.X))
	}
	// padded range: data spans 0..3 including the origin, so the curve
	// must extend past both ends
	if curve.X[0] > 0 || curve.X[len(curve.X)-1] < 3 {
		t.Fatalf("curve range [%g, %g] does not cover the data", curve.X[0], curve.X[len(curve.X)-1])
	}
	k, ok := fit.Coefficient("k")
	if !ok || math.Abs(k.Value-0.03) > 1e-9 {
		t.Fatalf("k = %+v", k)
	}
}

func TestEaMembershipGating(t *testing.T) {
	var eaGroups []domain.EaGroup
	rg := domain.RateGroup{
		GroupMeta:   domain.GroupMeta{Base: domain.Base{ID: 1}, Dataset: "grp-7"},
		Pressure:    quantity.New(1e5, "Pa"),
		Temperature: quantity.New(523.15, "K"),
	}

	// no fitted rate constant: stays out
	UpsertEaMembership(&eaGroups, rg)
	if len(eaGroups) != 0 {
		t.Fatalf("rate group without a fit must not join")
	}

	// estimate-quality fit: still out
	k := quantity.NewWithUncertainty(0.034, 0.002, "mol/(kg*s)")
	rg.K = &k
	rg.Diagnostic = "The calculated rate is only an estimate."
	UpsertEaMembership(&eaGroups, rg)
	if len(eaGroups) != 0 {
		t.Fatalf("estimate-quality rate must not join")
	}

	// clean fit: joins, keyed by pressure, member id is the rate group id
	rg.Diagnostic = ""
	UpsertEaMembership(&eaGroups, rg)
	if len(eaGroups) != 1 || !eaGroups[0].Contains(1) {
		t.Fatalf("clean rate group must join: %+v", eaGroups)
	}
	if eaGroups[0].Temperature[0] != 523.15 || eaGroups[0].Rate[0] != 0.034 {
		t.Fatalf("member columns wrong: %+v", eaGroups[0])
	}

	// losing the fit removes the member again
	rg.K = nil
	UpsertEaMembership(&eaGroups, rg)
	if eaGroups[0].Contains(1) {
		t.Fatalf("rate group losing its fit must leave the family")
	}
}

func TestEaSweepRecoversActivationEnergy(t *testing.T) {
	consts := derive.DefaultConstants()
	runner := NewRunner(consts)

	// synthetic Arrhenius data: k = exp(20 - Ea/(R*T))
	eaTrue := 80000.0
	g := domain.EaGroup{
		GroupMeta: domain.GroupMeta{Base: domain.Base{ID: 1}, Dataset: "grp-7"},
		Pressure:  quantity.New(1e5, "Pa"),
	}
	for i, temp := range []float64{500, 520, 540, 560} {
		k := math.Exp(20 - eaTrue/(consts.GasConstant*temp))
		g.Append(int64(i+1), temp, k)
	}
	groups := []domain.EaGroup{g}
	runner.SweepEaGroups(groups)

	got := groups[0]
	if got.ActivationEnergy == nil || got.PreFactor == nil || got.Fit == nil {
		t.Fatalf("expected a clean fit: %+v", got)
	}
	if math.Abs(got.ActivationEnergy.Value-eaTrue) > 1 {
		t.Fatalf("Ea = %g, want %g", got.ActivationEnergy.Value, eaTrue)
	}
	if math.Abs(got.PreFactor.Value-20) > 1e-6 {
		t.Fatalf("A_app = %g, want 20", got.PreFactor.Value)
	}
	if got.Diagnostic != "" {
		t.Fatalf("diagnostic = %q", got.Diagnostic)
	}
}

func TestOrderSweepRecoversReactionOrder(t *testing.T) {
	runner := NewRunner(derive.DefaultConstants())

	// synthetic power law: k = 0.02 * (p/1e5)^1.5
	g := domain.OrderGroup{
		GroupMeta:   domain.GroupMeta{Base: domain.Base{ID: 1}, Dataset: "grp-7"},
		Temperature: quantity.New(523.15, "K"),
	}
	for i, p := range []float64{0.5e5, 1e5, 1.5e5, 2e5} {
		k := 0.02 * math.Pow(p/1e5, 1.5)
		g.Append(int64(i+1), p, k)
	}
	groups := []domain.OrderGroup{g}
	runner.SweepOrderGroups(groups)

	got := groups[0]
	if got.Order == nil || got.Fit == nil {
		t.Fatalf("expected a clean fit: %+v", got)
	}
	if math.Abs(got.Order.Value-1.5) > 1e-9 {
		t.Fatalf("order = %g, want 1.5", got.Order.Value)
	}
}

func TestPooledMembership(t *testing.T) {
	var pools []domain.PooledSample

	for id := int64(1); id <= 3; id++ {
		obs := flowObs(id, float64(id)*1e5, 500+float64(id)*10, float64(id), 0.01*float64(id))
		UpsertPooledMembership(&pools, obs, false)
	}
	if len(pools) != 1 {
		t.Fatalf("one pool per dataset, got %d", len(pools))
	}
	if len(pools[0].MemberIDs) != 3 {
		t.Fatalf("pool members = %v", pools[0].MemberIDs)
	}

	// deactivation removes from the pool
	off := flowObs(2, 2e5, 520, 2, 0.02)
	off.IsActive = false
	UpsertPooledMembership(&pools, off, false)
	if pools[0].Contains(2) {
		t.Fatalf("inactive observation must leave the pool")
	}
	if len(pools[0].Tau) != len(pools[0].MemberIDs) {
		t.Fatalf("pool columns misaligned")
	}
}

func TestColumnAlignmentAfterEventStream(t *testing.T) {
	var groups []domain.RateGroup
	// a churn of creates, edits, deletes across two keys
	for i := 0; i < 20; i++ {
		id := int64(i%7 + 1)
		pressure := 1e5
		if i%3 == 0 {
			pressure = 2e5
		}
		obs := flowObs(id, pressure, 300, float64(i+1), 0.01*float64(i+1))
		UpsertRateMembership(&groups, obs, i%5 == 4)
	}
	for _, g := range groups {
		n := len(g.MemberIDs)
		if len(g.Tau) != n || len(g.Conversion) != n || len(g.Active) != n || len(g.Simulated) != n {
			t.Fatalf("group %d columns misaligned: %+v", g.ID, g)
		}
	}
	// exclusivity across the family
	seen := map[int64]int{}
	for _, g := range groups {
		for _, id := range g.MemberIDs {
			seen[id]++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Fatalf(fmt.Sprintf("observation %d in %d groups", id, n))
		}
	}
}
