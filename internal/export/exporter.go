// Package export renders result groups as CSV and JSON artifacts and stores
// them in a blob store.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"kineticore/internal/blob"
	"kineticore/pkg/domain"
)

// Format identifies an artifact rendering.
type Format string

const (
	// FormatJSON renders the full group document.
	FormatJSON Format = "json"
	// FormatCSV renders the group's aligned member columns.
	FormatCSV Format = "csv"
)

// Source supplies the result groups to export. *core.Service satisfies it.
type Source interface {
	RateGroups() []domain.RateGroup
	EaGroups() []domain.EaGroup
	OrderGroups() []domain.OrderGroup
}

// Exporter writes group artifacts under keys of the form
// datasets/<dataset>/<kind>/<id>.<format>. Re-exporting replaces the
// previous artifact for the same key.
type Exporter struct {
	source Source
	store  blob.Store
}

// New constructs an exporter over source writing to store.
func New(source Source, store blob.Store) *Exporter {
	return &Exporter{source: source, store: store}
}

// groupDocument is the JSON artifact payload.
type groupDocument struct {
	Kind        string            `json:"kind"`
	ID          int64             `json:"id"`
	Dataset     string            `json:"dataset"`
	Key         map[string]any    `json:"key"`
	MemberIDs   []int64           `json:"member_ids"`
	Diagnostic  string            `json:"diagnostic,omitempty"`
	Fit         *domain.FitResult `json:"fit,omitempty"`
	Derived     map[string]any    `json:"derived,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// table is the CSV artifact payload before encoding.
type table struct {
	header []string
	rows   [][]string
}

// ExportDataset renders every result group of the dataset in the requested
// formats (both when none are given) and returns the stored artifacts in key
// order of writing.
func (e *Exporter) ExportDataset(ctx context.Context, dataset string, formats ...Format) ([]blob.Info, error) {
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	var infos []blob.Info
	for _, g := range e.source.RateGroups() {
		if g.Dataset != dataset {
			continue
		}
		stored, err := e.exportGroup(ctx, dataset, "rate", g.ID, rateDocument(g), rateTable(g), formats)
		if err != nil {
			return nil, err
		}
		infos = append(infos, stored...)
	}
	for _, g := range e.source.EaGroups() {
		if g.Dataset != dataset {
			continue
		}
		stored, err := e.exportGroup(ctx, dataset, "activation-energy", g.ID, eaDocument(g), eaTable(g), formats)
		if err != nil {
			return nil, err
		}
		infos = append(infos, stored...)
	}
	for _, g := range e.source.OrderGroups() {
		if g.Dataset != dataset {
			continue
		}
		stored, err := e.exportGroup(ctx, dataset, "reaction-order", g.ID, orderDocument(g), orderTable(g), formats)
		if err != nil {
			return nil, err
		}
		infos = append(infos, stored...)
	}
	return infos, nil
}

// List returns previously exported artifacts for the dataset.
func (e *Exporter) List(ctx context.Context, dataset string) ([]blob.Info, error) {
	return e.store.List(ctx, "datasets/"+dataset+"/")
}

// PresignURL returns a time-limited URL for a stored artifact key.
func (e *Exporter) PresignURL(ctx context.Context, key string) (string, error) {
	return e.store.PresignURL(ctx, key, blob.SignedURLOptions{})
}

func (e *Exporter) exportGroup(ctx context.Context, dataset, kind string, id int64, doc groupDocument, tab table, formats []Format) ([]blob.Info, error) {
	var infos []blob.Info
	for _, format := range formats {
		key := fmt.Sprintf("datasets/%s/%s/%d.%s", dataset, kind, id, format)
		payload, contentType, err := render(format, doc, tab)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", key, err)
		}
		// Put is create-only; drop any previous artifact first so a
		// re-export replaces it.
		if _, err := e.store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("replace %s: %w", key, err)
		}
		info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"dataset": dataset, "kind": kind},
		})
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", key, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func render(format Format, doc groupDocument, tab table) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, "", err
		}
		return payload, "application/json", nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		w := csv.NewWriter(buf)
		if err := w.Write(tab.header); err != nil {
			return nil, "", err
		}
		for _, row := range tab.rows {
			if err := w.Write(row); err != nil {
				return nil, "", err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %s", format)
	}
}

func rateDocument(g domain.RateGroup) groupDocument {
	doc := groupDocument{
		Kind:    "rate",
		ID:      g.ID,
		Dataset: g.Dataset,
		Key: map[string]any{
			"pressure":    g.Pressure,
			"temperature": g.Temperature,
		},
		MemberIDs:   g.MemberIDs,
		Diagnostic:  g.Diagnostic,
		Fit:         g.Fit,
		GeneratedAt: time.Now().UTC(),
	}
	if g.K != nil {
		doc.Derived = map[string]any{"k": *g.K}
	}
	return doc
}

func rateTable(g domain.RateGroup) table {
	t := table{header: []string{"member_id", "tau", "conversion", "active", "simulated"}}
	for i, id := range g.MemberIDs {
		t.rows = append(t.rows, []string{
			strconv.FormatInt(id, 10),
			formatFloat(g.Tau[i]),
			formatFloat(g.Conversion[i]),
			strconv.FormatBool(g.Active[i]),
			strconv.FormatBool(g.Simulated[i]),
		})
	}
	return t
}

func eaDocument(g domain.EaGroup) groupDocument {
	doc := groupDocument{
		Kind:        "activation-energy",
		ID:          g.ID,
		Dataset:     g.Dataset,
		Key:         map[string]any{"pressure": g.Pressure},
		MemberIDs:   g.MemberIDs,
		Diagnostic:  g.Diagnostic,
		Fit:         g.Fit,
		GeneratedAt: time.Now().UTC(),
	}
	derived := map[string]any{}
	if g.ActivationEnergy != nil {
		derived["activation_energy"] = *g.ActivationEnergy
	}
	if g.PreFactor != nil {
		derived["pre_factor"] = *g.PreFactor
	}
	if len(derived) > 0 {
		doc.Derived = derived
	}
	return doc
}

func eaTable(g domain.EaGroup) table {
	t := table{header: []string{"rate_group_id", "temperature", "rate"}}
	for i, id := range g.MemberIDs {
		t.rows = append(t.rows, []string{
			strconv.FormatInt(id, 10),
			formatFloat(g.Temperature[i]),
			formatFloat(g.Rate[i]),
		})
	}
	return t
}

func orderDocument(g domain.OrderGroup) groupDocument {
	doc := groupDocument{
		Kind:        "reaction-order",
		ID:          g.ID,
		Dataset:     g.Dataset,
		Key:         map[string]any{"temperature": g.Temperature},
		MemberIDs:   g.MemberIDs,
		Diagnostic:  g.Diagnostic,
		Fit:         g.Fit,
		GeneratedAt: time.Now().UTC(),
	}
	if g.Order != nil {
		doc.Derived = map[string]any{"order": *g.Order}
	}
	return doc
}

func orderTable(g domain.OrderGroup) table {
	t := table{header: []string{"rate_group_id", "pressure", "rate"}}
	for i, id := range g.MemberIDs {
		t.rows = append(t.rows, []string{
			strconv.FormatInt(id, 10),
			formatFloat(g.Pressure[i]),
			formatFloat(g.Rate[i]),
		})
	}
	return t
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
