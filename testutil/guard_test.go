package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n\nimport (\n\t\"fmt\"\n\t\"kineticore/internal/infra/persistence/sqlite\"\n)\n\nvar _ = fmt.Sprint\n")
	writeFile(t, dir, "a_test.go", "package a\n\nimport _ \"kineticore/internal/infra/persistence/postgres\"\n")

	viols, err := directImportViolations(dir, PersistenceInfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "sqlite") || !strings.Contains(viols[0], "a.go") {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestDirectImportViolationsCleanDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.go", "package b\n\nimport \"strings\"\n\nvar _ = strings.TrimSpace\n")
	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil || len(viols) != 0 {
		t.Fatalf("scan: %v %v", err, viols)
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		pred func(string) bool
		path string
		want bool
	}{
		{InternalImportForbidden, "kineticore/internal/core", true},
		{InternalImportForbidden, "kineticore/pkg/domain", false},
		{PersistenceInfraImportForbidden, "kineticore/internal/infra/persistence/memory", true},
		{PersistenceInfraImportForbidden, "kineticore/internal/blob", false},
		{CoreImportForbidden, "kineticore/internal/core", true},
		{CoreImportForbidden, "kineticore/internal/results", false},
	}
	for _, c := range cases {
		if got := c.pred(c.path); got != c.want {
			t.Fatalf("predicate(%s) = %v, want %v", c.path, got, c.want)
		}
	}
}
