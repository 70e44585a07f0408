// Package testutil provides reusable testing helpers for enforcing
// architectural boundary invariants across the repository.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// AssertNoDirectImports scans all non-test .go files in dir (typically "."
// from within the package) and fails if any import path satisfies the
// forbidden predicate. The reason string is appended to the failure. Build
// tags are not followed.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(viols) > 0 {
		t.Fatalf("forbidden direct imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

// InternalImportForbidden matches any import path under internal/. Packages
// in pkg/ are the exported surface and must not reach back into internal/.
func InternalImportForbidden(path string) bool {
	return strings.HasPrefix(path, "kineticore/internal/")
}

// PersistenceInfraImportForbidden matches imports of the concrete persistence
// backends. Everything outside the storage selection layer depends on the
// domain.PersistentStore contract instead.
func PersistenceInfraImportForbidden(path string) bool {
	return strings.HasPrefix(path, "kineticore/internal/infra/persistence/")
}

// CoreImportForbidden matches imports of the service layer, keeping leaf
// packages below it.
func CoreImportForbidden(path string) bool {
	return path == "kineticore/internal/core" || strings.HasPrefix(path, "kineticore/internal/core/")
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		fileAst, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range fileAst.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}
