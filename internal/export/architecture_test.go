package export

import (
	"testing"

	"kineticore/testutil"
)

// The exporter consumes the Source interface; it must not bind to the
// service layer or to a concrete persistence backend.
func TestExporterImportsStayBounded(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.CoreImportForbidden,
		"export depends on the Source interface, not the service")
	testutil.AssertNoDirectImports(t, ".", testutil.PersistenceInfraImportForbidden,
		"export stores artifacts through blob.Store only")
}
