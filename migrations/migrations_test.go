package migrations

import "testing"

func TestNamesAreOrdered(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) != 3 || names[0] != "001_init.sql" || names[1] != "002_ledger.sql" || names[2] != "003_catalog.sql" {
		t.Fatalf("unexpected migrations %v", names)
	}
}
