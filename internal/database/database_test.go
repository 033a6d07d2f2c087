package database

import "testing"

func TestOpenDeviceSchema(t *testing.T) {
	db, err := Open(":memory:", SchemaDevice)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO kv_entries (key, value) VALUES ('a', 'b')`); err != nil {
		t.Fatalf("insert kv entry: %v", err)
	}
	var v string
	if err := db.QueryRow(`SELECT value FROM kv_entries WHERE key = 'a'`).Scan(&v); err != nil {
		t.Fatalf("select kv entry: %v", err)
	}
	if v != "b" {
		t.Errorf("value = %q, want %q", v, "b")
	}
}

func TestOpenTwinSchema(t *testing.T) {
	db, err := Open(":memory:", SchemaTwin)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "point_transactions", "scan_history", "user_preferences", "favorite_teams"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenUnknownSchema(t *testing.T) {
	if _, err := Open(":memory:", Schema("bogus")); err == nil {
		t.Fatal("expected error for unknown schema")
	}
}
