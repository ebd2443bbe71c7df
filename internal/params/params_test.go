package params

import (
	"errors"
	"reflect"
	"testing"
)

func TestMigrateV0(t *testing.T) {
	got := Migrate(map[string]any{"run": "", "sql": "SELECT * FROM input"})
	want := map[string]any{"sql": "SELECT * FROM input"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Migrate() = %#v, want %#v", got, want)
	}
}

func TestMigrateV1IsUnchanged(t *testing.T) {
	in := map[string]any{"sql": "SELECT * FROM input"}
	got := Migrate(in)
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("Migrate() = %#v", got)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	once := Migrate(map[string]any{"run": true, "sql": "SELECT 1", "note": "x"})
	twice := Migrate(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("Migrate(Migrate()) = %#v, want %#v", twice, once)
	}
	if once["note"] != "x" {
		t.Fatalf("unrelated key dropped: %#v", once)
	}
}

func TestMigrateDoesNotMutateInput(t *testing.T) {
	in := map[string]any{"run": "", "sql": "SELECT 1"}
	_ = Migrate(in)
	if _, ok := in["run"]; !ok {
		t.Fatal("input map was mutated")
	}
}

func TestVersion(t *testing.T) {
	if Version(map[string]any{"run": ""}) != 0 {
		t.Fatal("expected version 0")
	}
	if Version(map[string]any{"sql": ""}) != 1 {
		t.Fatal("expected version 1")
	}
}

func TestFromMap(t *testing.T) {
	p, err := FromMap(map[string]any{"sql": "SELECT 1"})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}
	if p.SQL != "SELECT 1" {
		t.Fatalf("SQL = %q", p.SQL)
	}

	p, err = FromMap(map[string]any{})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}
	if p.SQL != "" {
		t.Fatalf("SQL = %q", p.SQL)
	}

	_, err = FromMap(map[string]any{"sql": 12})
	if !errors.Is(err, ErrInvalidSQLType) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidSQLType)
	}
}

func TestDecodeMigratesFirst(t *testing.T) {
	p, err := Decode(map[string]any{"run": "", "sql": "SELECT 2"})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.SQL != "SELECT 2" {
		t.Fatalf("SQL = %q", p.SQL)
	}
}
