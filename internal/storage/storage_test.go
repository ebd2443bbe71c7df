package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"/tables/a.parquet":    "tables/a.parquet",
		" tables//b.parquet ": "tables/b.parquet",
		"x/../y.parquet":       "y.parquet",
	}
	for in, want := range cases {
		got, err := CleanKey(in)
		if err != nil {
			t.Fatalf("CleanKey(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("CleanKey(%q) = %q, want %q", in, got, want)
		}
	}
	for _, in := range []string{"", "/", "..", "../secrets.txt", "a/../../b"} {
		if _, err := CleanKey(in); err == nil {
			t.Fatalf("CleanKey(%q) expected error", in)
		}
	}
}

func TestResultKey(t *testing.T) {
	got, err := ResultKey("steps/42/input.parquet")
	if err != nil {
		t.Fatalf("ResultKey() error = %v", err)
	}
	if got != "steps/42/input.result.parquet" {
		t.Fatalf("ResultKey() = %q", got)
	}
	got, err = ResultKey("raw")
	if err != nil {
		t.Fatalf("ResultKey() error = %v", err)
	}
	if got != "raw.result.parquet" {
		t.Fatalf("ResultKey() = %q", got)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	info, err := store.Put(ctx, "/a/b.parquet", bytes.NewBufferString("abc"), 3, PutOptions{ContentType: ParquetContentType})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Key != "a/b.parquet" || info.Size != 3 || info.ETag == "" {
		t.Fatalf("Put() info = %#v", info)
	}

	data, err := ReadAll(ctx, store, "a/b.parquet")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("ReadAll() = %q", data)
	}

	if _, err := store.Stat(ctx, "missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v, want ErrObjectNotFound", err)
	}
	if _, err := ReadAll(ctx, store, "missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("ReadAll() error = %v, want ErrObjectNotFound", err)
	}
}
