package query

import (
	"testing"

	"github.com/selectsql/selectsql/internal/message"
)

func TestValidateColumnsNoResultSet(t *testing.T) {
	got := validateColumns(nil)
	if got == nil || got.Kind != message.KindCommentedQuery {
		t.Fatalf("validateColumns(nil) = %#v", got)
	}
}

func TestValidateColumnsReportsFirstDuplicate(t *testing.T) {
	got := validateColumns([]ColumnDesc{{Name: "a"}, {Name: "b"}, {Name: "b"}, {Name: "a"}})
	if got == nil {
		t.Fatal("expected duplicate message")
	}
	if got.Kind != message.KindDuplicateColumnName || got.Params["colname"] != "b" {
		t.Fatalf("validateColumns() = %#v", got)
	}
}

func TestValidateColumnsIsCaseSensitive(t *testing.T) {
	if got := validateColumns([]ColumnDesc{{Name: "a"}, {Name: "A"}}); got != nil {
		t.Fatalf("validateColumns() = %#v, want nil", got)
	}
}
