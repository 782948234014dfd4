package mapping

import (
	"maps"
	"strings"
	"testing"

	"github.com/shaiso/Importer/internal/domain"
)

func schemaOf(names ...string) *domain.TableSchema {
	s := &domain.TableSchema{Table: "users"}
	for _, n := range names {
		s.Columns = append(s.Columns, domain.TableColumn{Name: n, Type: "TEXT", Nullable: true})
	}
	return s
}

func TestAutoMap_CaseInsensitive(t *testing.T) {
	m := AutoMap([]string{"Email", "NAME", "age"}, schemaOf("id", "email", "name"))

	if len(m) != 2 {
		t.Fatalf("expected 2 pairs, got %v", m)
	}
	if m["Email"] != "email" {
		t.Errorf("expected Email → email, got %q", m["Email"])
	}
	if m["NAME"] != "name" {
		t.Errorf("expected NAME → name, got %q", m["NAME"])
	}
	if _, ok := m["age"]; ok {
		t.Error("age should stay unmapped")
	}
}

func TestAutoMap_NoPartialMatches(t *testing.T) {
	m := AutoMap([]string{"user_email", "mail"}, schemaOf("email"))

	if len(m) != 0 {
		t.Errorf("expected no pairs, got %v", m)
	}
}

func TestAutoMap_FirstInSchemaOrderWins(t *testing.T) {
	m := AutoMap([]string{"code"}, schemaOf("Code", "CODE", "code"))

	if m["code"] != "Code" {
		t.Errorf("expected first schema column Code, got %q", m["code"])
	}
}

func TestAutoMap_Deterministic(t *testing.T) {
	files := []string{"A", "b", "C", "d"}
	schema := schemaOf("a", "B", "x", "D")

	first := AutoMap(files, schema)
	second := AutoMap(files, schema)

	if !maps.Equal(first, second) {
		t.Errorf("results differ: %v vs %v", first, second)
	}
}

func TestAutoMap_OnlyEqualNames(t *testing.T) {
	files := []string{"Id", "eMail", "created", "Name "}
	m := AutoMap(files, schemaOf("id", "email", "created_at", "name"))

	for fileCol, tableCol := range m {
		if !strings.EqualFold(fileCol, tableCol) {
			t.Errorf("%q mapped to non-equal %q", fileCol, tableCol)
		}
	}
	if _, ok := m["Name "]; ok {
		t.Error("names are not trimmed before matching")
	}
}

func TestAutoMap_NilSchema(t *testing.T) {
	m := AutoMap([]string{"a"}, nil)
	if m == nil || len(m) != 0 {
		t.Errorf("expected empty mapping, got %v", m)
	}
}

func TestUnmapped(t *testing.T) {
	m := domain.ColumnMapping{"a": "x", "b": ""}

	got := Unmapped([]string{"a", "b", "c"}, m)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("expected [b c], got %v", got)
	}
}
