package domain

import (
	"slices"
	"testing"
	"time"
)

func TestStep(t *testing.T) {
	steps := Steps()
	if len(steps) != StepCount {
		t.Fatalf("expected %d steps, got %d", StepCount, len(steps))
	}

	names := []string{"Connect Database", "Upload File", "Select Table", "Map Columns", "Import"}
	for i, s := range steps {
		if int(s) != i {
			t.Errorf("step %d has index %d", i, s)
		}
		if s.String() != names[i] {
			t.Errorf("step %d name = %q, want %q", i, s, names[i])
		}
		if s.Description() == "" {
			t.Errorf("step %d has no description", i)
		}
	}

	if Step(5).IsValid() || Step(-1).IsValid() {
		t.Error("out of range steps should be invalid")
	}
	if Step(7).String() != "Unknown" || Step(7).Description() != "" {
		t.Error("invalid step should render as Unknown")
	}
}

func TestImportState(t *testing.T) {
	tests := []struct {
		in       string
		want     ImportState
		terminal bool
	}{
		{"pending", ImportStatePending, false},
		{"processing", ImportStateProcessing, false},
		{"completed", ImportStateCompleted, true},
		{"failed", ImportStateFailed, true},
		{"cancelled", ImportStateCancelled, true},
		{"queued", ImportStatePending, false},
		{"", ImportStatePending, false},
	}

	for _, tt := range tests {
		got := ParseImportState(tt.in)
		if got != tt.want {
			t.Errorf("ParseImportState(%q) = %s, want %s", tt.in, got, tt.want)
		}
		if got.IsTerminal() != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v", got, got.IsTerminal())
		}
	}
}

func TestImportStatus(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewPendingStatus("job-1", 40, start)

	if s.State != ImportStatePending || s.TotalRows != 40 || s.IsFinished() {
		t.Fatalf("pending status = %+v", s)
	}
	if s.Duration() != 0 {
		t.Errorf("unfinished Duration = %v", s.Duration())
	}

	done := start.Add(90 * time.Second)
	s.State = ImportStateCompleted
	s.CompletedAt = &done

	if !s.IsFinished() || s.Duration() != 90*time.Second {
		t.Errorf("finished status: %v %v", s.IsFinished(), s.Duration())
	}

	c := s.Clone()
	*c.CompletedAt = start
	if !s.CompletedAt.Equal(done) {
		t.Error("Clone shares CompletedAt")
	}

	var nilStatus *ImportStatus
	if nilStatus.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestColumnMapping(t *testing.T) {
	m := ColumnMapping{"b": "y", "a": "x", "c": "", "d": "x"}

	if got := m.Keys(); !slices.Equal(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("Keys = %v", got)
	}
	if got := m.Targets(); !slices.Equal(got, []string{"x", "x", "y"}) {
		t.Errorf("Targets = %v", got)
	}

	clean := m.WithoutEmpty()
	if _, ok := clean["c"]; ok || len(clean) != 3 {
		t.Errorf("WithoutEmpty = %v", clean)
	}
	if _, ok := m["c"]; !ok {
		t.Error("WithoutEmpty modified the receiver")
	}

	c := m.Clone()
	c["a"] = "z"
	if m["a"] != "x" {
		t.Error("Clone shares storage")
	}

	var empty ColumnMapping
	if empty.Clone() == nil {
		t.Error("Clone of nil mapping should be empty, not nil")
	}
}

func TestUploadedFile_Copies(t *testing.T) {
	cols := []string{"Email", "Name"}
	preview := []Row{{"Email": "a@x.io", "Name": "Ann"}}

	f := NewUploadedFile("f-1", "users.csv", 120, "text/csv", 1, cols, preview)

	cols[0] = "changed"
	preview[0]["Email"] = "changed"
	if f.Columns()[0] != "Email" || f.Preview()[0]["Email"] != "a@x.io" {
		t.Error("constructor should copy its arguments")
	}

	f.Columns()[1] = "changed"
	f.Preview()[0]["Name"] = "changed"
	if f.Columns()[1] != "Name" || f.Preview()[0]["Name"] != "Ann" {
		t.Error("accessors should return copies")
	}
}

func TestIfExists(t *testing.T) {
	for _, v := range []IfExists{IfExistsFail, IfExistsReplace, IfExistsAppend} {
		if !v.IsValid() {
			t.Errorf("%s should be valid", v)
		}
	}
	if IfExists("merge").IsValid() {
		t.Error("merge should be invalid")
	}

	opts := DefaultImportOptions()
	if opts.IfExists != IfExistsAppend || opts.BatchSize != 1000 {
		t.Errorf("DefaultImportOptions = %+v", opts)
	}
}

func TestTableSchema(t *testing.T) {
	s := &TableSchema{Table: "users", Columns: []TableColumn{{Name: "id"}, {Name: "email"}}}

	if got := s.Names(); !slices.Equal(got, []string{"id", "email"}) {
		t.Errorf("Names = %v", got)
	}

	c := s.Clone()
	c.Columns[0].Name = "changed"
	if s.Columns[0].Name != "id" {
		t.Error("Clone shares columns")
	}

	var nilSchema *TableSchema
	if nilSchema.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestNewConnection(t *testing.T) {
	creds := ConnectionCredentials{Host: "db", Port: 5433, Database: "crm", Username: "u", Password: "p"}
	c := NewConnection("conn-1", creds)

	if c.ID != "conn-1" || c.Host != "db" || c.Port != 5433 || !c.Connected {
		t.Errorf("connection = %+v", c)
	}
}
