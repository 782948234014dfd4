package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/c2h5oh/datasize"

	"github.com/shaiso/Importer/internal/domain"
)

// --- Connection Tests ---

func validCredentials() domain.ConnectionCredentials {
	return domain.ConnectionCredentials{
		Host:     "localhost",
		Port:     5432,
		Database: "analytics",
		Username: "loader",
		Password: "secret",
	}
}

func TestConnection_Valid(t *testing.T) {
	if err := Connection(validCredentials()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConnection_ReportsAllFields(t *testing.T) {
	creds := domain.ConnectionCredentials{
		Host:     "",
		Port:     70000,
		Database: "",
		Username: "ok",
		Password: "",
	}

	err := Connection(creds)
	if err == nil {
		t.Fatal("expected error")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}

	if len(vErr.Fields) != 4 {
		t.Fatalf("expected 4 field errors, got %d: %v", len(vErr.Fields), vErr.Fields)
	}

	expected := map[string]string{
		"host":     "Host is required",
		"port":     "Port must be between 1 and 65535",
		"database": "Database name is required",
		"password": "Password is required",
	}
	for field, msg := range expected {
		got, ok := vErr.FieldError(field)
		if !ok {
			t.Errorf("missing error for field %s", field)
			continue
		}
		if got != msg {
			t.Errorf("field %s: expected %q, got %q", field, msg, got)
		}
	}
	if _, ok := vErr.FieldError("username"); ok {
		t.Error("username should be valid")
	}
}

func TestConnection_BlankIsRequired(t *testing.T) {
	creds := validCredentials()
	creds.Host = "   "
	creds.Username = "\t"

	err := Connection(creds)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(vErr.Fields) != 2 {
		t.Errorf("expected 2 field errors, got %v", vErr.Fields)
	}
}

func TestConnection_PortBounds(t *testing.T) {
	tests := []struct {
		port  int
		valid bool
	}{
		{0, false},
		{1, true},
		{5432, true},
		{65535, true},
		{65536, false},
		{-1, false},
	}

	for _, tt := range tests {
		creds := validCredentials()
		creds.Port = tt.port

		err := Connection(creds)
		if tt.valid && err != nil {
			t.Errorf("port %d: unexpected error: %v", tt.port, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("port %d: expected error", tt.port)
		}
	}
}

// --- File Tests ---

func TestFile_RejectsOversizedRegardlessOfExtension(t *testing.T) {
	size := int64((101 * datasize.MB).Bytes())

	for _, name := range []string{"data.csv", "data.xlsx", "data.exe"} {
		err := File(FileInfo{Name: name, Size: size, MIMEType: "text/csv"})
		if err == nil {
			t.Errorf("%s: expected size error", name)
			continue
		}
		if !strings.Contains(err.Error(), "100MB") {
			t.Errorf("%s: expected size message, got %q", name, err.Error())
		}
	}
}

func TestFile_AcceptsCSVWithEmptyMIME(t *testing.T) {
	size := int64((10 * datasize.MB).Bytes())

	if err := File(FileInfo{Name: "data.csv", Size: size}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFile_Extension(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"report.CSV", true},
		{"report.Xlsx", true},
		{"legacy.xls", true},
		{"archive.tar.csv", true},
		{"report.csv.txt", false},
		{"report.json", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		err := File(FileInfo{Name: tt.name, Size: 10})
		if tt.valid && err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestFile_MIMEType(t *testing.T) {
	err := File(FileInfo{Name: "data.csv", Size: 10, MIMEType: "application/json"})
	if err == nil || err.Error() != "Invalid file MIME type" {
		t.Errorf("expected MIME error, got %v", err)
	}

	for _, mime := range AllowedMIMETypes {
		if err := File(FileInfo{Name: "data.xlsx", Size: 10, MIMEType: mime}); err != nil {
			t.Errorf("%s: unexpected error: %v", mime, err)
		}
	}
}

func TestFile_SizeCheckedBeforeExtension(t *testing.T) {
	err := File(FileInfo{Name: "data.exe", Size: int64((200 * datasize.MB).Bytes()), MIMEType: "bad/type"})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !strings.HasPrefix(vErr.Message, "File size exceeds") {
		t.Errorf("expected size error first, got %q", vErr.Message)
	}
}

// --- ColumnMapping Tests ---

func TestColumnMapping_Empty(t *testing.T) {
	err := ColumnMapping(domain.ColumnMapping{}, []string{"a"}, []string{"a"})
	if err == nil {
		t.Fatal("expected error for empty mapping")
	}
	if err.Error() != "At least one column mapping is required" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestColumnMapping_SingleValidPair(t *testing.T) {
	mapping := domain.ColumnMapping{"email": "email_address"}

	err := ColumnMapping(mapping, []string{"email", "name"}, []string{"id", "email_address"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestColumnMapping_UnknownFileColumn(t *testing.T) {
	mapping := domain.ColumnMapping{"ghost": "id"}

	err := ColumnMapping(mapping, []string{"email"}, []string{"id"})
	if err == nil || err.Error() != `File column "ghost" does not exist` {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestColumnMapping_UnknownTableColumn(t *testing.T) {
	mapping := domain.ColumnMapping{"email": "mail"}

	err := ColumnMapping(mapping, []string{"email"}, []string{"id"})
	if err == nil || err.Error() != `Database column "mail" does not exist` {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestColumnMapping_EmptyTargetAllowed(t *testing.T) {
	mapping := domain.ColumnMapping{"email": ""}

	if err := ColumnMapping(mapping, []string{"email"}, []string{"id"}); err != nil {
		t.Errorf("empty target should be accepted, got %v", err)
	}
}

func TestColumnMapping_DuplicateTargetsNotRejected(t *testing.T) {
	mapping := domain.ColumnMapping{"a": "id", "b": "id"}

	if err := ColumnMapping(mapping, []string{"a", "b"}, []string{"id"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	dups := DuplicateTargets(mapping)
	if len(dups) != 1 || dups[0] != "id" {
		t.Errorf("expected [id], got %v", dups)
	}
}

// --- ImportOptions Tests ---

func TestImportOptions(t *testing.T) {
	if err := ImportOptions(domain.DefaultImportOptions()); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
	if err := ImportOptions(domain.ImportOptions{IfExists: "merge", BatchSize: 10}); err == nil {
		t.Error("expected error for unknown if_exists")
	}
	if err := ImportOptions(domain.ImportOptions{IfExists: domain.IfExistsFail, BatchSize: 0}); err == nil {
		t.Error("expected error for zero batch size")
	}
}

func TestUniqueTargets(t *testing.T) {
	if err := UniqueTargets(domain.ColumnMapping{"a": "id", "b": "name", "c": ""}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := UniqueTargets(domain.ColumnMapping{"a": "name", "b": "name", "c": "id", "d": "id"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Message != `Database column "id" is mapped more than once` {
		t.Errorf("Message = %q", vErr.Message)
	}
}

func TestTableName(t *testing.T) {
	if err := TableName("users"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, name := range []string{"", "   "} {
		if err := TableName(name); err == nil {
			t.Errorf("TableName(%q) should fail", name)
		}
	}
}
