package filemeta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestInspect_CSV(t *testing.T) {
	path := writeFile(t, "Users.CSV", "email,name,age\na@x.io,Ann,31\nb@x.io,Bob\nc@x.io,Cid,22\n")

	info, err := Inspect(path, 2)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if info.Name != "Users.CSV" || info.Extension != ".csv" {
		t.Errorf("name/ext = %q/%q", info.Name, info.Extension)
	}
	if info.MIMEType != "text/csv" {
		t.Errorf("MIMEType = %q", info.MIMEType)
	}
	if !info.Parsed || len(info.Columns) != 3 || info.Columns[2] != "age" {
		t.Errorf("columns = %v (parsed=%v)", info.Columns, info.Parsed)
	}
	if info.RowCount != 3 {
		t.Errorf("RowCount = %d", info.RowCount)
	}
	if len(info.Preview) != 2 {
		t.Fatalf("preview rows = %d", len(info.Preview))
	}
	if info.Preview[1]["age"] != "" {
		t.Errorf("short row should be padded, got %v", info.Preview[1])
	}
	if info.Size == 0 || info.HumanSize() == "" {
		t.Error("size should be set")
	}
}

func TestInspect_EmptyCSV(t *testing.T) {
	path := writeFile(t, "empty.csv", "")

	info, err := Inspect(path, 0)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(info.Columns) != 0 || info.RowCount != 0 {
		t.Errorf("info = %+v", info)
	}
}

func TestInspect_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Email", "Name"},
		{"a@x.io", "Ann"},
		{"b@x.io", "Bob"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "users.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	info, err := Inspect(path, 0)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if info.MIMEType != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("MIMEType = %q", info.MIMEType)
	}
	if len(info.Columns) != 2 || info.Columns[0] != "Email" {
		t.Errorf("columns = %v", info.Columns)
	}
	if info.RowCount != 2 || info.Preview[1]["Name"] != "Bob" {
		t.Errorf("rows = %d, preview = %v", info.RowCount, info.Preview)
	}
}

func TestInspect_UnknownExtension(t *testing.T) {
	path := writeFile(t, "notes", "hello")

	info, err := Inspect(path, 0)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Extension != "" || info.MIMEType != "" || info.Parsed {
		t.Errorf("info = %+v", info)
	}
	if info.Detected == "" {
		t.Error("content type should be detected")
	}
}

func TestInspect_Missing(t *testing.T) {
	if _, err := Inspect(filepath.Join(t.TempDir(), "nope.csv"), 0); err == nil {
		t.Error("expected error for missing file")
	}
}
