package domain

// Step — шаг мастера импорта.
//
// Шаги идут строго по порядку:
//
//	Connect → Upload → SelectTable → MapColumns → Import
type Step int

const (
	StepConnect Step = iota
	StepUpload
	StepSelectTable
	StepMapColumns
	StepImport
)

// StepCount — количество шагов мастера.
const StepCount = 5

var stepInfo = [StepCount]struct {
	name        string
	description string
}{
	{"Connect Database", "Configure database connection"},
	{"Upload File", "Upload CSV or Excel file"},
	{"Select Table", "Choose target table"},
	{"Map Columns", "Map file columns to database columns"},
	{"Import", "Start data import"},
}

// IsValid проверяет, что шаг в диапазоне 0..4.
func (s Step) IsValid() bool {
	return s >= StepConnect && s <= StepImport
}

// String возвращает отображаемое имя шага.
func (s Step) String() string {
	if !s.IsValid() {
		return "Unknown"
	}
	return stepInfo[s].name
}

// Description возвращает описание шага.
func (s Step) Description() string {
	if !s.IsValid() {
		return ""
	}
	return stepInfo[s].description
}

// Steps возвращает все шаги по порядку.
func Steps() []Step {
	return []Step{StepConnect, StepUpload, StepSelectTable, StepMapColumns, StepImport}
}
