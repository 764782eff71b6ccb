package roster

// Sheet naming modes.
const (
	NamingByDate   = "date"
	NamingByCampus = "campus"
)

// Default sheet names.
const (
	DefaultMasterSheet  = "Master List"
	DefaultHistorySheet = "Student History"
)

// PreserveKind tells how a preserved field is carried forward.
type PreserveKind string

const (
	PreserveLink   PreserveKind = "link"
	PreserveScalar PreserveKind = "scalar"
)

// PreserveColumn declares a field carried from an existing row into its
// replacement during a merge.
type PreserveColumn struct {
	Column ColumnSpec   `json:"column" yaml:"column"`
	Kind   PreserveKind `json:"kind" yaml:"kind"`
	// Label is shown for a link whose formula has no parsable display text.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Settings is the inbound settings object supplied by the task pane.
type Settings struct {
	DaysOutThreshold     float64          `json:"daysOutThreshold"`
	IncludeFailingList   bool             `json:"includeFailingList"`
	IncludeEngagementTag bool             `json:"includeEngagementTag"`
	IncludeDncTag        bool             `json:"includeDncTag"`
	SheetNamingMode      string           `json:"sheetNamingMode"`
	CampusName           string           `json:"campusName,omitempty"`
	OutputColumns        []ColumnSpec     `json:"outputColumns"`
	PreserveColumns      []PreserveColumn `json:"preserveColumns,omitempty"`
	MasterSheet          string           `json:"masterSheet,omitempty"`
	HistorySheet         string           `json:"historySheet,omitempty"`
}

// DefaultPreserveColumns carries the gradebook link and the assignee.
func DefaultPreserveColumns() []PreserveColumn {
	return []PreserveColumn{
		{Column: ColumnSpec{Name: "Gradebook", Aliases: []string{"Grade Book", "GradeBook Link"}}, Kind: PreserveLink, Label: "Gradebook"},
		{Column: ColumnSpec{Name: "Assigned", Aliases: []string{"Assigned To", "Advisor"}}, Kind: PreserveScalar},
	}
}

// DefaultSettings mirrors the task pane defaults.
func DefaultSettings() Settings {
	return Settings{
		DaysOutThreshold:     5,
		IncludeFailingList:   false,
		IncludeEngagementTag: true,
		IncludeDncTag:        true,
		SheetNamingMode:      NamingByDate,
		OutputColumns:        DefaultOutputColumns(),
		PreserveColumns:      DefaultPreserveColumns(),
		MasterSheet:          DefaultMasterSheet,
		HistorySheet:         DefaultHistorySheet,
	}
}

// MasterSheetName returns the configured Master List sheet.
func (s Settings) MasterSheetName() string {
	if s.MasterSheet == "" {
		return DefaultMasterSheet
	}
	return s.MasterSheet
}

// HistorySheetName returns the configured history log sheet.
func (s Settings) HistorySheetName() string {
	if s.HistorySheet == "" {
		return DefaultHistorySheet
	}
	return s.HistorySheet
}

// Logical columns the engine looks up regardless of the output layout.
var (
	StudentNameColumn = ColumnSpec{Name: "Student Name", Aliases: []string{"StudentName", "Name", "Student"}}
	StudentIDColumn   = ColumnSpec{Name: "Student ID", Aliases: []string{"Student Number", "StudentNumber", "SyStudentId", "ID"}}
	DaysOutColumn     = ColumnSpec{Name: "Days Out", Aliases: []string{"DaysOut", "Days Since Last Attendance", "Days Since LDA"}}
	GradeColumn       = ColumnSpec{Name: "Grade", Aliases: []string{"Course Grade", "Current Grade", "Grade %"}}
	OutreachColumn    = ColumnSpec{Name: "Outreach", Aliases: []string{"Outreach Notes", "Notes"}, Static: true}
	HistoryTagColumn  = ColumnSpec{Name: "Tag", Aliases: []string{"Tags", "Comment Tag"}}
)

// DefaultOutputColumns is the LDA layout used when none is configured.
func DefaultOutputColumns() []ColumnSpec {
	return []ColumnSpec{
		StudentNameColumn,
		StudentIDColumn,
		DaysOutColumn,
		GradeColumn,
		{Name: "Last LDA", Aliases: []string{"LDA", "Last Date of Attendance"}},
		{Name: "Phone", Aliases: []string{"Primary Phone", "Phone Number"}},
		{Name: "Email", Aliases: []string{"Student Email", "Personal Email"}},
		{Name: "Gradebook", Aliases: []string{"Grade Book"}},
		{Name: "Assigned", Aliases: []string{"Assigned To", "Advisor"}},
		OutreachColumn,
	}
}
