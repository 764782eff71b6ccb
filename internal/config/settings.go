package config

import (
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"ldaengine/domain/roster"
	"ldaengine/internal/errors"
)

// ParseSettings reads the task pane settings document. Absent keys keep
// their defaults; outputColumns entries may be plain names or objects.
func ParseSettings(doc []byte) (roster.Settings, error) {
	s := roster.DefaultSettings()
	if len(strings.TrimSpace(string(doc))) == 0 {
		return s, nil
	}
	if !gjson.ValidBytes(doc) {
		return s, errors.InvalidInput("settings are not valid JSON")
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return s, errors.InvalidInput("settings must be a JSON object")
	}

	if v := root.Get("daysOutThreshold"); v.Exists() {
		if v.Type != gjson.Number && !isNumericString(v) {
			return s, errors.InvalidInput("daysOutThreshold must be a number")
		}
		s.DaysOutThreshold = v.Float()
	}
	setBool(root, "includeFailingList", &s.IncludeFailingList)
	setBool(root, "includeEngagementTag", &s.IncludeEngagementTag)
	setBool(root, "includeDncTag", &s.IncludeDncTag)

	if v := root.Get("sheetNamingMode"); v.Exists() {
		switch mode := strings.ToLower(strings.TrimSpace(v.String())); mode {
		case roster.NamingByDate, roster.NamingByCampus:
			s.SheetNamingMode = mode
		default:
			return s, errors.InvalidInput("sheetNamingMode must be \"date\" or \"campus\"")
		}
	}
	setString(root, "campusName", &s.CampusName)
	setString(root, "masterSheet", &s.MasterSheet)
	setString(root, "historySheet", &s.HistorySheet)

	if v := root.Get("outputColumns"); v.IsArray() {
		cols, err := parseColumns(v)
		if err != nil {
			return s, err
		}
		if len(cols) > 0 {
			s.OutputColumns = cols
		}
	}
	if v := root.Get("preserveColumns"); v.IsArray() {
		var out []roster.PreserveColumn
		for _, p := range v.Array() {
			col, ok := parseColumn(p.Get("column"))
			if !ok {
				col, ok = parseColumn(p)
			}
			if !ok {
				return s, errors.InvalidInput("preserveColumns entries need a column name")
			}
			kind := roster.PreserveKind(strings.ToLower(p.Get("kind").String()))
			if kind != roster.PreserveLink {
				kind = roster.PreserveScalar
			}
			out = append(out, roster.PreserveColumn{Column: col, Kind: kind, Label: p.Get("label").String()})
		}
		s.PreserveColumns = out
	}
	return s, nil
}

// LoadSettings reads a settings file; an empty path yields the defaults.
func LoadSettings(path string) (roster.Settings, error) {
	if path == "" {
		return roster.DefaultSettings(), nil
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return roster.Settings{}, errors.Wrapf(err, "failed to read settings %s", path)
	}
	return ParseSettings(doc)
}

// columnsFile is the YAML layout of an output columns file.
type columnsFile struct {
	Columns []roster.ColumnSpec `yaml:"columns"`
}

// LoadColumns reads output column declarations from YAML, either a list or
// a mapping with a "columns" key.
func LoadColumns(path string) ([]roster.ColumnSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read columns file %s", path)
	}
	return ParseColumns(data)
}

// ParseColumns decodes YAML column declarations.
func ParseColumns(data []byte) ([]roster.ColumnSpec, error) {
	var list []roster.ColumnSpec
	if err := yaml.Unmarshal(data, &list); err != nil {
		var file columnsFile
		if ferr := yaml.Unmarshal(data, &file); ferr != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, errors.Wrap(ferr, "invalid columns file"))
		}
		list = file.Columns
	}
	for i, c := range list {
		list[i].Name = strings.TrimSpace(c.Name)
		if list[i].Name == "" {
			return nil, errors.ConfigInvalid("every column needs a name")
		}
	}
	return list, nil
}

func parseColumns(v gjson.Result) ([]roster.ColumnSpec, error) {
	var out []roster.ColumnSpec
	for _, item := range v.Array() {
		col, ok := parseColumn(item)
		if !ok {
			return nil, errors.InvalidInput("outputColumns entries need a name")
		}
		out = append(out, col)
	}
	return out, nil
}

func parseColumn(v gjson.Result) (roster.ColumnSpec, bool) {
	switch {
	case v.Type == gjson.String:
		name := strings.TrimSpace(v.String())
		return withKnownAliases(roster.ColumnSpec{Name: name}), name != ""
	case v.IsObject():
		name := strings.TrimSpace(v.Get("name").String())
		if name == "" {
			return roster.ColumnSpec{}, false
		}
		spec := roster.ColumnSpec{
			Name:   name,
			Hidden: v.Get("hidden").Bool(),
			Static: v.Get("static").Bool(),
		}
		for _, a := range v.Get("aliases").Array() {
			if alias := strings.TrimSpace(a.String()); alias != "" {
				spec.Aliases = append(spec.Aliases, alias)
			}
		}
		return withKnownAliases(spec), true
	}
	return roster.ColumnSpec{}, false
}

// withKnownAliases lets a bare "Outreach" or "Days Out" entry keep the
// aliases and static flag of the engine's logical column.
func withKnownAliases(spec roster.ColumnSpec) roster.ColumnSpec {
	for _, k := range []roster.ColumnSpec{
		roster.StudentNameColumn,
		roster.StudentIDColumn,
		roster.DaysOutColumn,
		roster.GradeColumn,
		roster.OutreachColumn,
	} {
		if !strings.EqualFold(spec.Name, k.Name) {
			continue
		}
		if len(spec.Aliases) == 0 {
			spec.Aliases = append([]string(nil), k.Aliases...)
		}
		spec.Static = spec.Static || k.Static
		break
	}
	return spec
}

func setBool(root gjson.Result, key string, dst *bool) {
	if v := root.Get(key); v.Exists() {
		*dst = v.Bool()
	}
}

func setString(root gjson.Result, key string, dst *string) {
	if v := root.Get(key); v.Exists() {
		*dst = strings.TrimSpace(v.String())
	}
}

func isNumericString(v gjson.Result) bool {
	if v.Type != gjson.String {
		return false
	}
	_, ok := roster.Number(v.String())
	return ok
}

// LoadBaseSettings combines the settings file with the columns file, which
// replaces the output columns when set.
func LoadBaseSettings(paths PathConfig) (roster.Settings, error) {
	s, err := LoadSettings(paths.SettingsFile)
	if err != nil {
		return s, err
	}
	if paths.ColumnsFile != "" {
		cols, err := LoadColumns(paths.ColumnsFile)
		if err != nil {
			return s, err
		}
		if len(cols) > 0 {
			s.OutputColumns = cols
		}
	}
	return s, nil
}
