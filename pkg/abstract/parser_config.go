package abstract

import (
	"maps"
	"regexp"

	"go.ytsaurus.tech/library/go/core/xerrors"
)

type ParserKind string

const (
	ParserKindDefault   ParserKind = "Default"
	ParserKindDelimited ParserKind = "Delimited"
	ParserKindRegex     ParserKind = "Regex"
	ParserKindJSON      ParserKind = "JSON"
)

type AppliesTo string

const (
	AppliesToAll           AppliesTo = "All"
	AppliesToAllowFiltered AppliesTo = "AllowFiltered"
	AppliesToNone          AppliesTo = "None"
)

type ParseFieldErrorHandling string

const (
	// SkipEntry drops the whole entry when any field fails.
	SkipEntry ParseFieldErrorHandling = "SkipEntry"
	// SkipField omits the failed field and keeps the entry; a warning is logged.
	SkipField ParseFieldErrorHandling = "SkipField"
	// SkipFieldIgnoreError omits the failed field silently.
	SkipFieldIgnoreError ParseFieldErrorHandling = "SkipFieldIgnoreError"
	// Redeliver fails the entry and leaves the message for transport redelivery.
	Redeliver ParseFieldErrorHandling = "Redeliver"
)

type DataType string

const (
	DataTypeString  DataType = "String"
	DataTypeInteger DataType = "Integer"
	DataTypeLong    DataType = "Long"
	DataTypeDouble  DataType = "Double"
	DataTypeBoolean DataType = "Boolean"
	DataTypeDate    DataType = "Date"
)

// Well known parser and field properties.
const (
	PropertyDelimiter         = "delimiter"
	PropertyPattern           = "pattern"
	PropertyDatePattern       = "datePattern"
	PropertyDateFormat        = "dateFormat"
	PropertyDateTimezone      = "dateTimezone"
	PropertyLongNumberPattern = "longNumberPattern"

	FieldPropertyPosition     = "position"
	FieldPropertyGroup        = "group"
	FieldPropertyJSONKey      = "jsonKey"
	FieldPropertyNumberFormat = "numberFormat"
	FieldPropertyDateFormat   = "dateFormat"
	FieldPropertyDateTimezone = "dateTimezone"
	FieldPropertyTruePattern  = "truePattern"
	FieldPropertyDefaultValue = "defaultValue"
	FieldPropertyKeyword      = "keyword"
)

// RepositoryParserConfig is one parsing strategy of a repository.
type RepositoryParserConfig struct {
	Name                    string                  `yaml:"name"`
	AppliesTo               AppliesTo               `yaml:"applies_to"`
	AppliesToSourceFilter   string                  `yaml:"applies_to_source_filter"`
	AppliesToHostFilter     string                  `yaml:"applies_to_host_filter"`
	Kind                    ParserKind              `yaml:"kind"`
	MaxKeywords             int                     `yaml:"max_keywords"`
	ParseFieldErrorHandling ParseFieldErrorHandling `yaml:"parse_field_error_handling"`
	Properties              map[string]string       `yaml:"properties"`
	Fields                  []RepositoryFieldConfig `yaml:"fields"`
}

func (c *RepositoryParserConfig) WithDefaults() {
	if c.AppliesTo == "" {
		c.AppliesTo = AppliesToAll
	}
	if c.Kind == "" {
		c.Kind = ParserKindDefault
	}
	if c.ParseFieldErrorHandling == "" {
		c.ParseFieldErrorHandling = SkipEntry
	}
	for i := range c.Fields {
		c.Fields[i].WithDefaults()
	}
}

func (c *RepositoryParserConfig) Validate() error {
	if c.Name == "" {
		return xerrors.New("parser name is empty")
	}
	switch c.Kind {
	case ParserKindDefault, ParserKindDelimited, ParserKindRegex, ParserKindJSON:
	default:
		return xerrors.Errorf("parser %s: unknown kind %q", c.Name, c.Kind)
	}
	switch c.AppliesTo {
	case AppliesToAll, AppliesToAllowFiltered, AppliesToNone:
	default:
		return xerrors.Errorf("parser %s: unknown applies to %q", c.Name, c.AppliesTo)
	}
	switch c.ParseFieldErrorHandling {
	case SkipEntry, SkipField, SkipFieldIgnoreError, Redeliver:
	default:
		return xerrors.Errorf("parser %s: unknown field error handling %q", c.Name, c.ParseFieldErrorHandling)
	}
	for _, filter := range []string{c.AppliesToSourceFilter, c.AppliesToHostFilter} {
		if filter == "" {
			continue
		}
		if _, err := regexp.Compile(filter); err != nil {
			return xerrors.Errorf("parser %s: invalid filter %q: %w", c.Name, filter, err)
		}
	}
	seen := map[string]bool{}
	for _, f := range c.Fields {
		if f.Name == "" {
			return xerrors.Errorf("parser %s: field name is empty", c.Name)
		}
		if seen[f.Name] {
			return xerrors.Errorf("parser %s: duplicate field %q", c.Name, f.Name)
		}
		seen[f.Name] = true
		switch f.DataType {
		case DataTypeString, DataTypeInteger, DataTypeLong, DataTypeDouble, DataTypeBoolean, DataTypeDate:
		default:
			return xerrors.Errorf("parser %s: field %s has unknown data type %q", c.Name, f.Name, f.DataType)
		}
	}
	return nil
}

func (c *RepositoryParserConfig) Property(key string) string {
	return c.Properties[key]
}

func (c RepositoryParserConfig) copy() RepositoryParserConfig {
	c.Properties = maps.Clone(c.Properties)
	fields := make([]RepositoryFieldConfig, len(c.Fields))
	for i, f := range c.Fields {
		f.Properties = maps.Clone(f.Properties)
		fields[i] = f
	}
	c.Fields = fields
	return c
}

// RepositoryFieldConfig is one extracted, typed field of a parser.
type RepositoryFieldConfig struct {
	Name        string            `yaml:"name"`
	DisplayName string            `yaml:"display_name"`
	Description string            `yaml:"description"`
	DataType    DataType          `yaml:"data_type"`
	Properties  map[string]string `yaml:"properties"`
}

func (c *RepositoryFieldConfig) WithDefaults() {
	if c.DataType == "" {
		c.DataType = DataTypeString
	}
	if c.DisplayName == "" {
		c.DisplayName = c.Name
	}
}

func (c *RepositoryFieldConfig) Property(key string) (string, bool) {
	v, ok := c.Properties[key]
	return v, ok
}
