package parsers

import (
	"regexp"
	"strconv"
	"time"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/parsers/fields"
	"github.com/valyala/fastjson"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

const defaultLongNumberPattern = `NumberLong\((-?\d+)\)`

// jsonExtractor reads mapped fields by key and infers typed fields from every other top level property.
// mapped holds the json keys and the names of configured fields; neither is inferred.
type jsonExtractor struct {
	keys       []string
	mapped     map[string]bool
	datePat    *regexp.Regexp
	dateLayout string
	dateLoc    *time.Location
	longPat    *regexp.Regexp
	pool       fastjson.ParserPool
}

func newJSON(cfg *abstract.RepositoryParserConfig) (extractor, error) {
	j := &jsonExtractor{mapped: map[string]bool{}}
	for _, field := range cfg.Fields {
		key, ok := field.Property(abstract.FieldPropertyJSONKey)
		if !ok || key == "" {
			key = field.Name
		}
		j.keys = append(j.keys, key)
		j.mapped[key] = true
		j.mapped[field.Name] = true
	}

	if pattern := cfg.Property(abstract.PropertyDatePattern); pattern != "" {
		re, err := regexp.Compile(`^(?:` + pattern + `)$`)
		if err != nil {
			return nil, xerrors.Errorf("invalid %s %q: %w", abstract.PropertyDatePattern, pattern, err)
		}
		format := cfg.Property(abstract.PropertyDateFormat)
		if format == "" {
			return nil, xerrors.Errorf("%s requires the %s property", abstract.PropertyDatePattern, abstract.PropertyDateFormat)
		}
		layout, loc, err := fields.DateLayout(format, cfg.Property(abstract.PropertyDateTimezone))
		if err != nil {
			return nil, err
		}
		j.datePat, j.dateLayout, j.dateLoc = re, layout, loc
	}

	longPattern := cfg.Property(abstract.PropertyLongNumberPattern)
	if longPattern == "" {
		longPattern = defaultLongNumberPattern
	}
	re, err := regexp.Compile(`^(?:` + longPattern + `)$`)
	if err != nil {
		return nil, xerrors.Errorf("invalid %s %q: %w", abstract.PropertyLongNumberPattern, longPattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, xerrors.Errorf("%s %q must capture the number in a group", abstract.PropertyLongNumberPattern, longPattern)
	}
	j.longPat = re
	return j, nil
}

func (j *jsonExtractor) extract(body string) ([]*string, []error, []abstract.Field, error) {
	p := j.pool.Get()
	defer j.pool.Put(p)

	doc, err := p.Parse(body)
	if err != nil {
		return nil, nil, nil, xerrors.Errorf("message is not valid JSON: %w", err)
	}
	obj, err := doc.Object()
	if err != nil {
		return nil, nil, nil, xerrors.New("message is not a JSON object")
	}

	values := make([]*string, len(j.keys))
	for i, key := range j.keys {
		values[i] = rawValue(obj.Get(key))
	}

	var inferred []abstract.Field
	var inferErr error
	seen := map[string]bool{}
	obj.Visit(func(key []byte, v *fastjson.Value) {
		name := string(key)
		if j.mapped[name] || seen[name] || inferErr != nil {
			return
		}
		seen[name] = true
		field, ok, err := j.infer(name, v)
		if err != nil {
			inferErr = xerrors.Errorf("property %s: %w", name, err)
			return
		}
		if ok {
			inferred = append(inferred, field)
		}
	})
	if inferErr != nil {
		return nil, nil, nil, inferErr
	}
	return values, nil, inferred, nil
}

// rawValue is the text a field parser sees for a JSON value: strings unquoted, null as absent.
func rawValue(v *fastjson.Value) *string {
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil
	}
	var s string
	if v.Type() == fastjson.TypeString {
		s = string(v.GetStringBytes())
	} else {
		s = v.String()
	}
	return &s
}

func (j *jsonExtractor) infer(name string, v *fastjson.Value) (abstract.Field, bool, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return abstract.Field{}, false, nil
	case fastjson.TypeTrue, fastjson.TypeFalse:
		return abstract.Field{Name: name, Type: abstract.DataTypeBoolean, Value: v.Type() == fastjson.TypeTrue}, true, nil
	case fastjson.TypeNumber:
		return inferNumber(name, v.String())
	case fastjson.TypeString:
		s := string(v.GetStringBytes())
		if j.datePat != nil && j.datePat.MatchString(s) {
			t, err := time.ParseInLocation(j.dateLayout, s, j.dateLoc)
			if err != nil {
				return abstract.Field{}, false, err
			}
			return abstract.Field{Name: name, Type: abstract.DataTypeDate, Value: t.UTC()}, true, nil
		}
		if m := j.longPat.FindStringSubmatch(s); m != nil {
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return abstract.Field{}, false, err
			}
			return abstract.Field{Name: name, Type: abstract.DataTypeLong, Value: n}, true, nil
		}
		return abstract.Field{Name: name, Type: abstract.DataTypeString, Value: s}, true, nil
	default:
		return abstract.Field{Name: name, Type: abstract.DataTypeString, Value: v.String()}, true, nil
	}
}

func inferNumber(name, literal string) (abstract.Field, bool, error) {
	if n, err := strconv.ParseInt(literal, 10, 64); err == nil {
		if n >= -1<<31 && n < 1<<31 {
			return abstract.Field{Name: name, Type: abstract.DataTypeInteger, Value: int32(n)}, true, nil
		}
		return abstract.Field{Name: name, Type: abstract.DataTypeLong, Value: n}, true, nil
	}
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return abstract.Field{}, false, err
	}
	return abstract.Field{Name: name, Type: abstract.DataTypeDouble, Value: f}, true, nil
}
