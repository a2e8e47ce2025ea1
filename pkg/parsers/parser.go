package parsers

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"github.com/lightningdb/chililog/pkg/parsers/fields"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// EntryParser turns one raw message into a repository entry.
// Instances keep the last error and are not safe for concurrent use: every storage worker builds its own.
type EntryParser interface {
	Parse(meta abstract.EntryMetadata, body string) (*abstract.RepositoryEntry, error)
	// LastParseError is the error of the latest Parse call, nil if it succeeded.
	LastParseError() error
	Config() *abstract.RepositoryParserConfig
}

// EntryParseError reports a message that cannot be turned into an entry.
type EntryParseError struct {
	Repository string
	Parser     string
	Err        error
}

func (e *EntryParseError) Error() string {
	return fmt.Sprintf("repository %s, parser %s: %v", e.Repository, e.Parser, e.Err)
}

func (e *EntryParseError) Unwrap() error {
	return e.Err
}

func (e *EntryParseError) Code() coded.Code {
	return codes.EntryParse
}

// extractor is the kind specific part of an entry parser. It returns one raw value per configured
// field (nil when the value is absent), a per-field extraction error, and any fields it inferred itself.
type extractor interface {
	extract(body string) (values []*string, errs []error, inferred []abstract.Field, err error)
}

type entryParser struct {
	repository  string
	cfg         abstract.RepositoryParserConfig
	fields      []fields.Parser
	keywords    []bool
	maxKeywords int
	extractor   extractor
	logger      log.Logger
	lastErr     error
	now         func() time.Time
}

// New builds the entry parser for one parser config of repo.
func New(repo *abstract.RepositoryConfig, cfg abstract.RepositoryParserConfig, logger log.Logger) (EntryParser, error) {
	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, coded.Wrap(codes.RepositoryConfig, err)
	}
	p := &entryParser{
		repository:  repo.Name,
		cfg:         cfg,
		maxKeywords: cfg.MaxKeywords,
		logger:      logger,
		now:         time.Now,
	}
	if p.maxKeywords == 0 {
		p.maxKeywords = repo.StorageMaxKeywords
	}
	for _, fieldCfg := range cfg.Fields {
		if cfg.Kind == abstract.ParserKindDefault {
			break
		}
		fp, err := fields.New(fieldCfg)
		if err != nil {
			return nil, coded.Errorf(codes.RepositoryConfig, "parser %s: %w", cfg.Name, err)
		}
		p.fields = append(p.fields, fp)
		p.keywords = append(p.keywords, fieldCfg.DataType == abstract.DataTypeString && fieldCfg.Properties[abstract.FieldPropertyKeyword] == "true")
	}

	var err error
	switch cfg.Kind {
	case abstract.ParserKindDefault:
		p.extractor = passThrough{}
	case abstract.ParserKindDelimited:
		p.extractor, err = newDelimited(&cfg)
	case abstract.ParserKindRegex:
		p.extractor, err = newRegex(&cfg)
	case abstract.ParserKindJSON:
		p.extractor, err = newJSON(&cfg)
	default:
		err = xerrors.Errorf("unknown parser kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, coded.Errorf(codes.RepositoryConfig, "parser %s: %w", cfg.Name, err)
	}
	return p, nil
}

func (p *entryParser) Config() *abstract.RepositoryParserConfig {
	return &p.cfg
}

func (p *entryParser) LastParseError() error {
	return p.lastErr
}

func (p *entryParser) Parse(meta abstract.EntryMetadata, body string) (*abstract.RepositoryEntry, error) {
	entry, err := p.parse(meta, body)
	if err != nil {
		p.lastErr = &EntryParseError{Repository: p.repository, Parser: p.cfg.Name, Err: err}
		return nil, p.lastErr
	}
	p.lastErr = nil
	return entry, nil
}

func (p *entryParser) parse(meta abstract.EntryMetadata, body string) (*abstract.RepositoryEntry, error) {
	entry, err := p.newEntry(meta, body)
	if err != nil {
		return nil, err
	}
	values, extractErrs, inferred, err := p.extractor.extract(body)
	if err != nil {
		return nil, err
	}

	var keywordSources []string
	for i, fp := range p.fields {
		fieldCfg := fp.Config()
		var value any
		if extractErrs != nil && extractErrs[i] != nil {
			err = extractErrs[i]
		} else {
			value, err = fp.Parse(values[i])
		}
		if err != nil {
			if skip := p.fieldFailed(fieldCfg, err); !skip {
				return nil, err
			}
			continue
		}
		if value == nil {
			continue
		}
		entry.Fields = append(entry.Fields, abstract.Field{Name: fieldCfg.Name, Type: fieldCfg.DataType, Value: value})
		if p.keywords[i] {
			keywordSources = append(keywordSources, value.(string))
		}
	}
	entry.Fields = append(entry.Fields, inferred...)
	entry.Keywords = Keywords(p.maxKeywords, append([]string{body}, keywordSources...)...)
	return entry, nil
}

// fieldFailed applies the field error policy and reports whether the entry survives without the field.
func (p *entryParser) fieldFailed(field *abstract.RepositoryFieldConfig, err error) bool {
	switch p.cfg.ParseFieldErrorHandling {
	case abstract.SkipField:
		p.logger.Warn("field skipped",
			log.String("repository", p.repository),
			log.String("parser", p.cfg.Name),
			log.String("field", field.Name),
			log.Error(err))
		return true
	case abstract.SkipFieldIgnoreError:
		return true
	default:
		return false
	}
}

func (p *entryParser) newEntry(meta abstract.EntryMetadata, body string) (*abstract.RepositoryEntry, error) {
	if strings.TrimSpace(meta.Source) == "" {
		return nil, xerrors.New("source is empty")
	}
	if strings.TrimSpace(meta.Host) == "" {
		return nil, xerrors.New("host is empty")
	}
	if body == "" {
		return nil, xerrors.New("message is empty")
	}
	ts, err := ParseTimestamp(meta.Timestamp)
	if err != nil {
		return nil, err
	}
	severity, err := abstract.ParseSeverity(meta.Severity)
	if err != nil {
		return nil, err
	}
	return &abstract.RepositoryEntry{
		ID:             uuid.NewString(),
		Timestamp:      ts,
		SavedTimestamp: p.now().UTC(),
		Source:         meta.Source,
		Host:           meta.Host,
		Severity:       severity,
		Message:        body,
	}, nil
}

type passThrough struct{}

func (passThrough) extract(string) ([]*string, []error, []abstract.Field, error) {
	return nil, nil, nil, nil
}
