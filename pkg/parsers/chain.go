package parsers

import (
	"regexp"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"go.ytsaurus.tech/library/go/core/log"
)

var ErrNoParser = coded.Errorf(codes.NoMatchingParser, "no parser applies to the message")

const implicitParserName = "default"

// Chain holds the entry parsers of one repository in configuration order.
type Chain struct {
	repository string
	parsers    []chainLink
}

type chainLink struct {
	parser    EntryParser
	appliesTo abstract.AppliesTo
	source    *regexp.Regexp
	host      *regexp.Regexp
}

// NewChain builds one entry parser per parser config of repo.
// A repository without parsers stores messages with the Default parser.
func NewChain(repo *abstract.RepositoryConfig, logger log.Logger) (*Chain, error) {
	configs := repo.Parsers
	if len(configs) == 0 {
		configs = []abstract.RepositoryParserConfig{{Name: implicitParserName, Kind: abstract.ParserKindDefault}}
	}
	c := &Chain{repository: repo.Name}
	for _, cfg := range configs {
		p, err := New(repo, cfg, logger)
		if err != nil {
			return nil, err
		}
		link := chainLink{parser: p, appliesTo: p.Config().AppliesTo}
		if link.appliesTo == abstract.AppliesToAllowFiltered {
			link.source = anchored(cfg.AppliesToSourceFilter)
			link.host = anchored(cfg.AppliesToHostFilter)
		}
		c.parsers = append(c.parsers, link)
	}
	return c, nil
}

// anchored compiles an already validated filter so it must match the whole value.
func anchored(filter string) *regexp.Regexp {
	if filter == "" {
		return nil
	}
	return regexp.MustCompile(`^(?:` + filter + `)$`)
}

func (l *chainLink) accepts(source, host string) bool {
	switch l.appliesTo {
	case abstract.AppliesToAll:
		return true
	case abstract.AppliesToAllowFiltered:
		if l.source != nil && !l.source.MatchString(source) {
			return false
		}
		if l.host != nil && !l.host.MatchString(host) {
			return false
		}
		return true
	default:
		return false
	}
}

// Select returns the first parser that applies to messages of source and host, nil if none does.
func (c *Chain) Select(source, host string) EntryParser {
	for i := range c.parsers {
		if c.parsers[i].accepts(source, host) {
			return c.parsers[i].parser
		}
	}
	return nil
}

// Parse runs the selected parser. The error is an *EntryParseError either way.
func (c *Chain) Parse(meta abstract.EntryMetadata, body string) (*abstract.RepositoryEntry, EntryParser, error) {
	p := c.Select(meta.Source, meta.Host)
	if p == nil {
		return nil, nil, &EntryParseError{Repository: c.repository, Err: ErrNoParser}
	}
	entry, err := p.Parse(meta, body)
	return entry, p, err
}

func (c *Chain) Len() int {
	return len(c.parsers)
}
