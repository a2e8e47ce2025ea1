package abstract

import (
	"fmt"
	"regexp"

	"github.com/dustin/go-humanize"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

type RepositoryStatus string

const (
	StatusOnline  RepositoryStatus = "ONLINE"
	StatusOffline RepositoryStatus = "OFFLINE"
)

// MaxMemoryPolicy decides what the input queue does once it holds MaxMemory bytes.
type MaxMemoryPolicy string

const (
	MaxMemoryPolicyFail  MaxMemoryPolicy = "FAIL"
	MaxMemoryPolicyDrop  MaxMemoryPolicy = "DROP"
	MaxMemoryPolicyPage  MaxMemoryPolicy = "PAGE"
	MaxMemoryPolicyBlock MaxMemoryPolicy = "BLOCK"
)

const (
	DefaultMaxKeywords      = 20
	DefaultMaxMemory        = "20MB"
	DefaultPageSize         = 500
	SystemAdministratorRole = "system.administrator"
)

var repositoryNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)

// RepositoryConfig is the identity and policy of one repository.
type RepositoryConfig struct {
	Name                         string                   `yaml:"name"`
	DisplayName                  string                   `yaml:"display_name"`
	Description                  string                   `yaml:"description"`
	StartupStatus                RepositoryStatus         `yaml:"startup_status"`
	StoreEntriesIndicator        bool                     `yaml:"store_entries"`
	StorageQueueDurableIndicator bool                     `yaml:"storage_queue_durable"`
	StorageQueueWorkerCount      int                      `yaml:"storage_queue_worker_count"`
	StorageMaxKeywords           int                      `yaml:"storage_max_keywords"`
	MaxMemory                    string                   `yaml:"max_memory"`
	MaxMemoryPolicy              MaxMemoryPolicy          `yaml:"max_memory_policy"`
	PageSize                     int                      `yaml:"page_size"`
	Parsers                      []RepositoryParserConfig `yaml:"parsers"`
}

func (c *RepositoryConfig) WithDefaults() {
	if c.StartupStatus == "" {
		c.StartupStatus = StatusOnline
	}
	if c.StorageMaxKeywords == 0 {
		c.StorageMaxKeywords = DefaultMaxKeywords
	}
	if c.MaxMemory == "" {
		c.MaxMemory = DefaultMaxMemory
	}
	if c.MaxMemoryPolicy == "" {
		c.MaxMemoryPolicy = MaxMemoryPolicyPage
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.DisplayName == "" {
		c.DisplayName = c.Name
	}
	for i := range c.Parsers {
		c.Parsers[i].WithDefaults()
	}
}

func (c *RepositoryConfig) Validate() error {
	if c.Name == "" {
		return xerrors.New("repository name is empty")
	}
	if !repositoryNameRe.MatchString(c.Name) {
		return xerrors.Errorf("repository name %q must match %s", c.Name, repositoryNameRe.String())
	}
	if c.StorageQueueWorkerCount < 0 {
		return xerrors.Errorf("repository %s: negative worker count %d", c.Name, c.StorageQueueWorkerCount)
	}
	switch c.StartupStatus {
	case StatusOnline, StatusOffline, "":
	default:
		return xerrors.Errorf("repository %s: unknown startup status %q", c.Name, c.StartupStatus)
	}
	switch c.MaxMemoryPolicy {
	case MaxMemoryPolicyFail, MaxMemoryPolicyDrop, MaxMemoryPolicyPage, MaxMemoryPolicyBlock, "":
	default:
		return xerrors.Errorf("repository %s: unknown max memory policy %q", c.Name, c.MaxMemoryPolicy)
	}
	if _, err := c.MaxMemoryBytes(); err != nil {
		return xerrors.Errorf("repository %s: %w", c.Name, err)
	}
	seen := map[string]bool{}
	for i := range c.Parsers {
		p := &c.Parsers[i]
		if seen[p.Name] {
			return xerrors.Errorf("repository %s: duplicate parser %q", c.Name, p.Name)
		}
		seen[p.Name] = true
		if err := p.Validate(); err != nil {
			return xerrors.Errorf("repository %s: %w", c.Name, err)
		}
	}
	return nil
}

// MaxMemoryBytes parses MaxMemory, e.g. "20MB" or "1GiB". Zero means unbounded.
func (c *RepositoryConfig) MaxMemoryBytes() (int64, error) {
	if c.MaxMemory == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MaxMemory)
	if err != nil {
		return 0, xerrors.Errorf("invalid max memory %q: %w", c.MaxMemory, err)
	}
	return int64(n), nil
}

// Copy returns a deep copy, including parser and field property maps.
func (c *RepositoryConfig) Copy() *RepositoryConfig {
	res := *c
	res.Parsers = make([]RepositoryParserConfig, len(c.Parsers))
	for i, p := range c.Parsers {
		res.Parsers[i] = p.copy()
	}
	return &res
}

func (c *RepositoryConfig) PublisherRoleName() string {
	return fmt.Sprintf("repo.%s.publisher", c.Name)
}

func (c *RepositoryConfig) SubscriberRoleName() string {
	return fmt.Sprintf("repo.%s.subscriber", c.Name)
}

func (c *RepositoryConfig) String() string {
	return fmt.Sprintf("%s(workers=%d, parsers=%d)", c.Name, c.StorageQueueWorkerCount, len(c.Parsers))
}

func PublisherRoleName(repository string) string {
	return (&RepositoryConfig{Name: repository}).PublisherRoleName()
}
