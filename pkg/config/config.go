package config

import (
	"bytes"
	"io"
	"os"

	"github.com/lightningdb/chililog/internal/logger"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/gateway"
	"github.com/lightningdb/chililog/pkg/providers/mongo"
	"github.com/lightningdb/chililog/pkg/providers/nats"
	"github.com/lightningdb/chililog/pkg/repository"
	"go.uber.org/zap/zapcore"
	"go.ytsaurus.tech/library/go/core/xerrors"
	"gopkg.in/yaml.v3"
)

type Transport string

const (
	TransportNATS   Transport = "nats"
	TransportMemory Transport = "memory"
)

type StoreKind string

const (
	StoreMongo  StoreKind = "mongo"
	StoreMemory StoreKind = "memory"
)

// Server is the content of the server configuration file.
type Server struct {
	Transport    Transport                   `yaml:"transport" log:"true"`
	Store        StoreKind                   `yaml:"store" log:"true"`
	NATS         nats.Config                 `yaml:"nats" log:"true"`
	Mongo        mongo.Config                `yaml:"mongo" log:"true"`
	Gateway      gateway.Config              `yaml:"gateway" log:"true"`
	Workers      repository.WorkerOptions    `yaml:"workers" log:"true"`
	MetricsPort  int                         `yaml:"metrics_port" log:"true"`
	HealthPort   int                         `yaml:"health_port" log:"true"`
	Users        []User                      `yaml:"users"`
	Repositories []abstract.RepositoryConfig `yaml:"repositories"`
}

func (c *Server) WithDefaults() {
	if c.Transport == "" {
		c.Transport = TransportNATS
	}
	if c.Store == "" {
		c.Store = StoreMongo
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9091
	}
	if c.HealthPort == 0 {
		c.HealthPort = 3000
	}
	c.Gateway.WithDefaults()
	c.NATS.WithDefaults()
	c.Mongo.WithDefaults()
	c.Workers.WithDefaults()
	for i := range c.Repositories {
		c.Repositories[i].WithDefaults()
	}
}

func (c *Server) Validate() error {
	switch c.Transport {
	case TransportNATS:
		if err := c.NATS.Validate(); err != nil {
			return xerrors.Errorf("nats: %w", err)
		}
	case TransportMemory:
	default:
		return xerrors.Errorf("unknown transport %q", c.Transport)
	}
	switch c.Store {
	case StoreMongo:
		if err := c.Mongo.Validate(); err != nil {
			return xerrors.Errorf("mongo: %w", err)
		}
	case StoreMemory:
	default:
		return xerrors.Errorf("unknown store %q", c.Store)
	}
	users := map[string]bool{}
	for i := range c.Users {
		u := &c.Users[i]
		if err := u.Validate(); err != nil {
			return err
		}
		if users[u.Name] {
			return xerrors.Errorf("duplicate user %q", u.Name)
		}
		users[u.Name] = true
	}
	repos := map[string]bool{}
	for i := range c.Repositories {
		r := &c.Repositories[i]
		if err := r.Validate(); err != nil {
			return err
		}
		if repos[r.Name] {
			return xerrors.Errorf("duplicate repository %q", r.Name)
		}
		repos[r.Name] = true
	}
	return nil
}

func (c *Server) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if err := logger.MarshalSanitizedObject(c, enc); err != nil {
		return err
	}
	enc.AddInt("repositories", len(c.Repositories))
	enc.AddInt("users", len(c.Users))
	return nil
}

// Parse decodes a configuration document, applies defaults and validates it.
// Unknown keys are an error.
func Parse(data []byte) (*Server, error) {
	var cfg Server
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !xerrors.Is(err, io.EOF) {
		return nil, xerrors.Errorf("unable to decode config: %w", err)
	}
	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("unable to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
