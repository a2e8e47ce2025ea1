package nats

import (
	"strings"
	"time"

	"github.com/lightningdb/chililog/internal/logger"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap/zapcore"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// Config holds the details required to connect to a NATS server with JetStream enabled
// and the naming of the per repository streams.
type Config struct {
	URL          string        `yaml:"url" log:"true"`
	User         string        `yaml:"user" log:"true"`
	Password     string        `yaml:"password"`
	Token        string        `yaml:"token"`
	MaxReconnect int           `yaml:"max_reconnect" log:"true"`
	ConnectRetry time.Duration `yaml:"connect_retry" log:"true"`
	// StreamPrefix prefixes the stream names: <prefix>_<repository> and <prefix>_<repository>_dlq.
	StreamPrefix string `yaml:"stream_prefix" log:"true"`
	// SubjectPrefix prefixes the subjects: <prefix>.<repository>.in and <prefix>.<repository>.dlq.
	SubjectPrefix string `yaml:"subject_prefix" log:"true"`
	// MaxDeliver is the delivery limit after which a rolled back message is dead-lettered.
	MaxDeliver int           `yaml:"max_deliver" log:"true"`
	AckWait    time.Duration `yaml:"ack_wait" log:"true"`
	Replicas   int           `yaml:"replicas" log:"true"`
}

func (c *Config) WithDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.MaxReconnect == 0 {
		c.MaxReconnect = 10
	}
	if c.ConnectRetry == 0 {
		c.ConnectRetry = 30 * time.Second
	}
	if c.StreamPrefix == "" {
		c.StreamPrefix = "chililog"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "chililog.repo"
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = 5
	}
	if c.AckWait == 0 {
		c.AckWait = 30 * time.Second
	}
	if c.Replicas == 0 {
		c.Replicas = 1
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return xerrors.New("nats url is empty")
	}
	if strings.ContainsAny(c.StreamPrefix, ". *>") {
		return xerrors.Errorf("stream prefix %q must not contain dots, spaces or wildcards", c.StreamPrefix)
	}
	if strings.ContainsAny(c.SubjectPrefix, " *>") {
		return xerrors.Errorf("subject prefix %q must not contain spaces or wildcards", c.SubjectPrefix)
	}
	if c.MaxDeliver < 1 {
		return xerrors.Errorf("max deliver must be positive, got %d", c.MaxDeliver)
	}
	return nil
}

func (c *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	return logger.MarshalSanitizedObject(c, enc)
}

func (c *Config) InputStream(repository string) string {
	return c.StreamPrefix + "_" + repository
}

func (c *Config) DeadLetterStream(repository string) string {
	return c.StreamPrefix + "_" + repository + "_dlq"
}

func (c *Config) InputSubject(repository string) string {
	return c.SubjectPrefix + "." + repository + ".in"
}

func (c *Config) DeadLetterSubject(repository string) string {
	return c.SubjectPrefix + "." + repository + ".dlq"
}

func (c *Config) options() []nats.Option {
	opts := []nats.Option{nats.Name("chililog"), nats.MaxReconnects(c.MaxReconnect)}
	if c.User != "" {
		opts = append(opts, nats.UserInfo(c.User, c.Password))
	}
	if c.Token != "" {
		opts = append(opts, nats.Token(c.Token))
	}
	return opts
}
