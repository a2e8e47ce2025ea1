package mongo

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/lightningdb/chililog/internal/logger"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap/zapcore"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// Config is where repository entries are stored. URI, when set, wins over the discrete connection fields.
type Config struct {
	URI        string   `yaml:"uri"`
	Hosts      []string `yaml:"hosts" log:"true"`
	Port       int      `yaml:"port" log:"true"`
	ReplicaSet string   `yaml:"replica_set" log:"true"`
	AuthSource string   `yaml:"auth_source" log:"true"`
	User       string   `yaml:"user" log:"true"`
	Password   string   `yaml:"password"`
	Database   string   `yaml:"database" log:"true"`
	// TLSFile is a PEM bundle of trusted CA certificates, inline or as a path.
	TLSFile        string        `yaml:"tls_file"`
	Direct         bool          `yaml:"direct" log:"true"`
	SRVMode        bool          `yaml:"srv_mode" log:"true"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" log:"true"`
	ConnectRetry   time.Duration `yaml:"connect_retry" log:"true"`
}

func (c *Config) WithDefaults() {
	if c.URI == "" && len(c.Hosts) == 0 {
		c.Hosts = []string{"localhost"}
	}
	if c.Port == 0 {
		c.Port = 27017
	}
	if c.Database == "" {
		c.Database = "chililog"
	}
	if c.AuthSource == "" {
		c.AuthSource = "admin"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ConnectRetry == 0 {
		c.ConnectRetry = 30 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.URI == "" && len(c.Hosts) == 0 {
		return xerrors.New("mongo hosts are empty")
	}
	if c.URI == "" && c.SRVMode && len(c.Hosts) != 1 {
		return xerrors.New("srv mode needs exactly one host")
	}
	return nil
}

func (c *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	return logger.MarshalSanitizedObject(c, enc)
}

// ClientOptions builds the driver options of the config.
func (c *Config) ClientOptions() (*options.ClientOptions, error) {
	opts := options.Client().SetConnectTimeout(c.ConnectTimeout).SetAppName("chililog")
	switch {
	case c.URI != "":
		opts.ApplyURI(c.URI)
	case c.SRVMode:
		opts.ApplyURI(fmt.Sprintf("mongodb+srv://%s", c.Hosts[0]))
	default:
		hosts := make([]string, 0, len(c.Hosts))
		for _, host := range c.Hosts {
			hosts = append(hosts, fmt.Sprintf("%s:%d", host, c.Port))
		}
		opts.SetHosts(hosts)
	}
	if c.ReplicaSet != "" {
		opts.SetReplicaSet(c.ReplicaSet)
	}
	if c.Direct {
		opts.SetDirect(true)
	}
	if c.User != "" {
		opts.SetAuth(options.Credential{AuthSource: c.AuthSource, Username: c.User, Password: c.Password})
	}
	if c.TLSFile != "" {
		tlsConfig, err := c.tlsConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}
	if err := opts.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid mongo options: %w", err)
	}
	return opts, nil
}

func (c *Config) tlsConfig() (*tls.Config, error) {
	pem := []byte(c.TLSFile)
	if data, err := os.ReadFile(c.TLSFile); err == nil {
		pem = data
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, xerrors.New("no CA certificate found in tls_file")
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
