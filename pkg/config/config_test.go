package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const serverYaml = `
transport: memory
mongo:
  hosts: [mongo1, mongo2]
  replica_set: rs0
  database: logs
workers:
  poll_interval: 500ms
  save_retries: 3
users:
  - name: admin
    password: admin
    roles: [system.administrator]
  - name: app
    password: secret
    roles: [repo.junit.publisher]
repositories:
  - name: junit
    storage_queue_worker_count: 2
    max_memory: 1MB
    max_memory_policy: DROP
    parsers:
      - name: csv
        kind: Delimited
        parse_field_error_handling: SkipField
        properties:
          delimiter: "|"
        fields:
          - name: field1
            data_type: String
          - name: field2
            data_type: Integer
            properties:
              position: "2"
  - name: offline
    startup_status: OFFLINE
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(serverYaml))
	require.NoError(t, err)

	require.Equal(t, TransportMemory, cfg.Transport)
	require.Equal(t, []string{"mongo1", "mongo2"}, cfg.Mongo.Hosts)
	require.Equal(t, "logs", cfg.Mongo.Database)
	require.Equal(t, 27017, cfg.Mongo.Port)
	require.Equal(t, 500*time.Millisecond, cfg.Workers.PollInterval)
	require.Equal(t, uint64(3), cfg.Workers.SaveRetries)
	require.Equal(t, 200*time.Millisecond, cfg.Workers.SaveRetryInterval)
	require.Equal(t, ":61615", cfg.Gateway.Listen)
	require.Equal(t, 9091, cfg.MetricsPort)

	require.Len(t, cfg.Repositories, 2)
	junit := cfg.Repositories[0]
	require.Equal(t, abstract.StatusOnline, junit.StartupStatus)
	require.Equal(t, 2, junit.StorageQueueWorkerCount)
	require.Equal(t, abstract.MaxMemoryPolicyDrop, junit.MaxMemoryPolicy)
	require.Equal(t, abstract.DefaultPageSize, junit.PageSize)
	require.Len(t, junit.Parsers, 1)
	require.Equal(t, abstract.ParserKindDelimited, junit.Parsers[0].Kind)
	require.Equal(t, abstract.AppliesToAll, junit.Parsers[0].AppliesTo)
	require.Equal(t, "|", junit.Parsers[0].Properties[abstract.PropertyDelimiter])
	require.Equal(t, abstract.DataTypeInteger, junit.Parsers[0].Fields[1].DataType)
	require.Equal(t, abstract.StatusOffline, cfg.Repositories[1].StartupStatus)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, TransportNATS, cfg.Transport)
	require.Equal(t, StoreMongo, cfg.Store)
	require.Equal(t, "chililog", cfg.NATS.StreamPrefix)
	require.Empty(t, cfg.Repositories)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":          "transprot: memory\n",
		"unknown transport":    "transport: kafka\n",
		"unknown store":        "store: redis\n",
		"duplicate repository": "repositories: [{name: a}, {name: a}]\n",
		"bad repository name":  "repositories: [{name: 'Bad Name'}]\n",
		"bad parser kind":      "repositories: [{name: a, parsers: [{name: p, kind: Xml}]}]\n",
		"user without secret":  "users: [{name: a}]\n",
		"duplicate user":       "users: [{name: a, password: x}, {name: a, password: y}]\n",
		"bad password hash":    "users: [{name: a, password_hash: nope}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chililog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(serverYaml), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Users, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestUsers(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed"), bcrypt.MinCost)
	require.NoError(t, err)
	users := NewUsers([]User{
		{Name: "admin", Password: "admin", Roles: []string{abstract.SystemAdministratorRole}},
		{Name: "app", PasswordHash: string(hash), Roles: []string{abstract.PublisherRoleName("junit")}},
	})

	require.True(t, users.Authenticate("admin", "admin"))
	require.False(t, users.Authenticate("admin", "nope"))
	require.True(t, users.Authenticate("app", "hashed"))
	require.False(t, users.Authenticate("app", string(hash)))
	require.False(t, users.Authenticate("ghost", "admin"))

	require.True(t, users.HasRole("app", "repo.junit.publisher"))
	require.False(t, users.HasRole("app", "repo.other.publisher"))
	require.False(t, users.HasRole("app", abstract.SystemAdministratorRole))
	require.True(t, users.HasRole("admin", "repo.other.publisher"))
	require.False(t, users.HasRole("ghost", "repo.junit.publisher"))
}
