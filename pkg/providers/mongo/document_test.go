package mongo

import (
	"testing"
	"time"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDocument(t *testing.T) {
	ts := time.Date(2011, 1, 1, 5, 5, 5, 100000000, time.UTC)
	entry := &abstract.RepositoryEntry{
		ID:             "id-1",
		Timestamp:      ts,
		SavedTimestamp: ts.Add(time.Second),
		Source:         "src",
		Host:           "host",
		Severity:       abstract.SeverityError,
		Message:        "line1,2,3",
		Keywords:       []string{"line1"},
		Fields: []abstract.Field{
			{Name: "field1", Type: abstract.DataTypeString, Value: "line1"},
			{Name: "field2", Type: abstract.DataTypeInteger, Value: int32(2)},
		},
	}

	doc := Document(entry)
	require.Equal(t, bson.D{
		{Key: "_id", Value: "id-1"},
		{Key: "ts", Value: ts},
		{Key: "saved_ts", Value: ts.Add(time.Second)},
		{Key: "source", Value: "src"},
		{Key: "host", Value: "host"},
		{Key: "severity", Value: int32(3)},
		{Key: "severity_name", Value: "Error"},
		{Key: "message", Value: "line1,2,3"},
		{Key: "keywords", Value: []string{"line1"}},
		{Key: "fld_field1", Value: "line1"},
		{Key: "fld_field2", Value: int32(2)},
	}, doc)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded bson.M
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	require.Equal(t, int32(2), decoded["fld_field2"])
}

func TestDocumentWithoutKeywords(t *testing.T) {
	doc := Document(&abstract.RepositoryEntry{ID: "x"})
	require.Equal(t, []string{}, doc.Map()[KeyKeywords])
}

func TestClientOptions(t *testing.T) {
	cfg := &Config{Hosts: []string{"a", "b"}, ReplicaSet: "rs0", User: "chililog", Password: "secret"}
	cfg.WithDefaults()
	require.NoError(t, cfg.Validate())
	opts, err := cfg.ClientOptions()
	require.NoError(t, err)
	require.Equal(t, []string{"a:27017", "b:27017"}, opts.Hosts)
	require.Equal(t, "rs0", *opts.ReplicaSet)
	require.Equal(t, "admin", opts.Auth.AuthSource)
	require.Equal(t, "chililog", cfg.Database)

	cfg = &Config{URI: "mongodb://localhost:27018/?directConnection=true"}
	cfg.WithDefaults()
	opts, err = cfg.ClientOptions()
	require.NoError(t, err)
	require.Equal(t, []string{"localhost:27018"}, opts.Hosts)

	cfg = &Config{Hosts: []string{"a", "b"}, SRVMode: true}
	require.Error(t, cfg.Validate())

	cfg = &Config{Hosts: []string{"a"}, TLSFile: "not a certificate"}
	cfg.WithDefaults()
	_, err = cfg.ClientOptions()
	require.Error(t, err)
}
