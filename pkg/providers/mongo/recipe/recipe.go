package recipe

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lightningdb/chililog/pkg/providers/mongo"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

const (
	mongoImage   = "mongo:7.0"
	mongoPort    = "27017/tcp"
	mongoTestURI = "MONGO_TEST_URI"
)

func ContainerNeeded() bool {
	return os.Getenv("USE_TESTCONTAINERS") == "1"
}

// Available reports whether a mongo server can be used by tests, either started here or given by MONGO_TEST_URI.
func Available() bool {
	return ContainerNeeded() || os.Getenv(mongoTestURI) != ""
}

// ConfigRecipe returns a store config with a database of its own, starting a container when asked to.
func ConfigRecipe(ctx context.Context) (*mongo.Config, error) {
	if ContainerNeeded() && os.Getenv(mongoTestURI) == "" {
		if _, err := RunContainer(ctx); err != nil {
			return nil, xerrors.Errorf("unable to start mongo container: %w", err)
		}
	}
	uri := os.Getenv(mongoTestURI)
	if uri == "" {
		return nil, xerrors.Errorf("%s is not set", mongoTestURI)
	}
	cfg := &mongo.Config{
		URI:          uri,
		Database:     fmt.Sprintf("test%d", time.Now().UnixNano()),
		ConnectRetry: 20 * time.Second,
	}
	cfg.WithDefaults()
	return cfg, nil
}

// RunContainer starts a standalone mongod and exports its uri in MONGO_TEST_URI.
func RunContainer(ctx context.Context, opts ...testcontainers.ContainerCustomizer) (testcontainers.Container, error) {
	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        mongoImage,
			ExposedPorts: []string{mongoPort},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(100 * time.Second),
		},
		Started: true,
	}
	for _, opt := range opts {
		if err := opt.Customize(&req); err != nil {
			return nil, err
		}
	}

	container, err := testcontainers.GenericContainer(ctx, req)
	if err != nil {
		return nil, err
	}
	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := container.MappedPort(ctx, mongoPort)
	if err != nil {
		return nil, err
	}
	if err := os.Setenv(mongoTestURI, fmt.Sprintf("mongodb://%s:%s/?directConnection=true", host, port.Port())); err != nil {
		return nil, err
	}
	return container, nil
}
