package recipe

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lightningdb/chililog/pkg/providers/nats"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

const (
	natsImage   = "nats:2.10"
	clientPort  = "4222/tcp"
	natsTestURL = "NATS_TEST_URL"
)

func ContainerNeeded() bool {
	return os.Getenv("USE_TESTCONTAINERS") == "1"
}

// Available reports whether a NATS server can be used by tests, either started here or given by NATS_TEST_URL.
func Available() bool {
	return ContainerNeeded() || os.Getenv(natsTestURL) != ""
}

// ConfigRecipe returns a broker config pointing at the test server, starting a container when asked to.
func ConfigRecipe(ctx context.Context) (*nats.Config, error) {
	if ContainerNeeded() && os.Getenv(natsTestURL) == "" {
		if _, err := RunContainer(ctx); err != nil {
			return nil, xerrors.Errorf("unable to start nats container: %w", err)
		}
	}
	url := os.Getenv(natsTestURL)
	if url == "" {
		return nil, xerrors.Errorf("%s is not set", natsTestURL)
	}
	cfg := &nats.Config{
		URL:          url,
		StreamPrefix: fmt.Sprintf("test%d", time.Now().UnixNano()),
		MaxDeliver:   3,
		AckWait:      2 * time.Second,
	}
	cfg.WithDefaults()
	return cfg, nil
}

// RunContainer starts a JetStream enabled NATS server and exports its url in NATS_TEST_URL.
func RunContainer(ctx context.Context, opts ...testcontainers.ContainerCustomizer) (testcontainers.Container, error) {
	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        natsImage,
			ExposedPorts: []string{clientPort},
			Cmd:          []string{"-js"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(100 * time.Second),
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
	port, err := container.MappedPort(ctx, clientPort)
	if err != nil {
		return nil, err
	}
	if err := os.Setenv(natsTestURL, fmt.Sprintf("nats://%s:%s", host, port.Port())); err != nil {
		return nil, err
	}
	return container, nil
}
