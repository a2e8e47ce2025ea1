package main

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/lightningdb/chililog/internal/logger"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/config"
	"github.com/lightningdb/chililog/pkg/parsers"
	"github.com/spf13/cobra"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

type publishOptions struct {
	configPath string
	repository string
	source     string
	host       string
	severity   string
}

func publishCommand() *cobra.Command {
	var opts publishOptions
	publishCommand := &cobra.Command{
		Use:   "publish [message...]",
		Short: "Publish messages straight to the input queue of a repository",
		Long:  "Publishes every argument as one message. Without arguments every line of stdin is a message.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return xerrors.Errorf("unable to load config: %w", err)
			}
			if cfg.Transport == config.TransportMemory {
				return xerrors.New("publish needs a shared transport, the memory transport lives inside a server")
			}
			broker, err := openBroker(cmd.Context(), cfg)
			if err != nil {
				return xerrors.Errorf("unable to open broker: %w", err)
			}
			defer broker.Close()
			n, err := publish(cmd.Context(), broker, opts, args, cmd.InOrStdin())
			logger.Log.Info("published", log.String("repository", opts.repository), log.Int("messages", n))
			return err
		},
	}
	publishCommand.Flags().StringVar(&opts.configPath, "config", "./chililog.yaml", "path to yaml file with server configuration")
	publishCommand.Flags().StringVar(&opts.repository, "repository", "", "repository to publish to")
	publishCommand.Flags().StringVar(&opts.source, "source", "chililog-cli", "source of the messages")
	publishCommand.Flags().StringVar(&opts.host, "host", "localhost", "host of the messages")
	publishCommand.Flags().StringVar(&opts.severity, "severity", "Information", "severity name or code of the messages")
	_ = publishCommand.MarkFlagRequired("repository")
	return publishCommand
}

func publish(ctx context.Context, broker abstract.Broker, opts publishOptions, args []string, stdin io.Reader) (int, error) {
	if _, err := abstract.ParseSeverity(opts.severity); err != nil {
		return 0, err
	}
	send := func(body string) error {
		meta := abstract.EntryMetadata{
			Timestamp: time.Now().UTC().Format(parsers.TimestampLayout),
			Source:    opts.source,
			Host:      opts.host,
			Severity:  opts.severity,
		}
		return broker.Publish(ctx, opts.repository, meta, body)
	}

	n := 0
	if len(args) > 0 {
		for _, body := range args {
			if err := send(body); err != nil {
				return n, xerrors.Errorf("unable to publish message %d: %w", n, err)
			}
			n++
		}
		return n, nil
	}
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		if err := send(scanner.Text()); err != nil {
			return n, xerrors.Errorf("unable to publish line %d: %w", n+1, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, xerrors.Errorf("unable to read stdin: %w", err)
	}
	return n, nil
}
