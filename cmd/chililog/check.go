package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/lightningdb/chililog/internal/logger"
	"github.com/lightningdb/chililog/pkg/config"
	"github.com/lightningdb/chililog/pkg/parsers"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

func checkCommand() *cobra.Command {
	var configPath string
	checkCommand := &cobra.Command{
		Use:   "check",
		Short: "Validate the server configuration and compile every parser",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return xerrors.Errorf("unable to load config: %w", err)
			}
			return check(cmd.OutOrStdout(), cfg)
		},
	}
	checkCommand.Flags().StringVar(&configPath, "config", "./chililog.yaml", "path to yaml file with server configuration")
	return checkCommand
}

// check builds the parser chain of every repository, as a storage worker would on start.
func check(out io.Writer, cfg *config.Server) error {
	var res error
	for i := range cfg.Repositories {
		repo := &cfg.Repositories[i]
		chain, err := parsers.NewChain(repo, logger.Log)
		if err != nil {
			res = multierr.Append(res, err)
			fmt.Fprintf(out, "%-24s FAILED %v\n", repo.Name, err)
			continue
		}
		limit, _ := repo.MaxMemoryBytes()
		fmt.Fprintf(out, "%-24s ok     status=%s workers=%d parsers=%d max_memory=%s policy=%s\n",
			repo.Name, repo.StartupStatus, repo.StorageQueueWorkerCount, chain.Len(),
			humanize.Bytes(uint64(limit)), repo.MaxMemoryPolicy)
	}
	if res != nil {
		return xerrors.Errorf("%d of %d repositories are misconfigured: %w", len(multierr.Errors(res)), len(cfg.Repositories), res)
	}
	return nil
}
