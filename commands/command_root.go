// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"github.com/spf13/cobra"

	"github.com/parallelvirtualcluster/quorum-rescue/pkg/config"
)

const (
	cliName        = "quorum-rescue"
	cliDescription = "A tool to force a lone surviving cluster node into standalone, quorum-less operation"
)

var (
	configFile string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   cliName,
		Short: cliDescription,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigFilename, "path to cluster hosts config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(
		NewCommandVersion(),
		NewCommandRescue(),
		NewCommandExec(),
		NewCommandStatus(),
	)
}

func RootCmd() *cobra.Command {
	return rootCmd
}
