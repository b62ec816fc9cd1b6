// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/parallelvirtualcluster/quorum-rescue/pkg/cliui"
	"github.com/parallelvirtualcluster/quorum-rescue/pkg/config"
	"github.com/parallelvirtualcluster/quorum-rescue/pkg/ssh"
)

var userCmd string

// NewCommandExec executes a command against one configured host, selected
// interactively.
func NewCommandExec() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute a command against a configured host",
		Run:   execCommandFunc,
	}

	cmd.Flags().StringVarP(&userCmd, "command", "e", "", "command to execute against the selected host")

	return cmd
}

func execCommandFunc(cmd *cobra.Command, args []string) {
	if userCmd == "" {
		log.Fatalf("no command given, use --command")
	}

	hosts, err := config.ParseHostsFromFile(configFile)
	if err != nil {
		log.Fatalf("failed to parse hosts file: %v", err)
	}
	if len(hosts) == 0 {
		log.Fatalf("hosts file should contain at least one host")
	}

	options := make([]string, len(hosts))
	for i, h := range hosts {
		options[i] = h.String()
	}

	idx, _, err := cliui.Select("Select the host to execute the command against:", options)
	if err != nil {
		log.Fatalf("no host selected, exiting: %v", err)
	}
	host := hosts[idx]

	printLog("Connecting to host %s", host)
	client, err := ssh.NewClient(&ssh.Config{
		User:                 host.Username,
		Host:                 host.Host,
		Password:             host.Password,
		PrivateKeyPath:       host.PrivateKey,
		PrivateKeyPassphrase: host.Passphrase,
	})
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", host.Host, err)
	}
	defer client.Close()

	printLog("Executing command %q on host %s", userCmd, host)
	res, err := client.Run(userCmd)
	if err != nil {
		log.Fatalf("failed to execute %q on %s: %v", userCmd, host.Host, err)
	}

	fmt.Print(res.Stdout)
	if res.Stderr != "" {
		fmt.Fprint(os.Stderr, res.Stderr)
	}
	if !res.Ok() {
		os.Exit(res.ExitCode)
	}
}
