// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parallelvirtualcluster/quorum-rescue/pkg/config"
	"github.com/parallelvirtualcluster/quorum-rescue/pkg/quorum"
	"github.com/parallelvirtualcluster/quorum-rescue/pkg/ssh"
)

// NewCommandStatus surveys every configured host: agent presence and the
// state of both consensus subsystem services. Useful before a rescue to
// confirm which node is actually the best survivor.
func NewCommandStatus() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show subsystem service state on every configured host",
		Run:   statusCommandFunc,
	}
}

func statusCommandFunc(cmd *cobra.Command, args []string) {
	hosts, err := config.ParseHostsFromFile(configFile)
	if err != nil {
		log.Fatalf("failed to parse hosts file: %v", err)
	}
	if len(hosts) == 0 {
		log.Fatalf("hosts file should contain at least one host")
	}

	for _, h := range hosts {
		printLog("Connecting to host %s", h)

		client, err := ssh.NewClient(&ssh.Config{
			User:                 h.Username,
			Host:                 h.Host,
			Password:             h.Password,
			PrivateKeyPath:       h.PrivateKey,
			PrivateKeyPassphrase: h.Passphrase,
		})
		if err != nil {
			fmt.Printf("%s: unreachable: %v\n", h, err)
			continue
		}

		node := quorum.NewNode(h.Host)
		fmt.Printf("%s:\n", h)
		fmt.Printf("  agent:    %s\n", probe(client, fmt.Sprintf("command -v %s", quorum.AgentBinary), "present", "missing"))
		fmt.Printf("  storage:  %s\n", serviceState(client, quorum.StorageSubsystem(node, "").ServiceUnit))
		fmt.Printf("  ensemble: %s\n", serviceState(client, quorum.EnsembleSubsystem("").ServiceUnit))

		client.Close()
	}
}

func probe(client *ssh.Client, cmd, ok, bad string) string {
	res, err := client.Run(cmd)
	if err != nil {
		return fmt.Sprintf("unknown (%v)", err)
	}
	if res.Ok() {
		return ok
	}
	return bad
}

func serviceState(client *ssh.Client, unit string) string {
	res, err := client.Sudo(fmt.Sprintf("systemctl is-active %s", unit))
	if err != nil {
		return fmt.Sprintf("unknown (%v)", err)
	}
	state := strings.TrimSpace(res.Stdout)
	if state == "" {
		state = fmt.Sprintf("unknown (exit %d)", res.ExitCode)
	}
	return fmt.Sprintf("%s (%s)", state, unit)
}
