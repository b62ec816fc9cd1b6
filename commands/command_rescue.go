// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parallelvirtualcluster/quorum-rescue/pkg/cliui"
	"github.com/parallelvirtualcluster/quorum-rescue/pkg/config"
	"github.com/parallelvirtualcluster/quorum-rescue/pkg/quorum"
	"github.com/parallelvirtualcluster/quorum-rescue/pkg/rescue"
	"github.com/parallelvirtualcluster/quorum-rescue/pkg/ssh"
)

var (
	assumeYes       bool
	backupDir       string
	fetchBackupsDir string
)

func NewCommandRescue() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rescue <target_cluster> <lone_node>",
		Short: "Force the lone surviving node into standalone, quorum-less operation",
		Long: `Force the lone surviving node of TARGET_CLUSTER into standalone operation.

Both consensus subsystems on the node are stopped, their membership maps
backed up and reduced to the single surviving member, and the services
restarted. Automatic data-redundancy enforcement is then suspended
cluster-wide. The change produces a permanent divergence from the other
former members; the printed restoration plan is the only way back.

LONE_NODE must be the fully-qualified hostname of the surviving node and
must be present in the hosts config file. TARGET_CLUSTER is recorded for
context only.
`,
		Args: cobra.ExactArgs(2),
		Run:  rescueCommandFunc,
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the interactive confirmation")
	cmd.Flags().StringVar(&backupDir, "backup-dir", "", "remote directory for the pristine membership map backups")
	cmd.Flags().StringVar(&fetchBackupsDir, "fetch-backups", "", "local directory to download the remote backups into after the run")

	return cmd
}

func rescueCommandFunc(cmd *cobra.Command, args []string) {
	cluster, target := args[0], args[1]

	hosts, err := config.ParseHostsFromFile(configFile)
	if err != nil {
		log.Fatalf("failed to parse hosts file: %v", err)
	}

	host, err := config.FindHost(hosts, target)
	if err != nil {
		log.Fatalf("failed to resolve lone node: %v", err)
	}

	node := quorum.NewNode(host.Host)

	fmt.Printf("About to force node %s of cluster %s into standalone, quorum-less operation.\n", node.Hostname, cluster)
	fmt.Printf("This permanently diverges it from the other former members (split-brain) and\n")
	fmt.Printf("requires manual reconciliation to undo.\n\n")

	if !assumeYes {
		if !cliui.Confirm("Proceed with the forced promotion?") {
			log.Fatalf("aborted by operator, no changes were made")
		}
	}

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

	dir := backupDir
	if dir == "" {
		dir = host.BackupDir
	}

	orch := &rescue.Orchestrator{
		Cluster:   cluster,
		Node:      node,
		BackupDir: dir,
	}

	session, err := orch.Run(client)
	if err != nil {
		// precondition failure: nothing was touched, so there is no
		// restoration plan to print
		log.Fatalf("recovery aborted: %v", err)
	}

	fmt.Println()
	fmt.Print(rescue.Summary(session))
	fmt.Println()
	fmt.Println("Final cluster status:")
	fmt.Print(session.StatusReport)
	fmt.Println()
	fmt.Print(rescue.RestorationPlan(session))

	if fetchBackupsDir != "" {
		fetchBackups(client, session, fetchBackupsDir)
	}

	for _, out := range session.Outcomes() {
		if out.FailureReason != nil {
			os.Exit(1)
		}
	}
}

// fetchBackups downloads the remote membership-map backups so the operator
// holds a copy off the node. Failures are reported but never change the
// run's outcome.
func fetchBackups(client *ssh.Client, session *rescue.Session, dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("cannot create local backup dir %s: %v\n", dir, err)
		return
	}

	for _, out := range session.Outcomes() {
		if out.BackupPath == "" {
			continue
		}
		local := filepath.Join(dir, filepath.Base(out.BackupPath))
		if err := client.Download(out.BackupPath, local); err != nil {
			log.Printf("failed to download %s: %v\n", out.BackupPath, err)
			continue
		}
		printLog("downloaded %s to %s", out.BackupPath, local)
	}
}
