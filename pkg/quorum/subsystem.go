// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

// Package quorum models the two consensus subsystems of a cluster node and
// the codecs that reduce their membership maps to a single retained member.
package quorum

import (
	"fmt"
	"path"
	"strings"

	"github.com/parallelvirtualcluster/quorum-rescue/pkg/ssh"
)

const (
	// DefaultBackupDir is the remote directory pristine membership maps
	// are copied into before any mutation.
	DefaultBackupDir = "/var/backups/quorum-rescue"

	// AgentBinary is the cluster agent expected on every node; its
	// presence gates the whole session.
	AgentBinary = "pvcd"
)

// Node is the surviving cluster member the recovery runs against.
type Node struct {
	// Hostname is fully qualified and used for transport addressing.
	Hostname string
	// Shortname is the first DNS label, used as the member identifier in
	// both subsystems' maps.
	Shortname string
}

// NewNode derives a Node from the operator-supplied fully-qualified
// hostname.
func NewNode(hostname string) Node {
	short, _, _ := strings.Cut(hostname, ".")
	return Node{Hostname: hostname, Shortname: short}
}

// Subsystem identifies one consensus technology being reconfigured. Exactly
// two instances exist per recovery session.
type Subsystem struct {
	Name        string
	ServiceUnit string
	// MapPath is the live membership map for the text-based subsystem and
	// the tooling work path for the binary one.
	MapPath    string
	BackupPath string
}

// OrigPath is the in-place `.orig` sibling of the live map, kept as a second
// line of defense alongside the explicit backup.
func (s Subsystem) OrigPath() string {
	return s.MapPath + ".orig"
}

// StorageSubsystem returns the storage-replication monitor quorum bound to
// the node's member identifier. Its map is an opaque binary blob mutated only
// through the subsystem's own tooling.
func StorageSubsystem(node Node, backupDir string) Subsystem {
	if backupDir == "" {
		backupDir = DefaultBackupDir
	}
	return Subsystem{
		Name:        "storage-quorum",
		ServiceUnit: fmt.Sprintf("ceph-mon@%s", node.Shortname),
		MapPath:     "/tmp/monmap",
		BackupPath:  path.Join(backupDir, "monmap"),
	}
}

// EnsembleSubsystem returns the coordination-service ensemble. Its map is a
// line-oriented key/value configuration file.
func EnsembleSubsystem(backupDir string) Subsystem {
	if backupDir == "" {
		backupDir = DefaultBackupDir
	}
	return Subsystem{
		Name:        "coordination-ensemble",
		ServiceUnit: "zookeeper",
		MapPath:     "/etc/zookeeper/conf/zoo.cfg",
		BackupPath:  path.Join(backupDir, "zoo.cfg"),
	}
}

// Runner is the one-command-at-a-time remote executor the codecs and
// recovery steps drive. *ssh.Client satisfies it; tests substitute fakes.
type Runner interface {
	Run(cmd string) (ssh.RunResult, error)
	Sudo(cmd string) (ssh.RunResult, error)
	Upload(localPath, remotePath string) error
	Download(remotePath, localPath string) error
}

// sudoChecked runs cmd privileged and folds a transport error or a non-zero
// exit into a single error carrying the remote stderr.
func sudoChecked(r Runner, cmd string) (ssh.RunResult, error) {
	res, err := r.Sudo(cmd)
	if err != nil {
		return res, fmt.Errorf("%s: %w", cmd, err)
	}
	if !res.Ok() {
		return res, fmt.Errorf("%s: exit %d: %s", cmd, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}
