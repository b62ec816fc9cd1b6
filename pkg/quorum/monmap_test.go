// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package quorum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// typical strings output over an extracted map blob: format noise plus the
// member identifiers, some repeated.
const sampleMonmapStrings = `monmap
fsid
epoch
created
last_changed
pvchv1
pvchv2
pvchv3
pvchv1
v2:10.0.0.1:3300/0
`

func TestMonmapParseMembers(t *testing.T) {
	members, err := MonmapCodec{}.ParseMembers(sampleMonmapStrings)
	require.NoError(t, err)
	require.Equal(t, []Member{{ID: "pvchv1"}, {ID: "pvchv2"}, {ID: "pvchv3"}}, members)
}

func TestMonmapParseMembersEmpty(t *testing.T) {
	_, err := MonmapCodec{}.ParseMembers("monmap\nfsid\nepoch\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no member identifiers")
}

func TestMonmapFilterToSelfRemovesOthers(t *testing.T) {
	r := newFakeRunner()
	node := NewNode("pvchv1.cluster.local")
	sub := StorageSubsystem(node, "")

	retained, removed, err := MonmapCodec{}.FilterToSelf(r, sub, node, sampleMonmapStrings)
	require.NoError(t, err)
	require.Equal(t, "pvchv1", retained)
	require.Equal(t, []Member{{ID: "pvchv2"}, {ID: "pvchv3"}}, removed)

	require.Equal(t, []string{
		"sudo monmaptool /tmp/monmap --rm pvchv2",
		"sudo monmaptool /tmp/monmap --rm pvchv3",
	}, r.commands)
}

func TestMonmapFilterToSelfIdempotent(t *testing.T) {
	r := newFakeRunner()
	node := NewNode("pvchv1.cluster.local")
	sub := StorageSubsystem(node, "")

	// already-filtered input: the retained member is the only one left
	retained, removed, err := MonmapCodec{}.FilterToSelf(r, sub, node, "monmap\npvchv1\n")
	require.NoError(t, err)
	require.Equal(t, "pvchv1", retained)
	require.Empty(t, removed)
	require.Empty(t, r.commands)
}

func TestMonmapFilterToSelfRetainedAbsent(t *testing.T) {
	r := newFakeRunner()
	node := NewNode("pvchv9.cluster.local")
	sub := StorageSubsystem(node, "")

	_, _, err := MonmapCodec{}.FilterToSelf(r, sub, node, sampleMonmapStrings)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not present")
	// never issue a removal when the retained set would end up empty
	require.Empty(t, r.commands)
}

func TestMonmapFilterToSelfRemovalFailureStops(t *testing.T) {
	r := newFakeRunner()
	r.results["--rm pvchv2"] = sshResult(1, "", "monmaptool: removing nonexistent mon")
	node := NewNode("pvchv1.cluster.local")
	sub := StorageSubsystem(node, "")

	_, removed, err := MonmapCodec{}.FilterToSelf(r, sub, node, sampleMonmapStrings)
	require.Error(t, err)
	require.Empty(t, removed)
	// the sequence stops at the first failed removal
	require.Len(t, r.commandsContaining("--rm"), 1)
}

func TestMonmapBackupSequence(t *testing.T) {
	r := newFakeRunner()
	node := NewNode("pvchv1.cluster.local")
	sub := StorageSubsystem(node, "")

	require.NoError(t, MonmapCodec{}.Backup(r, sub, node))
	require.Equal(t, []string{
		"sudo mkdir -p /var/backups/quorum-rescue",
		"sudo ceph-mon -i pvchv1 --extract-monmap /var/backups/quorum-rescue/monmap",
		"sudo test -f /var/backups/quorum-rescue/monmap",
	}, r.commands)
}

func TestMonmapInject(t *testing.T) {
	r := newFakeRunner()
	node := NewNode("pvchv1.cluster.local")
	sub := StorageSubsystem(node, "")

	require.NoError(t, MonmapCodec{}.Inject(r, sub, node, "pvchv1"))
	require.Equal(t, []string{"sudo ceph-mon -i pvchv1 --inject-monmap /tmp/monmap"}, r.commands)
}

func TestNewNode(t *testing.T) {
	node := NewNode("pvchv2.cluster.local")
	require.Equal(t, "pvchv2.cluster.local", node.Hostname)
	require.Equal(t, "pvchv2", node.Shortname)
}

func TestSubsystemDefaults(t *testing.T) {
	node := NewNode("pvchv1.cluster.local")

	storage := StorageSubsystem(node, "")
	require.Equal(t, "ceph-mon@pvchv1", storage.ServiceUnit)
	require.Equal(t, "/var/backups/quorum-rescue/monmap", storage.BackupPath)

	ensemble := EnsembleSubsystem("/srv/backups")
	require.Equal(t, "zookeeper", ensemble.ServiceUnit)
	require.Equal(t, "/srv/backups/zoo.cfg", ensemble.BackupPath)
	require.Equal(t, "/etc/zookeeper/conf/zoo.cfg.orig", ensemble.OrigPath())
}
