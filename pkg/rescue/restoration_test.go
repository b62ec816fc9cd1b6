// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package rescue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parallelvirtualcluster/quorum-rescue/pkg/quorum"
)

func fullSession() *Session {
	node := quorum.NewNode("pvchv1.cluster.local")
	storage := quorum.StorageSubsystem(node, "")
	ensemble := quorum.EnsembleSubsystem("")

	return &Session{
		Cluster: "testcluster",
		Node:    node,
		Storage: &Outcome{
			Subsystem:      storage,
			SucceededSteps: phases,
			BackupPath:     storage.BackupPath,
			Removed:        []quorum.Member{{ID: "pvchv2"}, {ID: "pvchv3"}},
		},
		Ensemble: &Outcome{
			Subsystem:      ensemble,
			SucceededSteps: phases,
			BackupPath:     ensemble.BackupPath,
			Removed:        []quorum.Member{{ID: "pvchv2"}, {ID: "pvchv3"}},
		},
		SafetyOverrideApplied: true,
	}
}

func TestRestorationPlanFullRun(t *testing.T) {
	plan := RestorationPlan(fullSession())

	// the plan references the pre-filter backup paths, never the live maps
	require.Contains(t, plan, "ceph-mon -i pvchv1 --inject-monmap /var/backups/quorum-rescue/monmap")
	require.Contains(t, plan, "cp -a /var/backups/quorum-rescue/zoo.cfg /etc/zookeeper/conf/zoo.cfg")
	require.Contains(t, plan, "systemctl stop ceph-mon@pvchv1")
	require.Contains(t, plan, "systemctl start zookeeper")
	require.Contains(t, plan, "ceph osd unset noout")
	require.Contains(t, plan, "manual reconciliation")
}

func TestRestorationPlanEnsembleBackupFailed(t *testing.T) {
	session := fullSession()
	session.Ensemble = &Outcome{
		Subsystem:      session.Ensemble.Subsystem,
		SucceededSteps: []Phase{PhaseStop},
		FailureReason:  newError(KindBackup, PhaseBackup, "coordination-ensemble", errors.New("read-only file system")),
	}

	plan := RestorationPlan(session)
	require.Contains(t, plan, "--inject-monmap /var/backups/quorum-rescue/monmap")
	require.Contains(t, plan, "coordination-ensemble: no backup was taken")
	require.NotContains(t, plan, "cp -a /var/backups/quorum-rescue/zoo.cfg")
}

func TestRestorationPlanNothingMutated(t *testing.T) {
	node := quorum.NewNode("pvchv1.cluster.local")
	session := &Session{
		Cluster:  "testcluster",
		Node:     node,
		Storage:  &Outcome{Subsystem: quorum.StorageSubsystem(node, "")},
		Ensemble: &Outcome{Subsystem: quorum.EnsembleSubsystem("")},
	}

	plan := RestorationPlan(session)
	require.Contains(t, plan, "No membership map was modified")
	require.NotContains(t, plan, "unset noout")
}

func TestSummary(t *testing.T) {
	session := fullSession()
	session.Ensemble.FailureReason = newError(KindBackup, PhaseBackup, "coordination-ensemble", errors.New("read-only file system"))

	text := Summary(session)
	require.Contains(t, text, "storage-quorum")
	require.Contains(t, text, "all phases complete")
	require.Contains(t, text, "removed: pvchv2, pvchv3")
	require.Contains(t, text, "failed at backup: read-only file system")
	require.Contains(t, text, "safety override applied")
}
