// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package rescue

import (
	"fmt"
	"strings"

	"github.com/parallelvirtualcluster/quorum-rescue/pkg/quorum"
)

// RestorationPlan renders the literal command sequence an operator must run
// on the node to reverse the forced change and restore quorum. It is pure
// formatting over the backup locations recorded during recovery and
// performs no remote calls, so it can always be emitted, whatever state the
// run actually reached.
func RestorationPlan(session *Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Restoration plan for %s (cluster %s):\n", session.Node.Hostname, session.Cluster)

	restorable := 0
	for _, out := range session.Outcomes() {
		// nothing to restore unless the pristine map was copied aside
		if out.BackupPath == "" {
			fmt.Fprintf(&b, "\n%s: no backup was taken; nothing to restore.\n", out.Subsystem.Name)
			continue
		}
		restorable++

		fmt.Fprintf(&b, "\n%s:\n", out.Subsystem.Name)
		fmt.Fprintf(&b, "  systemctl stop %s\n", out.Subsystem.ServiceUnit)
		switch out.Subsystem.Name {
		case "storage-quorum":
			fmt.Fprintf(&b, "  ceph-mon -i %s --inject-monmap %s\n", session.Node.Shortname, out.BackupPath)
		default:
			fmt.Fprintf(&b, "  cp -a %s %s   # or: mv %s %s\n",
				out.BackupPath, out.Subsystem.MapPath, out.Subsystem.OrigPath(), out.Subsystem.MapPath)
		}
		fmt.Fprintf(&b, "  systemctl start %s\n", out.Subsystem.ServiceUnit)
	}

	if session.SafetyOverrideApplied {
		fmt.Fprintf(&b, "\nOnce the storage quorum is restored:\n  %s\n", safetyRestoreCmd)
	}

	if restorable == 0 {
		fmt.Fprintf(&b, "\nNo membership map was modified on %s.\n", session.Node.Hostname)
		return b.String()
	}

	b.WriteString("\nThe other former members still believe they are part of the original quorum.\n")
	b.WriteString("Rejoining them requires manual reconciliation; do not restart their services\n")
	b.WriteString("until the restored maps agree.\n")
	return b.String()
}

// Summary renders the per-subsystem outcome table for the final report.
func Summary(session *Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Recovery summary for %s (cluster %s):\n", session.Node.Hostname, session.Cluster)
	for _, out := range session.Outcomes() {
		if out.FailureReason == nil {
			fmt.Fprintf(&b, "  %-22s all phases complete", out.Subsystem.Name)
		} else {
			fmt.Fprintf(&b, "  %-22s failed at %s: %v", out.Subsystem.Name, out.FailureReason.Phase, out.FailureReason.Err)
		}
		if len(out.Removed) > 0 {
			fmt.Fprintf(&b, " (removed: %s)", joinMemberIDs(out.Removed))
		}
		b.WriteByte('\n')
	}

	if session.SafetyOverrideApplied {
		b.WriteString("  safety override applied: automatic data-redundancy enforcement suspended\n")
	} else {
		b.WriteString("  safety override not applied\n")
	}
	return b.String()
}

func joinMemberIDs(members []quorum.Member) string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return strings.Join(ids, ", ")
}
