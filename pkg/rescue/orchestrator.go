// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package rescue

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/parallelvirtualcluster/quorum-rescue/pkg/quorum"
)

const (
	safetyOverrideCmd = "ceph osd set noout"
	safetyRestoreCmd  = "ceph osd unset noout"
)

// Session is the top-level result of one recovery run. It is discarded at
// process exit; the only durable residue is the backup files left on the
// remote host and the printed restoration plan.
type Session struct {
	Cluster string
	Node    quorum.Node

	// Storage and Ensemble hold the per-subsystem outcomes, in the order
	// they were operated on.
	Storage  *Outcome
	Ensemble *Outcome

	// SafetyOverrideApplied records whether automatic data-redundancy
	// enforcement was suspended.
	SafetyOverrideApplied bool

	// StatusReport is the final best-effort cluster status text.
	StatusReport string
}

// Outcomes returns the subsystem results in processing order, skipping any
// that never ran.
func (s *Session) Outcomes() []*Outcome {
	var outs []*Outcome
	if s.Storage != nil {
		outs = append(outs, s.Storage)
	}
	if s.Ensemble != nil {
		outs = append(outs, s.Ensemble)
	}
	return outs
}

// Orchestrator runs the full degraded-quorum recovery against one node. The
// storage subsystem is processed before the coordination ensemble: storage
// must be writable again before the coordination layer, which may depend on
// it for service discovery, is restarted.
type Orchestrator struct {
	Cluster   string
	Node      quorum.Node
	BackupDir string

	// SettleDelay overrides the per-subsystem post-restart settle
	// interval; zero means the default.
	SettleDelay time.Duration

	sleep func(time.Duration)
}

// Run drives both subsystem recoveries, applies the cluster-wide safety
// override, and gathers the final status. The returned error is non-nil
// only for a session-fatal precondition failure; per-subsystem failures are
// recorded in the session and do not stop the other subsystem.
func (o *Orchestrator) Run(r quorum.Runner) (*Session, error) {
	if err := o.verifyReachable(r); err != nil {
		return nil, err
	}

	session := &Session{Cluster: o.Cluster, Node: o.Node}

	storage := &Step{
		Subsystem:   quorum.StorageSubsystem(o.Node, o.BackupDir),
		Codec:       quorum.MonmapCodec{},
		Node:        o.Node,
		SettleDelay: o.SettleDelay,
		sleep:       o.sleep,
	}
	session.Storage = storage.Run(r)

	ensemble := &Step{
		Subsystem:   quorum.EnsembleSubsystem(o.BackupDir),
		Codec:       quorum.EnsembleCodec{},
		Node:        o.Node,
		SettleDelay: o.SettleDelay,
		sleep:       o.sleep,
	}
	session.Ensemble = ensemble.Run(r)

	// The override is gated on the storage subsystem alone: leaving
	// redundancy enforcement active against a forced single-member
	// storage quorum risks further data loss even when the ensemble step
	// failed outright.
	if session.Storage.Reached(PhaseRestart) {
		if _, err := sudoChecked(r, safetyOverrideCmd); err != nil {
			log.Printf("safety override failed: %v\n", err)
		} else {
			session.SafetyOverrideApplied = true
			log.Printf("safety override applied: automatic data-redundancy enforcement suspended\n")
		}
	}

	session.StatusReport = o.collectStatus(r, session)
	return session, nil
}

// verifyReachable issues the single gate that must pass before any
// mutation: the cluster agent binary must be present on the target.
func (o *Orchestrator) verifyReachable(r quorum.Runner) error {
	res, err := r.Run(fmt.Sprintf("command -v %s", quorum.AgentBinary))
	if err != nil {
		return newError(KindPrecondition, "", "", fmt.Errorf("node %s unreachable: %w", o.Node.Hostname, err))
	}
	if !res.Ok() {
		return newError(KindPrecondition, "", "", fmt.Errorf("cluster agent %q not found on %s", quorum.AgentBinary, o.Node.Hostname))
	}
	return nil
}

// collectStatus queries the final cluster state, best effort: a status
// probe failure is reported inline, never fatal.
func (o *Orchestrator) collectStatus(r quorum.Runner, session *Session) string {
	var b strings.Builder

	for _, out := range session.Outcomes() {
		res, err := r.Sudo(fmt.Sprintf("systemctl is-active %s", out.Subsystem.ServiceUnit))
		state := strings.TrimSpace(res.Stdout)
		if err != nil {
			state = fmt.Sprintf("unknown (%v)", err)
		} else if state == "" {
			state = fmt.Sprintf("unknown (exit %d)", res.ExitCode)
		}
		fmt.Fprintf(&b, "%s (%s): %s\n", out.Subsystem.Name, out.Subsystem.ServiceUnit, state)
	}

	res, err := r.Sudo("ceph -s")
	switch {
	case err != nil:
		fmt.Fprintf(&b, "storage cluster status unavailable: %v\n", err)
	case !res.Ok():
		fmt.Fprintf(&b, "storage cluster status unavailable: exit %d: %s\n", res.ExitCode, strings.TrimSpace(res.Stderr))
	default:
		b.WriteString(res.Stdout)
	}

	return b.String()
}
