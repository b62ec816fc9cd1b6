// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

// Package rescue drives the forced promotion of a single surviving node
// into standalone, quorum-less operation across both consensus subsystems,
// and renders the command sequence that reverses it.
package rescue

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/parallelvirtualcluster/quorum-rescue/pkg/quorum"
	"github.com/parallelvirtualcluster/quorum-rescue/pkg/ssh"
)

// Phase names one transition of a subsystem recovery. The sequence is
// strictly ordered with no skipping; the first failure stops the subsystem
// and records which phase it died in.
type Phase string

const (
	PhaseStop    Phase = "stop"
	PhaseBackup  Phase = "backup"
	PhaseExtract Phase = "extract"
	PhaseFilter  Phase = "filter"
	PhaseInject  Phase = "inject"
	PhaseRestart Phase = "restart"
	PhaseVerify  Phase = "verify"
)

// phases in execution order.
var phases = []Phase{PhaseStop, PhaseBackup, PhaseExtract, PhaseFilter, PhaseInject, PhaseRestart, PhaseVerify}

// Outcome is the per-subsystem result of one recovery attempt.
type Outcome struct {
	Subsystem      quorum.Subsystem
	SucceededSteps []Phase
	FailureReason  *Error
	// BackupPath echoes the subsystem's backup location once the backup
	// phase has been confirmed, for the restoration plan.
	BackupPath string
	// Removed lists the members filtered out of the map.
	Removed []quorum.Member
}

// Reached reports whether the named phase completed.
func (o *Outcome) Reached(p Phase) bool {
	for _, s := range o.SucceededSteps {
		if s == p {
			return true
		}
	}
	return false
}

// Step applies the stop, backup, extract, filter, inject, restart, verify
// sequence for one subsystem.
type Step struct {
	Subsystem quorum.Subsystem
	Codec     quorum.Codec
	Node      quorum.Node

	// SettleDelay is the fixed interval after restart that allows the
	// service to complete single-node quorum formation. It is a
	// deliberate fixed delay, not a correctness guarantee.
	SettleDelay time.Duration

	// sleep is a test seam; nil means time.Sleep.
	sleep func(time.Duration)
}

const defaultSettleDelay = 5 * time.Second

// Run executes the sequence against r. It never panics out of a phase: the
// first failure is recorded in the outcome and the remaining phases are
// skipped, leaving whatever partial state the restoration plan describes.
func (s *Step) Run(r quorum.Runner) *Outcome {
	out := &Outcome{Subsystem: s.Subsystem}

	var (
		raw      string
		retained string
	)

	for _, phase := range phases {
		var err error

		switch phase {
		case PhaseStop:
			// stopping an already stopped unit exits zero, so a
			// re-run after partial failure passes through here
			err = s.serviceControl(r, "stop")
		case PhaseBackup:
			if err = s.Codec.Backup(r, s.Subsystem, s.Node); err == nil {
				out.BackupPath = s.Subsystem.BackupPath
			}
		case PhaseExtract:
			raw, err = s.Codec.Extract(r, s.Subsystem, s.Node)
		case PhaseFilter:
			retained, out.Removed, err = s.Codec.FilterToSelf(r, s.Subsystem, s.Node, raw)
		case PhaseInject:
			err = s.Codec.Inject(r, s.Subsystem, s.Node, retained)
		case PhaseRestart:
			err = s.serviceControl(r, "start")
		case PhaseVerify:
			err = s.verify(r)
		}

		if err != nil {
			out.FailureReason = newError(kindFor(phase), phase, s.Subsystem.Name, err)
			log.Printf("%s: %s phase failed: %v\n", s.Subsystem.Name, phase, err)
			return out
		}

		out.SucceededSteps = append(out.SucceededSteps, phase)
		log.Printf("%s: %s phase complete\n", s.Subsystem.Name, phase)
	}

	return out
}

func (s *Step) serviceControl(r quorum.Runner, action string) error {
	_, err := sudoChecked(r, fmt.Sprintf("systemctl %s %s", action, s.Subsystem.ServiceUnit))
	return err
}

func (s *Step) verify(r quorum.Runner) error {
	delay := s.SettleDelay
	if delay == 0 {
		delay = defaultSettleDelay
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(delay)

	_, err := sudoChecked(r, fmt.Sprintf("systemctl is-active %s", s.Subsystem.ServiceUnit))
	return err
}

// kindFor maps a failed phase to its error classification.
func kindFor(p Phase) Kind {
	switch p {
	case PhaseBackup:
		return KindBackup
	case PhaseExtract, PhaseFilter:
		return KindCodec
	case PhaseInject:
		return KindInjection
	default:
		return KindServiceControl
	}
}

// sudoChecked runs cmd privileged and folds transport errors and non-zero
// exits into one error carrying the remote stderr.
func sudoChecked(r quorum.Runner, cmd string) (ssh.RunResult, error) {
	res, err := r.Sudo(cmd)
	if err != nil {
		return res, fmt.Errorf("%s: %w", cmd, err)
	}
	if !res.Ok() {
		return res, fmt.Errorf("%s: exit %d: %s", cmd, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}
