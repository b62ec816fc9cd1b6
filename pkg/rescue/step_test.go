// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package rescue

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parallelvirtualcluster/quorum-rescue/pkg/quorum"
	"github.com/parallelvirtualcluster/quorum-rescue/pkg/ssh"
)

// fakeRunner records every issued command and answers from a table of
// substring-matched canned results.
type fakeRunner struct {
	commands []string
	uploads  []string
	results  map[string]ssh.RunResult
	errs     map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: map[string]ssh.RunResult{},
		errs:    map[string]error{},
	}
}

func (f *fakeRunner) Run(cmd string) (ssh.RunResult, error) {
	f.commands = append(f.commands, cmd)
	for pattern, err := range f.errs {
		if strings.Contains(cmd, pattern) {
			return ssh.RunResult{}, err
		}
	}
	for pattern, res := range f.results {
		if strings.Contains(cmd, pattern) {
			return res, nil
		}
	}
	return ssh.RunResult{Stdout: "active\n"}, nil
}

func (f *fakeRunner) Sudo(cmd string) (ssh.RunResult, error) {
	return f.Run("sudo " + cmd)
}

func (f *fakeRunner) Upload(localPath, remotePath string) error {
	f.uploads = append(f.uploads, remotePath)
	return nil
}

func (f *fakeRunner) Download(remotePath, localPath string) error {
	return nil
}

func (f *fakeRunner) commandsContaining(substr string) []string {
	var matched []string
	for _, c := range f.commands {
		if strings.Contains(c, substr) {
			matched = append(matched, c)
		}
	}
	return matched
}

// fakeCodec lets a test fail the sequence at a chosen phase.
type fakeCodec struct {
	failBackup  error
	failExtract error
	failFilter  error
	failInject  error
	calls       []string
}

func (c *fakeCodec) Backup(r quorum.Runner, sub quorum.Subsystem, node quorum.Node) error {
	c.calls = append(c.calls, "backup")
	return c.failBackup
}

func (c *fakeCodec) Extract(r quorum.Runner, sub quorum.Subsystem, node quorum.Node) (string, error) {
	c.calls = append(c.calls, "extract")
	return "raw", c.failExtract
}

func (c *fakeCodec) ParseMembers(raw string) ([]quorum.Member, error) {
	return []quorum.Member{{ID: "pvchv1"}}, nil
}

func (c *fakeCodec) FilterToSelf(r quorum.Runner, sub quorum.Subsystem, node quorum.Node, raw string) (string, []quorum.Member, error) {
	c.calls = append(c.calls, "filter")
	if c.failFilter != nil {
		return "", nil, c.failFilter
	}
	return node.Shortname, []quorum.Member{{ID: "pvchv2"}}, nil
}

func (c *fakeCodec) Inject(r quorum.Runner, sub quorum.Subsystem, node quorum.Node, retained string) error {
	c.calls = append(c.calls, "inject")
	return c.failInject
}

func newStep(codec quorum.Codec) (*Step, *time.Duration) {
	var slept time.Duration
	node := quorum.NewNode("pvchv1.cluster.local")
	return &Step{
		Subsystem:   quorum.StorageSubsystem(node, ""),
		Codec:       codec,
		Node:        node,
		SettleDelay: 3 * time.Second,
		sleep:       func(d time.Duration) { slept = d },
	}, &slept
}

func TestStepRunsAllPhasesInOrder(t *testing.T) {
	codec := &fakeCodec{}
	step, slept := newStep(codec)
	r := newFakeRunner()

	out := step.Run(r)
	require.Nil(t, out.FailureReason)
	require.Equal(t, phases, out.SucceededSteps)
	require.Equal(t, []string{"backup", "extract", "filter", "inject"}, codec.calls)
	require.Equal(t, step.Subsystem.BackupPath, out.BackupPath)
	require.Equal(t, []quorum.Member{{ID: "pvchv2"}}, out.Removed)

	// stop precedes start, and the settle delay ran before the state check
	require.Equal(t, "sudo systemctl stop ceph-mon@pvchv1", r.commands[0])
	require.Contains(t, r.commands, "sudo systemctl start ceph-mon@pvchv1")
	require.Contains(t, r.commands, "sudo systemctl is-active ceph-mon@pvchv1")
	require.Equal(t, 3*time.Second, *slept)
}

func TestStepBackupFailureLeavesMapUntouched(t *testing.T) {
	codec := &fakeCodec{failBackup: errors.New("no space left on device")}
	step, _ := newStep(codec)
	r := newFakeRunner()

	out := step.Run(r)
	require.NotNil(t, out.FailureReason)
	require.Equal(t, KindBackup, out.FailureReason.Kind)
	require.Equal(t, PhaseBackup, out.FailureReason.Phase)
	require.Equal(t, []Phase{PhaseStop}, out.SucceededSteps)
	require.Empty(t, out.BackupPath)

	// no extraction, filtering or injection after a failed backup, and the
	// service is left stopped for the operator
	require.Equal(t, []string{"backup"}, codec.calls)
	require.Empty(t, r.commandsContaining("systemctl start"))
}

func TestStepStopFailure(t *testing.T) {
	codec := &fakeCodec{}
	step, _ := newStep(codec)
	r := newFakeRunner()
	r.results["systemctl stop"] = ssh.RunResult{ExitCode: 1, Stderr: "unit not loaded"}

	out := step.Run(r)
	require.NotNil(t, out.FailureReason)
	require.Equal(t, KindServiceControl, out.FailureReason.Kind)
	require.Equal(t, PhaseStop, out.FailureReason.Phase)
	require.Empty(t, codec.calls)
}

func TestStepFilterFailureIsCodecError(t *testing.T) {
	codec := &fakeCodec{failFilter: errors.New("retained member absent")}
	step, _ := newStep(codec)

	out := step.Run(newFakeRunner())
	require.NotNil(t, out.FailureReason)
	require.Equal(t, KindCodec, out.FailureReason.Kind)
	require.Equal(t, PhaseFilter, out.FailureReason.Phase)
	require.Equal(t, []string{"backup", "extract", "filter"}, codec.calls)
	// the backup is still recorded for the restoration plan
	require.NotEmpty(t, out.BackupPath)
}

func TestStepInjectFailure(t *testing.T) {
	codec := &fakeCodec{failInject: errors.New("inject rejected")}
	step, _ := newStep(codec)
	r := newFakeRunner()

	out := step.Run(r)
	require.Equal(t, KindInjection, out.FailureReason.Kind)
	require.False(t, out.Reached(PhaseRestart))
	require.Empty(t, r.commandsContaining("systemctl start"))
}

func TestStepVerifyFailure(t *testing.T) {
	codec := &fakeCodec{}
	step, _ := newStep(codec)
	r := newFakeRunner()
	r.results["is-active"] = ssh.RunResult{ExitCode: 3, Stdout: "failed\n"}

	out := step.Run(r)
	require.Equal(t, KindServiceControl, out.FailureReason.Kind)
	require.Equal(t, PhaseVerify, out.FailureReason.Phase)
	// restart did complete; only verification failed
	require.True(t, out.Reached(PhaseRestart))
}
