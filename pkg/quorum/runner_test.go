// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package quorum

import (
	"strings"

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
	return ssh.RunResult{}, nil
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

func sshResult(exit int, stdout, stderr string) ssh.RunResult {
	return ssh.RunResult{ExitCode: exit, Stdout: stdout, Stderr: stderr}
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
