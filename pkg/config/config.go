// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package config

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"
)

const DefaultConfigFilename = "hosts.yaml"

// Host describes one cluster node the operator can reach over SSH. The
// hostname must be fully qualified; the member identifier used by the
// consensus subsystems is its first DNS label.
type Host struct {
	Name       string `json:"name"`
	Host       string `json:"host"`
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`

	// BackupDir overrides the remote directory the pristine membership
	// maps are copied into before mutation.
	BackupDir string `json:"backup_dir,omitempty"`
}

// ParseHostsFromFile reads the hosts file at path. Both YAML and JSON are
// accepted; the file is a flat list of Host entries.
func ParseHostsFromFile(path string) ([]*Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file failed: %w", err)
	}

	var hosts []*Host
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		return nil, fmt.Errorf("unmarshal hosts file failed: %w", err)
	}

	return hosts, nil
}

// FindHost resolves target against the parsed hosts by entry name or by
// hostname.
func FindHost(hosts []*Host, target string) (*Host, error) {
	for _, h := range hosts {
		if h.Name == target || h.Host == target {
			return h, nil
		}
	}
	return nil, fmt.Errorf("host %q not found in hosts file", target)
}

// Shortname returns the member identifier for the host: the portion of the
// fully-qualified hostname before the first domain separator.
func (h *Host) Shortname() string {
	short, _, _ := strings.Cut(h.Host, ".")
	return short
}

func (h *Host) String() string {
	return fmt.Sprintf("%s (%s)", h.Name, h.Host)
}
