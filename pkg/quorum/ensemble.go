// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package quorum

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// EnsembleCodec handles the coordination-ensemble membership map: a
// line-oriented key/value configuration whose member declarations are
// `server.<id>=<host>:<port>:<port>` lines. Foreign members are commented
// out rather than deleted, preserving recoverability; non-member lines pass
// through unchanged.
type EnsembleCodec struct{}

var ensembleMemberPattern = regexp.MustCompile(`^server\.([^=\s]+)\s*=\s*(\S+)\s*$`)

// Backup copies the live map to the backup path and confirms the copy.
func (EnsembleCodec) Backup(r Runner, sub Subsystem, node Node) error {
	if _, err := sudoChecked(r, fmt.Sprintf("mkdir -p %s", dirOf(sub.BackupPath))); err != nil {
		return err
	}
	if _, err := sudoChecked(r, fmt.Sprintf("cp -a %s %s", sub.MapPath, sub.BackupPath)); err != nil {
		return err
	}
	if _, err := sudoChecked(r, fmt.Sprintf("test -f %s", sub.BackupPath)); err != nil {
		return fmt.Errorf("backup copy not confirmed: %w", err)
	}
	return nil
}

// Extract reads the live map text.
func (EnsembleCodec) Extract(r Runner, sub Subsystem, node Node) (string, error) {
	res, err := sudoChecked(r, fmt.Sprintf("cat %s", sub.MapPath))
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// ParseMembers returns the active member declarations. Commented-out
// declarations are already-removed members and are not reported.
func (EnsembleCodec) ParseMembers(raw string) ([]Member, error) {
	var members []Member

	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		m := ensembleMemberPattern.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		members = append(members, Member{ID: m[1], Addr: m[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

// FilterToSelf rewrites the map text: the member declaration matching the
// node is kept verbatim, every other active declaration is commented out,
// and all remaining lines pass through untouched. Re-applying the filter to
// already-filtered text is a no-op.
func (EnsembleCodec) FilterToSelf(r Runner, sub Subsystem, node Node, raw string) (string, []Member, error) {
	var (
		out      strings.Builder
		removed  []Member
		retained int
	)

	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		m := ensembleMemberPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}

		member := Member{ID: m[1], Addr: m[2]}
		if memberMatchesNode(member, node) {
			retained++
			out.WriteString(line)
		} else {
			removed = append(removed, member)
			out.WriteString("#" + line)
		}
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", nil, err
	}

	if retained == 0 {
		return "", nil, fmt.Errorf("retained member %s not declared in map", node.Shortname)
	}
	if retained > 1 {
		return "", nil, fmt.Errorf("%d member declarations match %s, want exactly one", retained, node.Shortname)
	}

	return out.String(), removed, nil
}

// Inject replaces the live map with the filtered text, first renaming the
// unedited original to its `.orig` sibling so it remains recoverable in
// place. A `.orig` left by an earlier partial run is never clobbered.
func (EnsembleCodec) Inject(r Runner, sub Subsystem, node Node, retained string) error {
	local, err := os.CreateTemp("", "quorum-rescue-*"+filepath.Base(sub.MapPath))
	if err != nil {
		return err
	}
	defer os.Remove(local.Name())

	if _, err := local.WriteString(retained); err != nil {
		local.Close()
		return err
	}
	if err := local.Close(); err != nil {
		return err
	}

	keepOrig := fmt.Sprintf("sh -c 'test -e %s || mv %s %s'", sub.OrigPath(), sub.MapPath, sub.OrigPath())
	if _, err := sudoChecked(r, keepOrig); err != nil {
		return err
	}

	if err := r.Upload(local.Name(), sub.MapPath); err != nil {
		return fmt.Errorf("failed to install filtered map at %s: %w", sub.MapPath, err)
	}
	return nil
}

// memberMatchesNode reports whether a declaration belongs to the retained
// node, by id or by the host portion of its address.
func memberMatchesNode(m Member, node Node) bool {
	if m.ID == node.Shortname {
		return true
	}
	host, _, _ := strings.Cut(m.Addr, ":")
	if host == node.Shortname || host == node.Hostname {
		return true
	}
	short, _, _ := strings.Cut(host, ".")
	return short == node.Shortname
}
