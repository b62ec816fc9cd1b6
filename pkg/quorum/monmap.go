// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package quorum

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
)

// MonmapCodec handles the storage-quorum membership map. The map is an
// opaque binary blob understood only by the subsystem's own tooling, so the
// codec delegates extraction, member removal and injection to remote tool
// invocations and enumerates member identifiers with a generic
// string-extraction pass over the blob. The scrape lives entirely inside
// this codec so a structured parser can replace it without touching
// orchestration.
type MonmapCodec struct{}

// identifier-shaped tokens; everything else in the strings output is noise.
var monMemberPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{1,62}$`)

// tokens the map format itself emits that can never be member names.
var monScrapeStoplist = map[string]struct{}{
	"monmap":          {},
	"ceph":            {},
	"fsid":            {},
	"epoch":           {},
	"created":         {},
	"modified":        {},
	"last_changed":    {},
	"min_mon_release": {},
}

// Backup extracts the pristine map straight to the backup path via the
// subsystem's tooling and confirms it exists. The live map itself lives
// inside the monitor store and is never touched directly.
func (MonmapCodec) Backup(r Runner, sub Subsystem, node Node) error {
	if _, err := sudoChecked(r, fmt.Sprintf("mkdir -p %s", dirOf(sub.BackupPath))); err != nil {
		return err
	}
	if _, err := sudoChecked(r, fmt.Sprintf("ceph-mon -i %s --extract-monmap %s", node.Shortname, sub.BackupPath)); err != nil {
		return err
	}
	if _, err := sudoChecked(r, fmt.Sprintf("test -f %s", sub.BackupPath)); err != nil {
		return fmt.Errorf("backup copy not confirmed: %w", err)
	}
	return nil
}

// Extract seeds the tooling work path from the confirmed backup and returns
// the string-extraction pass over the blob.
func (MonmapCodec) Extract(r Runner, sub Subsystem, node Node) (string, error) {
	// Working from the pristine backup keeps a re-run after partial
	// failure from compounding an earlier half-edited map.
	if _, err := sudoChecked(r, fmt.Sprintf("cp -a %s %s", sub.BackupPath, sub.MapPath)); err != nil {
		return "", err
	}
	res, err := sudoChecked(r, fmt.Sprintf("strings %s", sub.MapPath))
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// ParseMembers picks the member identifiers out of the strings output:
// identifier-shaped tokens not known to be format noise, deduplicated in
// order of appearance.
func (MonmapCodec) ParseMembers(raw string) ([]Member, error) {
	var (
		members []Member
		seen    = map[string]struct{}{}
	)

	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		token := strings.TrimSpace(scanner.Text())
		if !monMemberPattern.MatchString(token) {
			continue
		}
		if _, stop := monScrapeStoplist[strings.ToLower(token)]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		members = append(members, Member{ID: token})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(members) == 0 {
		return nil, fmt.Errorf("no member identifiers found in extracted map")
	}
	return members, nil
}

// FilterToSelf removes every non-retained member from the work copy, one
// tool invocation each. Already-filtered input yields zero removals.
func (c MonmapCodec) FilterToSelf(r Runner, sub Subsystem, node Node, raw string) (string, []Member, error) {
	members, err := c.ParseMembers(raw)
	if err != nil {
		return "", nil, err
	}

	found := false
	for _, m := range members {
		if m.ID == node.Shortname {
			found = true
			break
		}
	}
	if !found {
		// Removing everything would leave a map unable to form even a
		// single-node quorum.
		return "", nil, fmt.Errorf("retained member %s not present in map (members: %v)", node.Shortname, memberIDs(members))
	}

	var removed []Member
	for _, m := range members {
		if m.ID == node.Shortname {
			continue
		}
		if _, err := sudoChecked(r, fmt.Sprintf("monmaptool %s --rm %s", sub.MapPath, m.ID)); err != nil {
			return "", removed, err
		}
		removed = append(removed, m)
	}

	return node.Shortname, removed, nil
}

// Inject installs the edited work copy as the active map.
func (MonmapCodec) Inject(r Runner, sub Subsystem, node Node, retained string) error {
	_, err := sudoChecked(r, fmt.Sprintf("ceph-mon -i %s --inject-monmap %s", node.Shortname, sub.MapPath))
	return err
}

func memberIDs(members []Member) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}

func dirOf(p string) string {
	if i := strings.LastIndex(p, "/"); i > 0 {
		return p[:i]
	}
	return "/"
}
