// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package quorum

// Member is one quorum participant as recorded in a subsystem's membership
// map. Addr is populated only for the text-based subsystem.
type Member struct {
	ID   string
	Addr string
}

// Codec reduces one subsystem's membership map to a single retained member.
// Both implementations are idempotent with respect to already-filtered
// input, because a recovery may be re-run after a partial failure.
type Codec interface {
	// Backup copies the pristine membership map to the subsystem's backup
	// path and confirms the copy exists. Nothing else may run until it
	// succeeds.
	Backup(r Runner, sub Subsystem, node Node) error

	// Extract obtains the raw map in the codec's working representation:
	// the full file text for the ensemble, a string-extraction pass over
	// the binary blob for storage.
	Extract(r Runner, sub Subsystem, node Node) (string, error)

	// ParseMembers enumerates the quorum participants recorded in raw.
	ParseMembers(raw string) ([]Member, error)

	// FilterToSelf computes the single-member map retaining only the
	// node's entry and reports the members that were removed. The
	// retained set is exactly one entry and never empty.
	FilterToSelf(r Runner, sub Subsystem, node Node, raw string) (retained string, removed []Member, err error)

	// Inject installs the filtered map as the subsystem's active one.
	Inject(r Runner, sub Subsystem, node Node, retained string) error
}
