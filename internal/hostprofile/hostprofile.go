// Package hostprofile models the one-shot host capability probe
// (spec.md §3 "HostProfile", §6 "Host probe output grammar") and parses
// its line-oriented marker output into a structured profile.
package hostprofile

import "time"

// MaxNotes bounds the agent-authored path-fact list (spec.md §3).
const MaxNotes = 20

// Profile is spec.md §3's HostProfile: `{ host_id, hostname, username,
// os, os_version, shell, package_manager?, installed_tools[], notes[≤20],
// last_probed, last_updated }`.
type Profile struct {
	HostID         string
	Hostname       string
	Username       string
	OS             string
	OSVersion      string
	Shell          string
	PackageManager string
	InstalledTools []string
	Notes          []string
	LastProbed     time.Time
	LastUpdated    time.Time
}

// NewLocalProfile seeds a Profile for the local host, to be filled in
// by Parse once the probe script runs.
func NewLocalProfile() *Profile {
	return &Profile{HostID: "local"}
}

// NewRemoteProfile seeds a Profile for an SSH host identified as
// user@host (spec.md §3 "local" | "user@host").
func NewRemoteProfile(user, host string) *Profile {
	return &Profile{HostID: user + "@" + host}
}

// AddNote appends an agent-authored path fact, dropping the oldest note
// once the list reaches MaxNotes (spec.md §3 "notes[≤20]").
func (p *Profile) AddNote(note string) {
	p.Notes = append(p.Notes, note)
	if len(p.Notes) > MaxNotes {
		p.Notes = p.Notes[len(p.Notes)-MaxNotes:]
	}
	p.LastUpdated = time.Now()
}
