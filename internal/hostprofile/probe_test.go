package hostprofile

import "testing"

func TestParse_Unix(t *testing.T) {
	p := NewLocalProfile()
	output := `
some noise line that should be ignored
[OS] Linux
[OS_VERSION] 6.1.0
[SHELL] /bin/bash
[HOSTNAME] devbox
[USER] alice
[PKG_APT] apt
[HAS_GIT] yes
[HAS_DOCKER] yes
[HAS_VIM] yes
`
	Parse(p, output)

	if p.OS != "Linux" || p.OSVersion != "6.1.0" || p.Shell != "/bin/bash" {
		t.Fatalf("identity fields not parsed: %+v", p)
	}
	if p.Hostname != "devbox" || p.Username != "alice" {
		t.Fatalf("hostname/user not parsed: %+v", p)
	}
	if p.PackageManager != "apt" {
		t.Fatalf("package manager not parsed: %q", p.PackageManager)
	}

	want := map[string]bool{"git": true, "docker": true, "vim": true}
	if len(p.InstalledTools) != len(want) {
		t.Fatalf("tools = %v, want 3 entries", p.InstalledTools)
	}
	for _, tool := range p.InstalledTools {
		if !want[tool] {
			t.Errorf("unexpected tool %q", tool)
		}
	}
	if p.LastProbed.IsZero() || p.LastUpdated.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestParse_Idempotent_NoDuplicateTools(t *testing.T) {
	p := NewLocalProfile()
	Parse(p, "[HAS_GIT] yes\n")
	Parse(p, "[HAS_GIT] yes\n[HAS_NODE] yes\n")

	count := 0
	for _, tool := range p.InstalledTools {
		if tool == "git" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("git should appear once, found %d times in %v", count, p.InstalledTools)
	}
}

func TestAddNote_CapsAtMax(t *testing.T) {
	p := NewLocalProfile()
	for i := 0; i < MaxNotes+5; i++ {
		p.AddNote("note")
	}
	if len(p.Notes) != MaxNotes {
		t.Errorf("notes len = %d, want %d", len(p.Notes), MaxNotes)
	}
}

func TestNewRemoteProfile_HostID(t *testing.T) {
	p := NewRemoteProfile("alice", "example.com")
	if p.HostID != "alice@example.com" {
		t.Errorf("HostID = %q", p.HostID)
	}
}
