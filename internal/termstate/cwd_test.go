package termstate

import (
	"os"
	"testing"
)

func TestResolveCWDPath(t *testing.T) {
	if got := ResolveCWDPath("/a/b", ".."); got != "/a" {
		t.Errorf("got %q, want /a", got)
	}
	if got := ResolveCWDPath("/a/b", "/x"); got != "/x" {
		t.Errorf("got %q, want /x", got)
	}
	if got := ResolveCWDPath(`C:\u`, `..\v`); got != `C:\v` {
		t.Errorf("got %q, want C:\\v", got)
	}
	home := os.Getenv("HOME")
	if home == "" {
		t.Skip("HOME not set")
	}
	if got := ResolveCWDPath("/anywhere", ""); got != home {
		t.Errorf("got %q, want %q", got, home)
	}
}

func TestResolveCWDPath_RelativeJoin(t *testing.T) {
	if got := ResolveCWDPath("/home/me", "project"); got != "/home/me/project" {
		t.Errorf("got %q", got)
	}
	if got := ResolveCWDPath("/home/me/project", "../other"); got != "/home/me/other" {
		t.Errorf("got %q", got)
	}
}
