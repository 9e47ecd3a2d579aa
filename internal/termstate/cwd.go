package termstate

import (
	"os"
	"path"
	"strings"
)

// ResolveCWDPath statically resolves a cd-family target against the
// current CWD when the driver can't report the real directory (spec.md
// §4.4 "path resolution", testable property R1). It honors `~`,
// absolute paths (Unix and Windows drive-letter), `.` and `..`, and
// resolving against an empty target yields $HOME.
func ResolveCWDPath(cwd, target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return homeDir()
	}
	if target == "~" {
		return homeDir()
	}
	if strings.HasPrefix(target, "~/") {
		return joinUnix(homeDir(), target[2:])
	}

	if isWindowsPath(cwd) || isWindowsPath(target) {
		return resolveWindows(cwd, target)
	}

	if strings.HasPrefix(target, "/") {
		return path.Clean(target)
	}

	return joinUnix(cwd, target)
}

func joinUnix(base, rel string) string {
	if base == "" {
		base = "/"
	}
	return path.Clean(path.Join(base, rel))
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h
	}
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return "/"
}

func isWindowsPath(p string) bool {
	return len(p) >= 2 && p[1] == ':' && isAlpha(p[0])
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// resolveWindows applies the same join/normalize semantics as the Unix
// path but with backslash separators and a drive-letter root, e.g.
// resolve("C:\u", "..\v") = "C:\v".
func resolveWindows(cwd, target string) string {
	if isWindowsPath(target) {
		return cleanWindows(target)
	}

	sepCwd := strings.ReplaceAll(cwd, "/", "\\")
	parts := strings.Split(sepCwd, "\\")
	for _, seg := range strings.Split(strings.ReplaceAll(target, "/", "\\"), "\\") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(parts) > 1 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	return cleanWindows(strings.Join(parts, "\\"))
}

func cleanWindows(p string) string {
	p = strings.ReplaceAll(p, "/", "\\")
	if len(p) >= 2 && p[1] == ':' && !strings.HasSuffix(p, "\\") {
		// keep as-is; path.Clean doesn't understand drive letters, so
		// we normalize doubled separators by hand.
	}
	for strings.Contains(p, "\\\\") {
		p = strings.ReplaceAll(p, "\\\\", "\\")
	}
	if len(p) > 3 && strings.HasSuffix(p, "\\") {
		p = strings.TrimRight(p, "\\")
	}
	return p
}
