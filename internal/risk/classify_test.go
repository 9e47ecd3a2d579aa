package risk

import "testing"

func TestClassify_Levels(t *testing.T) {
	cases := []struct {
		name    string
		command string
		want    Level
	}{
		{"root delete", "rm -rf /", Blocked},
		{"scoped delete", "rm -rf /home/me/tmp", Dangerous},
		{"mkfs", "mkfs.ext4 /dev/sdb1", Blocked},
		{"dd to device", "dd if=/dev/zero of=/dev/sda", Blocked},
		{"kill", "kill -9 1234", Dangerous},
		{"install", "apt install curl", Moderate},
		{"status check", "df -h", Safe},
		{"mkdir", "mkdir build", Moderate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Classify(tc.command)
			if got != tc.want {
				t.Errorf("Classify(%q) level = %s, want %s", tc.command, got, tc.want)
			}
		})
	}
}

func TestClassify_Handling(t *testing.T) {
	t.Run("ping gets -c 4", func(t *testing.T) {
		_, h := Classify("ping 8.8.8.8")
		if h.Kind != HandlingAutoFix || h.Rewritten != "ping -c 4 8.8.8.8" {
			t.Errorf("got %+v", h)
		}
	})

	t.Run("apt install gets -y and is moderate", func(t *testing.T) {
		level, h := Classify("apt install curl")
		if level != Moderate {
			t.Errorf("level = %s, want moderate", level)
		}
		if h.Kind != HandlingAutoFix || h.Rewritten != "apt install -y curl" {
			t.Errorf("got %+v", h)
		}
	})

	t.Run("less file becomes cat pipe head", func(t *testing.T) {
		_, h := Classify("less /var/log/syslog")
		if h.Kind != HandlingAutoFix || h.Rewritten != "cat /var/log/syslog | head -200" {
			t.Errorf("got %+v", h)
		}
	})

	t.Run("vim is blocked", func(t *testing.T) {
		_, h := Classify("vim foo")
		if h.Kind != HandlingBlock {
			t.Errorf("got %+v, want block", h)
		}
	})

	t.Run("tail -f is fire and forget", func(t *testing.T) {
		_, h := Classify("tail -f /var/log/app.log")
		if h.Kind != HandlingFireAndForget {
			t.Errorf("got %+v, want fire_and_forget", h)
		}
	})

	t.Run("plain command is allowed", func(t *testing.T) {
		_, h := Classify("ls -la")
		if h.Kind != HandlingAllow {
			t.Errorf("got %+v, want allow", h)
		}
	})
}

func TestClassify_IsPure(t *testing.T) {
	commands := []string{"rm -rf /", "ping 1.1.1.1", "ls -la", "vim x"}
	for _, c := range commands {
		l1, h1 := Classify(c)
		l2, h2 := Classify(c)
		if l1 != l2 || h1 != h2 {
			t.Errorf("Classify(%q) is not pure: (%v,%v) != (%v,%v)", c, l1, h1, l2, h2)
		}
	}
}

func TestIsPrivileged(t *testing.T) {
	cases := map[string]bool{
		"sudo systemctl restart nginx": true,
		"su -c whoami":                 true,
		"doas ls":                      true,
		"ls -la":                       false,
	}
	for cmd, want := range cases {
		if got := IsPrivileged(cmd); got != want {
			t.Errorf("IsPrivileged(%q) = %v, want %v", cmd, got, want)
		}
	}
}
