package terminal

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"
)

// settleDelay is how long ExecuteInTerminal waits after the last byte
// arrives before trusting a prompt match, absorbing output that lands
// in a few scheduler ticks (spec.md §4.3: "300 ms settle-delay").
const settleDelay = 300 * time.Millisecond

// LocalDriver drives a long-lived local shell process, fanning its
// combined stdout/stderr out to subscribers and writing commands to its
// stdin. Grounded on internal/tools/exec/manager.go's os/exec pipe
// wiring, generalized from one-shot command execution into a
// persistent interactive session.
type LocalDriver struct {
	id    string
	shell string

	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu          sync.Mutex
	subscribers map[int]DataHandler
	nextSubID   int
	buf         bytes.Buffer
	lastByteAt  time.Time
	cols, rows  int

	done chan struct{}
}

// NewLocalDriver starts a new interactive shell process (the user's
// $SHELL on Unix, cmd.exe on Windows) and begins streaming its output.
func NewLocalDriver(ctx context.Context) (*LocalDriver, error) {
	shell := defaultShell()

	cmd := exec.CommandContext(ctx, shell)
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrDriverIO, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrDriverIO, err)
	}
	cmd.Stderr = cmd.Stdout // combined stream, single logical stream per session

	d := &LocalDriver{
		id:          uuid.NewString(),
		shell:       shell,
		cmd:         cmd,
		stdin:       stdin,
		subscribers: make(map[int]DataHandler),
		done:        make(chan struct{}),
	}

	if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		d.cols, d.rows = cols, rows
	} else {
		d.cols, d.rows = 80, 24
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start shell: %v", ErrDriverIO, err)
	}

	go d.pump(stdout)

	return d, nil
}

func defaultShell() string {
	if runtime.GOOS == "windows" {
		return "cmd.exe"
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

func (d *LocalDriver) pump(r io.Reader) {
	reader := bufio.NewReaderSize(r, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			data := append([]byte(nil), chunk[:n]...)
			d.mu.Lock()
			d.buf.Write(data)
			if d.buf.Len() > 1<<20 {
				d.buf.Next(d.buf.Len() - 1<<20)
			}
			d.lastByteAt = time.Now()
			handlers := make([]DataHandler, 0, len(d.subscribers))
			for _, h := range d.subscribers {
				handlers = append(handlers, h)
			}
			d.mu.Unlock()
			for _, h := range handlers {
				h(data)
			}
		}
		if err != nil {
			close(d.done)
			return
		}
	}
}

func (d *LocalDriver) Kind() Kind      { return KindLocal }
func (d *LocalDriver) SessionID() string { return d.id }

func (d *LocalDriver) Write(ctx context.Context, data []byte) error {
	_, err := d.stdin.Write(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDriverIO, err)
	}
	return nil
}

func (d *LocalDriver) Resize(cols, rows int) error {
	// A long-lived os/exec child without a real pseudo-terminal cannot
	// be informed of a size change via ioctl; record the intent so
	// EnvironmentContext and COLUMNS/LINES exports stay consistent.
	d.mu.Lock()
	d.cols, d.rows = cols, rows
	d.mu.Unlock()
	return d.Write(context.Background(), []byte(fmt.Sprintf("export COLUMNS=%d LINES=%d\n", cols, rows)))
}

func (d *LocalDriver) OnData(h DataHandler) Unsubscribe {
	d.mu.Lock()
	id := d.nextSubID
	d.nextSubID++
	d.subscribers[id] = h
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
		})
	}
}

func (d *LocalDriver) ExecuteInTerminal(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	start := time.Now()
	var captured bytes.Buffer
	unsub := d.OnData(func(data []byte) { captured.Write(data) })
	defer unsub()

	if err := d.Write(ctx, []byte(command+"\n")); err != nil {
		return ExecResult{}, err
	}

	deadline := time.Now().Add(timeout)
	for {
		stripped := StripTerminalNoise(captured.String())
		if DetectPrompt(stripped) {
			d.mu.Lock()
			quiet := time.Since(d.lastByteAt)
			d.mu.Unlock()
			if quiet >= settleDelay {
				return ExecResult{Output: stripped, Duration: time.Since(start)}, nil
			}
		}
		if timeout > 0 && time.Now().After(deadline) {
			return ExecResult{
				Output:   stripped + "\n[timed out]",
				Duration: time.Since(start),
				TimedOut: true,
			}, nil
		}
		select {
		case <-ctx.Done():
			return ExecResult{}, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (d *LocalDriver) GetCWD(ctx context.Context) (string, bool) {
	res, err := d.ExecuteInTerminal(ctx, "pwd", 5*time.Second)
	if err != nil || res.TimedOut {
		return "", false
	}
	lines := strings.Split(strings.TrimSpace(res.Output), "\n")
	if len(lines) == 0 {
		return "", false
	}
	candidate := strings.TrimSpace(lines[0])
	if candidate == "" || !strings.HasPrefix(candidate, "/") {
		return "", false
	}
	return candidate, true
}

func (d *LocalDriver) GetTerminalStatus(ctx context.Context) (bool, error) {
	select {
	case <-d.done:
		return true, nil
	default:
	}
	d.mu.Lock()
	idle := time.Since(d.lastByteAt) > 200*time.Millisecond
	d.mu.Unlock()
	return idle, nil
}

func (d *LocalDriver) GetRemoteProcesses(ctx context.Context) (RemoteProcesses, error) {
	return RemoteProcesses{}, nil
}

func (d *LocalDriver) SendControl(ctx context.Context, key string) error {
	seq, err := controlKeySequence(key)
	if err != nil {
		return err
	}
	return d.Write(ctx, seq)
}

func (d *LocalDriver) Dispose() error {
	_ = d.stdin.Close()
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	return nil
}
