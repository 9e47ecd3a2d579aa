package terminal

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"
)

// SSHProfile describes how to reach a remote shell, including an
// optional single jump host tunneled per spec.md §6's "forward-out"
// pattern (the jump connection shares lifecycle with the forwarded
// target).
type SSHProfile struct {
	Host string
	Port int
	User string

	// Auth is the signer used for public-key auth. When nil, password
	// is used instead (Password must be non-empty in that case).
	Auth     ssh.Signer
	Password string

	JumpHost *SSHProfile

	HostKeyCallback ssh.HostKeyCallback
}

func (p SSHProfile) addr() string {
	port := p.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

func (p SSHProfile) clientConfig() *ssh.ClientConfig {
	cfg := &ssh.ClientConfig{
		User:            p.User,
		Timeout:         10 * time.Second,
		HostKeyCallback: p.HostKeyCallback,
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	if p.Auth != nil {
		cfg.Auth = []ssh.AuthMethod{ssh.PublicKeys(p.Auth)}
	} else {
		cfg.Auth = []ssh.AuthMethod{ssh.Password(p.Password)}
	}
	return cfg
}

// SSHDriver drives a remote interactive shell over one SSH session,
// optionally tunneled through a jump host. Grounded on the spec.md §6
// external-interface description of SSH transport and on the same
// fan-out/subscriber shape as LocalDriver.
type SSHDriver struct {
	id string

	jumpClient *ssh.Client
	client     *ssh.Client
	session    *ssh.Session
	stdin      interface{ Write([]byte) (int, error) }

	mu          sync.Mutex
	subscribers map[int]DataHandler
	nextSubID   int
	buf         bytes.Buffer
	lastByteAt  time.Time

	done chan struct{}
}

// DialSSH opens the session described by profile, through a jump host
// if one is configured, requests a PTY, and starts an interactive
// shell.
func DialSSH(ctx context.Context, profile SSHProfile) (*SSHDriver, error) {
	var jumpClient *ssh.Client
	dialAddr := profile.addr()
	var conn net.Conn
	var err error

	if profile.JumpHost != nil {
		jumpClient, err = ssh.Dial("tcp", profile.JumpHost.addr(), profile.JumpHost.clientConfig())
		if err != nil {
			return nil, fmt.Errorf("%w: dial jump host: %v", ErrDriverIO, err)
		}
		conn, err = jumpClient.Dial("tcp", dialAddr)
		if err != nil {
			jumpClient.Close()
			return nil, fmt.Errorf("%w: dial target through jump host: %v", ErrDriverIO, err)
		}
	} else {
		dialer := net.Dialer{Timeout: 10 * time.Second}
		conn, err = dialer.DialContext(ctx, "tcp", dialAddr)
		if err != nil {
			return nil, fmt.Errorf("%w: dial %s: %v", ErrDriverIO, dialAddr, err)
		}
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, dialAddr, profile.clientConfig())
	if err != nil {
		if jumpClient != nil {
			jumpClient.Close()
		}
		return nil, fmt.Errorf("%w: ssh handshake: %v", ErrDriverIO, err)
	}
	client := ssh.NewClient(clientConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		if jumpClient != nil {
			jumpClient.Close()
		}
		return nil, fmt.Errorf("%w: new session: %v", ErrDriverIO, err)
	}

	if err := session.RequestPty("xterm-256color", 24, 80, ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: request pty: %v", ErrDriverIO, err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrDriverIO, err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrDriverIO, err)
	}
	session.Stderr = session.Stdout

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: start shell: %v", ErrDriverIO, err)
	}

	d := &SSHDriver{
		id:          uuid.NewString(),
		jumpClient:  jumpClient,
		client:      client,
		session:     session,
		stdin:       stdin,
		subscribers: make(map[int]DataHandler),
		done:        make(chan struct{}),
	}
	go d.pump(stdout)
	return d, nil
}

func (d *SSHDriver) pump(r interface{ Read([]byte) (int, error) }) {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
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

func (d *SSHDriver) Kind() Kind        { return KindSSH }
func (d *SSHDriver) SessionID() string { return d.id }

func (d *SSHDriver) Write(ctx context.Context, data []byte) error {
	if _, err := d.stdin.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrDriverIO, err)
	}
	return nil
}

func (d *SSHDriver) Resize(cols, rows int) error {
	return d.session.WindowChange(rows, cols)
}

func (d *SSHDriver) OnData(h DataHandler) Unsubscribe {
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

func (d *SSHDriver) ExecuteInTerminal(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
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

// GetCWD on SSH has no reliable out-of-band source; callers fall back
// to C4's path-resolution prediction (spec.md §4.4).
func (d *SSHDriver) GetCWD(ctx context.Context) (string, bool) {
	return "", false
}

func (d *SSHDriver) GetTerminalStatus(ctx context.Context) (bool, error) {
	procs, err := d.GetRemoteProcesses(ctx)
	if err != nil {
		d.mu.Lock()
		idle := time.Since(d.lastByteAt) > 500*time.Millisecond
		d.mu.Unlock()
		return idle, nil
	}
	return len(procs.Children) == 0, nil
}

// GetRemoteProcesses runs `ps --ppid $$ -o pid=,stat=,comm=` on an
// out-of-band exec channel, per spec.md §4.5's preferred SSH probing
// strategy.
func (d *SSHDriver) GetRemoteProcesses(ctx context.Context) (RemoteProcesses, error) {
	session, err := d.client.NewSession()
	if err != nil {
		return RemoteProcesses{}, fmt.Errorf("%w: probe session: %v", ErrDriverIO, err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(`ps --ppid $$ -o pid=,stat=,comm=`)
	if err != nil {
		return RemoteProcesses{}, fmt.Errorf("%w: ps probe: %v", ErrDriverIO, err)
	}

	var procs RemoteProcesses
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		procs.Children = append(procs.Children, ChildProcess{
			PID:     pid,
			State:   fields[1],
			Command: strings.Join(fields[2:], " "),
		})
	}
	return procs, nil
}

func (d *SSHDriver) SendControl(ctx context.Context, key string) error {
	seq, err := controlKeySequence(key)
	if err != nil {
		return err
	}
	return d.Write(ctx, seq)
}

func (d *SSHDriver) Dispose() error {
	_ = d.session.Close()
	_ = d.client.Close()
	if d.jumpClient != nil {
		_ = d.jumpClient.Close()
	}
	return nil
}
