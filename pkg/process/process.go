// Package process spawns external programs on behalf of goals. A
// program is given exactly the environment it is handed, never the
// whole environment of the daemon.
package process

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Env vars that are allowed to be inherited from the OS. Everything
// else a command sees is given to it explicitly.
var allowedEnvVars = []string{
	"PATH", "HOME", "USER", "TMPDIR",
	// proxies, following curl conventions
	"http_proxy", "https_proxy", "no_proxy", "HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY",
	// so `docker build` finds the daemon and credentials
	"DOCKER_HOST", "DOCKER_CONFIG", "DOCKER_TLS_VERIFY", "DOCKER_CERT_PATH",
	// npm caches and registries
	"NPM_CONFIG_CACHE", "NPM_CONFIG_REGISTRY", "NPM_TOKEN",
	// git over ssh
	"SSH_AUTH_SOCK", "GIT_SSH_COMMAND",
}

// AllowedEnv collects the allowed variables from the process
// environment. It is meant to be called once, at startup; the map
// returned is then passed by value to everything that spawns.
func AllowedEnv() map[string]string {
	env := map[string]string{}
	for _, k := range allowedEnvVars {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env
}

// Command is a program to run, and its arguments. Env holds variables
// that override those of the base environment for this command only.
// Secrets are masked wherever the command or its output is reported.
type Command struct {
	Program string
	Args    []string
	Env     map[string]string
	Secrets []string
}

// String is the command line, with secrets masked.
func (c Command) String() string {
	return c.redact(strings.Join(append([]string{c.Program}, c.Args...), " "))
}

const redacted = "<redacted>"

func (c Command) redact(s string) string {
	for _, secret := range c.Secrets {
		if secret != "" {
			s = strings.Replace(s, secret, redacted, -1)
		}
	}
	return s
}

// Options are the per-invocation parameters for spawning a command.
type Options struct {
	// Dir is the working directory of the process
	Dir string
	// Env is the base environment; it is not modified
	Env map[string]string
	// Log receives the combined stdout and stderr, as it is produced
	Log io.Writer
}

// Result is what comes of a command that ran to completion. A
// non-zero Code is a failure of the command, not of spawning it.
type Result struct {
	Code    int
	Message string
}

func (r Result) Failed() bool {
	return r.Code != 0
}

type Spawner interface {
	// Spawn runs the command and waits for it to exit. It returns an
	// error only if the command could not be run at all, or was
	// interrupted by the context.
	Spawn(ctx context.Context, c Command, opts Options) (Result, error)
}

type SpawnerFunc func(ctx context.Context, c Command, opts Options) (Result, error)

func (f SpawnerFunc) Spawn(ctx context.Context, c Command, opts Options) (Result, error) {
	return f(ctx, c, opts)
}

// MergeEnv returns the environment for a process, as `KEY=value`
// pairs sorted by key, with overrides taking precedence over base.
// Neither map is modified. The result is never nil, so that a process
// given it does not inherit the environment of this one.
func MergeEnv(base, overrides map[string]string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}

// Exec is the Spawner that runs commands as child processes.
type Exec struct{}

func (Exec) Spawn(ctx context.Context, c Command, opts Options) (Result, error) {
	if c.Program == "" {
		return Result{}, errors.New("no program given")
	}
	cmd := exec.CommandContext(ctx, c.Program, c.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = MergeEnv(opts.Env, c.Env)

	stdOutAndStdErr := &threadSafeBuffer{}
	var out io.Writer = stdOutAndStdErr
	var log *redactingWriter
	if opts.Log != nil {
		fmt.Fprintf(opts.Log, "> %s\n", c)
		log = &redactingWriter{out: opts.Log, redact: c.redact}
		out = io.MultiWriter(stdOutAndStdErr, log)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if log != nil {
		log.Flush()
	}

	switch ctx.Err() {
	case context.DeadlineExceeded:
		return Result{}, errors.Wrapf(ctx.Err(), "running %s", c)
	case context.Canceled:
		return Result{}, errors.Wrapf(ctx.Err(), "context was cancelled while running %s", c)
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			return Result{
				Code:    code,
				Message: failureMessage(c, code, stdOutAndStdErr.Bytes()),
			}, nil
		}
		return Result{}, errors.Wrapf(err, "spawning %s", c)
	}
	return Result{Code: 0}, nil
}

func failureMessage(c Command, code int, output []byte) string {
	msg := fmt.Sprintf("%s exited with code %d", c, code)
	if diag := findErrorMessage(bytes.NewReader(output)); diag != "" {
		msg = msg + ": " + c.redact(diag)
	}
	return msg
}

// findErrorMessage picks the most informative line out of the output
// of a failed command: the first line that looks like an error report,
// or otherwise the last non-blank line.
func findErrorMessage(output io.Reader) string {
	var last string
	sc := bufio.NewScanner(output)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "fatal: "):
			return line
		case strings.HasPrefix(line, "npm ERR! "):
			return strings.TrimPrefix(line, "npm ERR! ")
		case strings.HasPrefix(line, "error: "):
			return strings.TrimPrefix(line, "error: ")
		case strings.HasPrefix(line, "ERROR: "):
			return strings.TrimPrefix(line, "ERROR: ")
		}
		last = line
	}
	return last
}

type threadSafeBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *threadSafeBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *threadSafeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// redactingWriter masks secrets in output a line at a time, so that a
// secret split across writes is still caught.
type redactingWriter struct {
	out    io.Writer
	redact func(string) string
	mu     sync.Mutex
	buf    []byte
}

func (w *redactingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if _, err := io.WriteString(w.out, w.redact(string(w.buf[:i+1]))); err != nil {
			return 0, err
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush writes any incomplete last line.
func (w *redactingWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		io.WriteString(w.out, w.redact(string(w.buf)))
		w.buf = nil
	}
}
