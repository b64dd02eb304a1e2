package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/backmassage/ingestd/internal/config"
	"github.com/backmassage/ingestd/internal/logging"
)

// PathPlaceholder in the configured command is replaced by the candidate
// path; when absent the path is appended as the final argument.
const PathPlaceholder = "{path}"

// healthTimeout bounds the docker inspect probe; a hung docker daemon must
// not stall the watch loop.
const healthTimeout = 30 * time.Second

// Exec runs the configured engine command once per candidate. Stdout and
// stderr are relayed line-wise into the log, mirroring how the legacy
// monitor surfaced engine output.
type Exec struct {
	Command []string      // Command template, PathPlaceholder-substituted.
	Health  []string      // Optional explicit health probe command.
	Timeout time.Duration // Per-invocation ceiling; 0 means no limit.
	Log     *logging.Logger
}

// NewExec builds an Exec from cfg. When no explicit health command is
// configured, the docker health status of cfg.Container is consulted.
func NewExec(cfg *config.Config, log *logging.Logger) *Exec {
	health := cfg.HealthCommand
	if len(health) == 0 && cfg.Container != "" {
		health = []string{"docker", "inspect", "-f", "{{.State.Health.Status}}", cfg.Container}
	}
	return &Exec{
		Command: cfg.EngineCommand,
		Health:  health,
		Timeout: cfg.EngineTimeout,
		Log:     log,
	}
}

// Process invokes the engine for one candidate path. A non-zero exit, a
// timeout, or a start failure is returned as an error with the tail of the
// engine's output attached for triage.
func (e *Exec) Process(ctx context.Context, path string) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := buildArgs(e.Command, path)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	var tail bytes.Buffer
	cmd.Stdout = e.relayWriter(&tail)
	cmd.Stderr = e.relayWriter(&tail)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("engine timed out after %s: %w", e.Timeout, ctx.Err())
	}
	if out := lastOutput(&tail); out != "" {
		return fmt.Errorf("engine failed: %w (%s)", err, out)
	}
	return fmt.Errorf("engine failed: %w", err)
}

// Healthy reports whether a run should proceed. With no probe configured the
// gate is always open. The docker probe passes only when the container
// reports "healthy" (or has no healthcheck and reports "<no value>" while
// running — docker prints that when .State.Health is absent).
func (e *Exec) Healthy(ctx context.Context) bool {
	if len(e.Health) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Health[0], e.Health[1:]...)
	out, err := cmd.Output()
	if err != nil {
		if e.Log != nil {
			e.Log.Debug("Health probe failed: %v", err)
		}
		return false
	}
	status := strings.TrimSpace(string(out))
	return status == "" || status == "healthy" || status == "<no value>"
}

// relayWriter streams engine output into the log line by line while keeping
// a copy for error reporting.
func (e *Exec) relayWriter(tail *bytes.Buffer) *lineWriter {
	return &lineWriter{
		tail: tail,
		emit: func(line string) { e.Log.Info("engine: %s", line) },
	}
}

// buildArgs substitutes the candidate path into the command template.
func buildArgs(command []string, path string) []string {
	args := make([]string, 0, len(command)+1)
	substituted := false
	for _, a := range command {
		if strings.Contains(a, PathPlaceholder) {
			a = strings.ReplaceAll(a, PathPlaceholder, path)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, path)
	}
	return args
}

// lastOutput returns the final non-empty line of captured output.
func lastOutput(buf *bytes.Buffer) string {
	var last string
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	return last
}

// lineWriter splits writes on newlines, emitting complete lines and
// buffering the remainder.
type lineWriter struct {
	tail *bytes.Buffer
	emit func(string)
	rest []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.tail.Write(p)
	w.rest = append(w.rest, p...)
	for {
		i := bytes.IndexByte(w.rest, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimRight(string(w.rest[:i]), "\r"); line != "" {
			w.emit(line)
		}
		w.rest = w.rest[i+1:]
	}
	return len(p), nil
}
