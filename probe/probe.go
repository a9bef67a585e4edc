// Package probe runs remote checks and installs over SSH. Every operation
// opens its own connection and reports outcomes as data; a machine being
// unreachable is a finding, not an error.
package probe

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/depinlaunch/web-backend/projects"
)

// Session is one authenticated connection to a remote machine. Each Run
// executes a single command. err is non-nil only when the session or the
// transport broke; a command that ran to completion and exited non-zero
// reports its exit code with a nil error.
type Session interface {
	Run(cmd string) (stdout, stderr string, exitCode int, err error)
	Close() error
}

// Dialer opens sessions. Production uses the SSH dialer; tests substitute
// canned sessions.
type Dialer interface {
	Dial(addr string, privateKeyPEM []byte) (Session, error)
}

// Detection is the outcome of one detection sweep.
type Detection struct {
	Flags   []projects.Flag
	Message string
}

// Health is the outcome of one liveness check.
type Health struct {
	Healthy bool
	Message string
}

// InstallOutcome is the result of running one install script. OK means the
// session executed the script to completion; it says nothing about whether
// the workload came up, that is the next health check's job.
type InstallOutcome struct {
	OK     bool
	Output string
}

// Facts are machine properties gathered over SSH after launch.
type Facts struct {
	MemoryGB float64
	DiskInfo string
	OSName   string
}

const scriptPath = "/tmp/install_script.sh"

// Prober runs detection, health, and install operations through a Dialer.
type Prober struct {
	dialer         Dialer
	installTimeout time.Duration
}

// New builds a prober. installTimeout bounds a single install script run.
func New(dialer Dialer, installTimeout time.Duration) *Prober {
	if installTimeout <= 0 {
		installTimeout = 10 * time.Minute
	}
	return &Prober{dialer: dialer, installTimeout: installTimeout}
}

// Detect sweeps the full signature catalogue and returns every project found
// on the machine. An unreachable machine yields no flags and a message; it is
// never an error, because absence of evidence must not clear existing flags.
func (p *Prober) Detect(addr string, privateKeyPEM []byte) Detection {
	sess, err := p.dialer.Dial(addr, privateKeyPEM)
	if err != nil {
		return Detection{Message: fmt.Sprintf("SSH connection failed: %v", err)}
	}
	defer sess.Close()

	var found []projects.Flag
	for _, sig := range projects.Signatures() {
		// Detection commands exit non-zero on no match; only stdout matters.
		stdout, _, _, _ := sess.Run(sig.Command())
		if sig.Matches(stdout) {
			found = append(found, sig.Flag)
		}
	}

	if len(found) == 0 {
		return Detection{Message: "No known projects detected"}
	}
	labels := make([]string, len(found))
	for i, f := range found {
		labels[i] = f.Label()
	}
	return Detection{Flags: found, Message: "Detected: " + strings.Join(labels, ", ")}
}

// CheckHealth verifies liveness for the hinted projects and stops at the
// first failure, reporting that check's message. Hints without a liveness
// mapping are skipped; when nothing is checkable, a reachable machine counts
// as healthy.
func (p *Prober) CheckHealth(addr string, privateKeyPEM []byte, hints []projects.Flag) Health {
	sess, err := p.dialer.Dial(addr, privateKeyPEM)
	if err != nil {
		return Health{Message: fmt.Sprintf("SSH connection failed: %v", err)}
	}
	defer sess.Close()

	for _, hint := range hints {
		sig, ok := projects.LivenessFor(hint)
		if !ok {
			continue
		}
		stdout, _, _, _ := sess.Run(sig.Command())
		if !sig.Matches(stdout) {
			return Health{Message: sig.Describe(stdout)}
		}
	}
	return Health{Healthy: true, Message: "Healthy"}
}

// Install uploads the script to the machine and executes it with elevated
// privileges, returning the combined output. OK means the session ran the
// script to completion; the script's own exit code is part of the output,
// never inspected. The run is bounded by the prober's install timeout; on
// timeout the connection is torn down.
func (p *Prober) Install(addr string, privateKeyPEM []byte, script string) InstallOutcome {
	sess, err := p.dialer.Dial(addr, privateKeyPEM)
	if err != nil {
		return InstallOutcome{Output: fmt.Sprintf("SSH connection failed: %v", err)}
	}
	defer sess.Close()

	upload := fmt.Sprintf("cat > %s << 'DEPIN_SCRIPT_EOF'\n%s\nDEPIN_SCRIPT_EOF", scriptPath, script)
	if _, stderr, code, err := sess.Run(upload); err != nil || code != 0 {
		return InstallOutcome{Output: stepFailure("script upload", code, err, stderr)}
	}
	if _, stderr, code, err := sess.Run("chmod +x " + scriptPath); err != nil || code != 0 {
		return InstallOutcome{Output: stepFailure("chmod", code, err, stderr)}
	}

	type runResult struct {
		stdout, stderr string
		exitCode       int
		err            error
	}
	done := make(chan runResult, 1)
	go func() {
		stdout, stderr, code, err := sess.Run("sudo bash " + scriptPath)
		done <- runResult{stdout, stderr, code, err}
	}()

	select {
	case res := <-done:
		output := strings.TrimSpace(res.stdout + "\n" + res.stderr)
		if res.err != nil {
			return InstallOutcome{Output: fmt.Sprintf("session failed mid-script: %v\n%s", res.err, output)}
		}
		if res.exitCode != 0 {
			output = strings.TrimSpace(output + fmt.Sprintf("\n(script exit status %d)", res.exitCode))
		}
		return InstallOutcome{OK: true, Output: output}
	case <-time.After(p.installTimeout):
		sess.Close()
		return InstallOutcome{Output: fmt.Sprintf("install timed out after %s", p.installTimeout)}
	}
}

// stepFailure formats the failure of an install preparation step. These
// steps run before the script, so a non-zero exit here does fail the
// install.
func stepFailure(step string, code int, err error, stderr string) string {
	if err != nil {
		return fmt.Sprintf("%s failed: %v", step, err)
	}
	return fmt.Sprintf("%s failed (exit %d): %s", step, code, strings.TrimSpace(stderr))
}

// GatherFacts reads basic machine properties. Fields that cannot be read are
// left at their zero value.
func (p *Prober) GatherFacts(addr string, privateKeyPEM []byte) (Facts, error) {
	sess, err := p.dialer.Dial(addr, privateKeyPEM)
	if err != nil {
		return Facts{}, fmt.Errorf("SSH connection failed: %w", err)
	}
	defer sess.Close()

	var facts Facts
	if out, _, code, err := sess.Run("grep MemTotal /proc/meminfo | awk '{print $2}'"); err == nil && code == 0 {
		if kb, perr := strconv.ParseFloat(strings.TrimSpace(out), 64); perr == nil {
			facts.MemoryGB = kb / 1024 / 1024
		}
	}
	if out, _, code, err := sess.Run("df -h / | tail -1 | awk '{print $2\" total, \"$4\" free\"}'"); err == nil && code == 0 {
		facts.DiskInfo = strings.TrimSpace(out)
	}
	if out, _, code, err := sess.Run(`grep PRETTY_NAME /etc/os-release | cut -d'"' -f2`); err == nil && code == 0 {
		facts.OSName = strings.TrimSpace(out)
	}
	return facts, nil
}
