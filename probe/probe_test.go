package probe

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/depinlaunch/web-backend/projects"
)

// cannedSession answers commands from substring-keyed tables.
type cannedSession struct {
	outputs map[string]string
	stderrs map[string]string
	exits   map[string]int
	errs    map[string]error
	ran     []string
	closed  bool
}

func (s *cannedSession) Run(cmd string) (string, string, int, error) {
	s.ran = append(s.ran, cmd)
	for key, err := range s.errs {
		if strings.Contains(cmd, key) {
			return "", "", 0, err
		}
	}
	for key, code := range s.exits {
		if strings.Contains(cmd, key) {
			return s.outputs[key], s.stderrs[key], code, nil
		}
	}
	for key, out := range s.outputs {
		if strings.Contains(cmd, key) {
			return out, s.stderrs[key], 0, nil
		}
	}
	return "", "", 0, nil
}

func (s *cannedSession) Close() error {
	s.closed = true
	return nil
}

type cannedDialer struct {
	session *cannedSession
	err     error
}

func (d *cannedDialer) Dial(addr string, key []byte) (Session, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

func TestDetectMapsSignatureOutput(t *testing.T) {
	sess := &cannedSession{outputs: map[string]string{
		"titan-edge": "titan-edge\n",
		"babylond":   "inactive",
		"gaganode":   "4321\n",
	}}
	p := New(&cannedDialer{session: sess}, time.Minute)

	det := p.Detect("203.0.113.9", nil)
	want := []projects.Flag{projects.FlagTitan, projects.FlagMeson}
	if len(det.Flags) != len(want) {
		t.Fatalf("Flags = %v, want %v", det.Flags, want)
	}
	got := map[projects.Flag]bool{}
	for _, f := range det.Flags {
		got[f] = true
	}
	for _, f := range want {
		if !got[f] {
			t.Errorf("flag %s not detected", f)
		}
	}
	if !strings.Contains(det.Message, "Titan") || !strings.Contains(det.Message, "Meson") {
		t.Errorf("Message = %q", det.Message)
	}
	if !sess.closed {
		t.Error("session left open")
	}
}

func TestDetectUnreachableIsFindingNotError(t *testing.T) {
	p := New(&cannedDialer{err: errors.New("connection refused")}, time.Minute)
	det := p.Detect("203.0.113.9", nil)
	if len(det.Flags) != 0 {
		t.Errorf("Flags = %v, want none", det.Flags)
	}
	if !strings.Contains(det.Message, "SSH connection failed") {
		t.Errorf("Message = %q", det.Message)
	}
}

func TestCheckHealthReportsFirstFailure(t *testing.T) {
	// Titan container running, babylond service down.
	sess := &cannedSession{outputs: map[string]string{
		"titan-edge": "titan-edge\n",
		"babylond":   "failed",
	}}
	p := New(&cannedDialer{session: sess}, time.Minute)

	h := p.CheckHealth("203.0.113.9", nil, []projects.Flag{projects.FlagTitan, projects.FlagBabylon})
	if h.Healthy {
		t.Fatal("reported healthy with a failed service")
	}
	if !strings.Contains(h.Message, "babylond") {
		t.Errorf("Message = %q, want the failing check named", h.Message)
	}
}

func TestCheckHealthReachableFallback(t *testing.T) {
	// Proxy has no liveness mapping: a reachable machine is healthy.
	sess := &cannedSession{}
	p := New(&cannedDialer{session: sess}, time.Minute)

	h := p.CheckHealth("203.0.113.9", nil, []projects.Flag{projects.FlagProxy})
	if !h.Healthy {
		t.Errorf("Health = %+v, want healthy", h)
	}
	if len(sess.ran) != 0 {
		t.Errorf("ran %d commands for an unmapped hint", len(sess.ran))
	}
}

func TestCheckHealthUnreachable(t *testing.T) {
	p := New(&cannedDialer{err: errors.New("i/o timeout")}, time.Minute)
	h := p.CheckHealth("203.0.113.9", nil, []projects.Flag{projects.FlagTitan})
	if h.Healthy {
		t.Error("unreachable machine reported healthy")
	}
	if !strings.Contains(h.Message, "SSH connection failed") {
		t.Errorf("Message = %q", h.Message)
	}
}

func TestInstallRunsUploadedScript(t *testing.T) {
	sess := &cannedSession{outputs: map[string]string{
		"sudo bash": "install complete\n",
	}}
	p := New(&cannedDialer{session: sess}, time.Minute)

	out := p.Install("203.0.113.9", nil, "#!/bin/bash\necho hi\n")
	if !out.OK {
		t.Fatalf("Install failed: %s", out.Output)
	}
	if !strings.Contains(out.Output, "install complete") {
		t.Errorf("Output = %q", out.Output)
	}

	if len(sess.ran) != 3 {
		t.Fatalf("ran %d commands, want upload, chmod, execute", len(sess.ran))
	}
	if !strings.Contains(sess.ran[0], "echo hi") {
		t.Error("upload command does not carry the script body")
	}
	if !strings.HasPrefix(sess.ran[1], "chmod +x") {
		t.Errorf("second command = %q, want chmod", sess.ran[1])
	}
}

func TestInstallNonZeroScriptExitIsStillSuccess(t *testing.T) {
	// A script that ran to completion and exited 1: the outcome is success
	// with the output carried back, never a failed install.
	sess := &cannedSession{
		outputs: map[string]string{"sudo bash": "partial output"},
		stderrs: map[string]string{"sudo bash": "yum: nothing to do"},
		exits:   map[string]int{"sudo bash": 1},
	}
	p := New(&cannedDialer{session: sess}, time.Minute)

	out := p.Install("203.0.113.9", nil, "#!/bin/bash\nexit 1\n")
	if !out.OK {
		t.Fatalf("Install = %+v, want success for a completed non-zero run", out)
	}
	if !strings.Contains(out.Output, "partial output") || !strings.Contains(out.Output, "yum: nothing to do") {
		t.Errorf("Output = %q, want script output carried back", out.Output)
	}
	if !strings.Contains(out.Output, "exit status 1") {
		t.Errorf("Output = %q, want the exit status noted", out.Output)
	}
}

func TestInstallSessionFailureMidScriptIsFailure(t *testing.T) {
	sess := &cannedSession{
		errs: map[string]error{"sudo bash": errors.New("connection reset by peer")},
	}
	p := New(&cannedDialer{session: sess}, time.Minute)

	out := p.Install("203.0.113.9", nil, "#!/bin/bash\n")
	if out.OK {
		t.Error("Install reported success for a broken session")
	}
	if !strings.Contains(out.Output, "connection reset") {
		t.Errorf("Output = %q", out.Output)
	}
}

func TestInstallUnreachableReturnsFailure(t *testing.T) {
	p := New(&cannedDialer{err: errors.New("no route to host")}, time.Minute)
	out := p.Install("203.0.113.9", nil, "#!/bin/bash\n")
	if out.OK {
		t.Error("Install reported success for unreachable machine")
	}
	if !strings.Contains(out.Output, "SSH connection failed") {
		t.Errorf("Output = %q", out.Output)
	}
}

func TestGatherFacts(t *testing.T) {
	sess := &cannedSession{outputs: map[string]string{
		"MemTotal":    "16303428\n",
		"df -h":       "100G total, 87G free\n",
		"PRETTY_NAME": "Amazon Linux 2023\n",
	}}
	p := New(&cannedDialer{session: sess}, time.Minute)

	facts, err := p.GatherFacts("203.0.113.9", nil)
	if err != nil {
		t.Fatalf("GatherFacts: %v", err)
	}
	if facts.MemoryGB < 15 || facts.MemoryGB > 16 {
		t.Errorf("MemoryGB = %v", facts.MemoryGB)
	}
	if facts.DiskInfo != "100G total, 87G free" {
		t.Errorf("DiskInfo = %q", facts.DiskInfo)
	}
	if facts.OSName != "Amazon Linux 2023" {
		t.Errorf("OSName = %q", facts.OSName)
	}
}
