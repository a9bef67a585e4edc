// Package projects is the static registry of supported workloads: for each
// project, the parameters and install script template, and the closed
// catalogue of detection signatures the probe runs against remote machines.
package projects

import (
	"fmt"
	"sort"
	"strings"
)

// Flag identifies one supported project in the instance record's fixed set
// of installed-project booleans. One machine may carry several flags.
type Flag string

const (
	FlagTitan    Flag = "titan"
	FlagNexus    Flag = "nexus"
	FlagShardeum Flag = "shardeum"
	FlagBabylon  Flag = "babylon"
	FlagMeson    Flag = "meson"
	FlagProxy    Flag = "proxy"
)

// Column maps a flag to its instance-record column. Unknown flags map to "".
func (f Flag) Column() string {
	switch f {
	case FlagTitan:
		return "proj_titan"
	case FlagNexus:
		return "proj_nexus"
	case FlagShardeum:
		return "proj_shardeum"
	case FlagBabylon:
		return "proj_babylon"
	case FlagMeson:
		return "proj_meson"
	case FlagProxy:
		return "proj_proxy"
	}
	return ""
}

// Label is the human-readable short name shown in the dashboard table.
func (f Flag) Label() string {
	switch f {
	case FlagTitan:
		return "Titan"
	case FlagNexus:
		return "Nexus"
	case FlagShardeum:
		return "Shardeum"
	case FlagBabylon:
		return "Babylon"
	case FlagMeson:
		return "Meson"
	case FlagProxy:
		return "Proxy"
	}
	return string(f)
}

// SignatureKind is how a project manifests on a machine.
type SignatureKind int

const (
	// KindContainer checks for a docker container by name.
	KindContainer SignatureKind = iota
	// KindService checks a systemd unit is active.
	KindService
	// KindProcess checks for a running process by pattern.
	KindProcess
)

// Signature is one read-only detection rule: a fixed command whose output
// decides whether the project is present.
type Signature struct {
	Flag   Flag
	Kind   SignatureKind
	Target string
}

// Command returns the read-only shell command for this signature.
func (s Signature) Command() string {
	switch s.Kind {
	case KindContainer:
		return fmt.Sprintf("sudo docker ps --format '{{.Names}}' | grep %s", s.Target)
	case KindService:
		return fmt.Sprintf("systemctl is-active %s", s.Target)
	case KindProcess:
		return fmt.Sprintf("pgrep -f %s", s.Target)
	}
	return ""
}

// Matches interprets the command's stdout.
func (s Signature) Matches(stdout string) bool {
	out := strings.TrimSpace(stdout)
	if s.Kind == KindService {
		return out == "active"
	}
	return out != ""
}

// Describe renders a health message for the signature's outcome.
func (s Signature) Describe(stdout string) string {
	out := strings.TrimSpace(stdout)
	switch s.Kind {
	case KindContainer:
		if s.Matches(stdout) {
			return fmt.Sprintf("Container '%s' is running", s.Target)
		}
		return fmt.Sprintf("Container '%s' not found", s.Target)
	case KindService:
		if s.Matches(stdout) {
			return fmt.Sprintf("Service '%s' is active", s.Target)
		}
		if out == "" {
			out = "inactive"
		}
		return fmt.Sprintf("Service '%s' is %s", s.Target, out)
	case KindProcess:
		if s.Matches(stdout) {
			return fmt.Sprintf("Process '%s' running", s.Target)
		}
		return fmt.Sprintf("Process '%s' not found", s.Target)
	}
	return "Unknown signature"
}

// signatures is the detection catalogue, in probe order.
var signatures = []Signature{
	{Flag: FlagShardeum, Kind: KindContainer, Target: "shardeum-dashboard"},
	{Flag: FlagBabylon, Kind: KindService, Target: "babylond"},
	{Flag: FlagTitan, Kind: KindContainer, Target: "titan-edge"},
	{Flag: FlagMeson, Kind: KindProcess, Target: "gaganode"},
	{Flag: FlagNexus, Kind: KindService, Target: "nexus-prover"},
}

// Signatures returns the detection catalogue in its fixed probe order.
func Signatures() []Signature {
	out := make([]Signature, len(signatures))
	copy(out, signatures)
	return out
}

// LivenessFor returns the single liveness signature for a flag. Flags with
// no known mapping (e.g. proxy workloads) return ok=false; callers fall back
// to session reachability.
func LivenessFor(f Flag) (Signature, bool) {
	for _, s := range signatures {
		if s.Flag == f {
			return s, true
		}
	}
	return Signature{}, false
}

// Definition is one registry entry: immutable at runtime, used to validate
// inputs and render the install script.
type Definition struct {
	// Name is the registry key shown in the UI.
	Name string
	// Description is the human description.
	Description string
	// Params lists required template parameters, in input order.
	Params []string
	// Flag is the instance flag set after a successful install. Zero when
	// the project has no tracked flag.
	Flag Flag

	template string
}

// Render substitutes parameters into the script template. Every required
// parameter must be present and non-empty; validation happens before any
// network call. Shell constructs like ${HOME} pass through untouched.
func (d *Definition) Render(params map[string]string) (string, error) {
	for _, p := range d.Params {
		if strings.TrimSpace(params[p]) == "" {
			return "", fmt.Errorf("missing required parameter: %s", p)
		}
	}
	script := d.template
	for _, p := range d.Params {
		script = strings.ReplaceAll(script, "{"+p+"}", params[p])
	}
	return script, nil
}

// Get looks up a project definition by name.
func Get(name string) (*Definition, bool) {
	d, ok := registry[name]
	return d, ok
}

// Names returns all registry keys, sorted for stable display.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
