package projects

import (
	"strings"
	"testing"
)

func TestRenderValidatesRequiredParams(t *testing.T) {
	def, ok := Get("Titan Network")
	if !ok {
		t.Fatal("Titan Network missing from registry")
	}

	if _, err := def.Render(map[string]string{}); err == nil {
		t.Error("Render with no params succeeded, want missing-parameter error")
	}
	if _, err := def.Render(map[string]string{"identity_code": "   "}); err == nil {
		t.Error("Render with blank param succeeded, want missing-parameter error")
	}
	if _, err := def.Render(map[string]string{"identity_code": "abc123"}); err != nil {
		t.Errorf("Render with all params: %v", err)
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	def, _ := Get("Titan Network")
	script, err := def.Render(map[string]string{"identity_code": "deadbeef"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(script, "--hash=deadbeef") {
		t.Error("rendered script does not contain substituted identity code")
	}
	if strings.Contains(script, "{identity_code}") {
		t.Error("rendered script still contains placeholder")
	}
}

func TestRenderLeavesShellVariablesAlone(t *testing.T) {
	def, _ := Get("Nexus Prover")
	script, err := def.Render(map[string]string{"wallet_address": "0xabc"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// The script's own shell expansions must survive rendering.
	if !strings.Contains(script, "$HOME/.cargo/env") {
		t.Error("shell variable $HOME was mangled by rendering")
	}
	if !strings.Contains(script, `--wallet-address "0xabc"`) {
		t.Error("wallet address was not substituted")
	}
}

func TestSignatureCommands(t *testing.T) {
	tests := []struct {
		sig     Signature
		stdout  string
		matches bool
	}{
		{Signature{FlagTitan, KindContainer, "titan-edge"}, "titan-edge\n", true},
		{Signature{FlagTitan, KindContainer, "titan-edge"}, "", false},
		{Signature{FlagBabylon, KindService, "babylond"}, "active\n", true},
		{Signature{FlagBabylon, KindService, "babylond"}, "inactive", false},
		{Signature{FlagBabylon, KindService, "babylond"}, "", false},
		{Signature{FlagMeson, KindProcess, "gaganode"}, "1234\n5678", true},
		{Signature{FlagMeson, KindProcess, "gaganode"}, "  ", false},
	}
	for _, tc := range tests {
		if got := tc.sig.Matches(tc.stdout); got != tc.matches {
			t.Errorf("%s Matches(%q) = %v, want %v", tc.sig.Flag, tc.stdout, got, tc.matches)
		}
	}
}

func TestLivenessForUnmappedFlag(t *testing.T) {
	if _, ok := LivenessFor(FlagProxy); ok {
		t.Error("proxy flag should have no liveness mapping")
	}
	sig, ok := LivenessFor(FlagTitan)
	if !ok || sig.Target != "titan-edge" {
		t.Errorf("LivenessFor(titan) = %+v, %v", sig, ok)
	}
}

func TestRegistryFlagsHaveColumns(t *testing.T) {
	for _, name := range Names() {
		def, _ := Get(name)
		if def.Flag != "" && def.Flag.Column() == "" {
			t.Errorf("project %s has flag %q with no record column", name, def.Flag)
		}
	}
}
