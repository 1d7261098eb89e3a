package cmd

import (
	"testing"
)

// TestCreateRootCmd checks that createRootCmd returns a root command with the
// expected use string, subcommands, and a replaced help command.
func TestCreateRootCmd(t *testing.T) {
	rootCmd := createRootCmd()
	if rootCmd.Use != "nixcraft-auth" {
		t.Errorf("expected root command use to be 'nixcraft-auth', got: %s", rootCmd.Use)
	}

	want := map[string]bool{
		"login":   false,
		"refresh": false,
		"status":  false,
		"logout":  false,
		"token":   false,
		"version": false,
	}
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "help" {
			t.Error("expected help command to be replaced, but found a subcommand with use 'help'")
		}
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}
