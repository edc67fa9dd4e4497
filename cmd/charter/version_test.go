package main

import "testing"

func TestVersionCommandExists(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}
	if versionCmd.Run == nil {
		t.Error("versionCmd.Run should not be nil")
	}
}

func TestBuildInfoDefaults(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default")
	}
	if GitCommit == "" {
		t.Error("GitCommit should have a default")
	}
	if BuildDate == "" {
		t.Error("BuildDate should have a default")
	}
}

func TestRootCommandFlags(t *testing.T) {
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("root command should define --config")
	}
	if rootCmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("root command should define --verbose")
	}
	for _, name := range []string{"run", "lint", "version"} {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}
