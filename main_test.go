package main

import (
	"testing"

	"conduit/cmd"
)

func TestDefaultVersion(t *testing.T) {
	if version != "dev" {
		t.Errorf("Expected default version to be 'dev', got %s", version)
	}
}

func TestSetVersionAccepted(t *testing.T) {
	cmd.SetVersion(version)
}
