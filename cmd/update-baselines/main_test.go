package main

import (
	"testing"

	"snapvis/pkg/config"
)

func TestSelectTargets(t *testing.T) {
	targets := []config.Target{{Name: "home"}, {Name: "login"}}

	got, err := selectTargets(targets, "")
	if err != nil || len(got) != 2 {
		t.Errorf("all targets: %v, %v", got, err)
	}
	got, err = selectTargets(targets, "login")
	if err != nil || len(got) != 1 || got[0].Name != "login" {
		t.Errorf("single target: %v, %v", got, err)
	}
	if _, err := selectTargets(targets, "missing"); err == nil {
		t.Error("expected error for unknown target")
	}
}
