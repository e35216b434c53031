package colors

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestInit_ForceOff(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = false
	off := false
	Init(&off)

	if !color.NoColor || Enabled() {
		t.Error("expected colors disabled when Init(false)")
	}
}

func TestInit_ForceOn(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = true
	on := true
	Init(&on)

	if color.NoColor || !Enabled() {
		t.Error("expected colors enabled when Init(true)")
	}
}

func TestInit_Nil_KeepsExisting(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	for _, v := range []bool{true, false} {
		color.NoColor = v
		Init(nil)
		if color.NoColor != v {
			t.Errorf("Init(nil) changed NoColor from %v", v)
		}
	}
}

func TestState(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = true
	if got := State("authenticated", true); got != "authenticated" {
		t.Errorf("State() = %q, want plain text", got)
	}

	color.NoColor = false
	ok := State("authenticated", true)
	bad := State("unauthenticated", false)
	if !strings.Contains(ok, "\x1b[") || !strings.Contains(bad, "\x1b[") {
		t.Errorf("expected ANSI codes, got %q and %q", ok, bad)
	}
	if ok == Bad().Sprint("authenticated") {
		t.Error("authenticated state uses the failure color")
	}
}
