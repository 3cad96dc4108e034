package service

import (
	"errors"
	"testing"
)

func TestActorValidate(t *testing.T) {
	valid := []Actor{AdminActor(1), SystemActor("compensation"), "system:worker"}
	for _, actor := range valid {
		if err := actor.Validate(); err != nil {
			t.Fatalf("%q should be valid: %v", actor, err)
		}
	}
	invalid := []Actor{"", "admin:", "admin:0", AdminActor(0), "user:1", "system:", "00000000-0000-0000-0000-000000000000"}
	for _, actor := range invalid {
		if err := actor.Validate(); !errors.Is(err, ErrActorRequired) {
			t.Fatalf("%q should be rejected, got %v", actor, err)
		}
	}
}

func TestParseActorTrims(t *testing.T) {
	actor, err := ParseActor("  admin:12 ")
	if err != nil {
		t.Fatalf("parse actor failed: %v", err)
	}
	if actor.String() != "admin:12" {
		t.Fatalf("unexpected actor: %s", actor)
	}
}
