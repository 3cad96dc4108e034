package repository

import (
	"testing"
)

func TestBuildKeywordConditionSQLite(t *testing.T) {
	condition, args := buildKeywordCondition(nil, " save ", "code")
	if condition != "(code LIKE ?)" {
		t.Fatalf("unexpected condition: %s", condition)
	}
	if len(args) != 1 || args[0] != "%save%" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuildKeywordConditionPostgres(t *testing.T) {
	condition, args := buildKeywordConditionByDialect("postgres", "BO-1", "reference", " ", "reason")
	if condition != "(reference ILIKE ? OR reason ILIKE ?)" {
		t.Fatalf("unexpected condition: %s", condition)
	}
	if len(args) != 2 {
		t.Fatalf("args len want 2 got %d", len(args))
	}
}

func TestBuildKeywordConditionEmpty(t *testing.T) {
	if condition, args := buildKeywordCondition(nil, "   ", "code"); condition != "" || args != nil {
		t.Fatalf("blank keyword should produce no condition, got %q %v", condition, args)
	}
	if condition, _ := buildKeywordCondition(nil, "x"); condition != "" {
		t.Fatalf("no columns should produce no condition, got %q", condition)
	}
	if got := escapeLike("50%_off"); got != "50off" {
		t.Fatalf("escape like want 50off got %s", got)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}
