package relevance_test

import (
	"testing"

	"github.com/agnt-gg/slop-sub000/internal/relevance"
)

func TestScoreOrdering(t *testing.T) {
	t.Parallel()

	query := "database backup schedule"
	full := relevance.Score(query, "nightly database backup schedule for the cluster")
	partialMatch := relevance.Score(query, "database maintenance window")
	none := relevance.Score(query, "unrelated grocery list")

	if full <= partialMatch {
		t.Fatalf("expected full match above partial: %v vs %v", full, partialMatch)
	}
	if partialMatch <= none {
		t.Fatalf("expected partial match above no match: %v vs %v", partialMatch, none)
	}
	if none >= relevance.MinScore {
		t.Fatalf("expected unrelated text below threshold, got %v", none)
	}
}

func TestScoreMonotonicUnderAppend(t *testing.T) {
	t.Parallel()

	query := "invoice totals"
	base := "quarterly report for accounting"
	before := relevance.Score(query, base)
	after := relevance.Score(query, base+" with invoice totals attached")
	if after < before {
		t.Fatalf("appending matching text lowered the score: %v -> %v", before, after)
	}
	if after <= before {
		t.Fatalf("expected matching text to raise the score: %v -> %v", before, after)
	}
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	if got := relevance.Score("", "anything"); got != 0 {
		t.Fatalf("empty query should score 0, got %v", got)
	}
	if got := relevance.Score("hello", ""); got != 0 {
		t.Fatalf("empty text should score 0, got %v", got)
	}
	if got := relevance.Score("hello world", "hello world"); got > 1 {
		t.Fatalf("score exceeded 1: %v", got)
	}
}

func TestTokensStemAndDedup(t *testing.T) {
	t.Parallel()

	got := relevance.Tokens("Servers serving served server!")
	want := map[string]bool{"server": true, "serv": true}
	for _, tok := range got {
		if !want[tok] {
			t.Fatalf("unexpected token %q in %v", tok, got)
		}
	}
	if len(got) < 1 {
		t.Fatalf("expected tokens, got %v", got)
	}
}
