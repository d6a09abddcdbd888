// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package linesearch

import (
	"testing"

	"github.com/tailpipedev/tailpipe/pkg/ds"
)

func lines(msgs ...string) []ds.LogLine {
	rtn := make([]ds.LogLine, 0, len(msgs))
	for i, msg := range msgs {
		rtn = append(rtn, ds.LogLine{LineNum: int64(i + 1), Msg: msg})
	}
	return rtn
}

func matchedMsgs(t *testing.T, searchType, term string, input []ds.LogLine) []string {
	t.Helper()
	searcher, err := MakeSearcher(searchType, term)
	if err != nil {
		t.Fatalf("MakeSearcher(%q, %q) failed: %v", searchType, term, err)
	}
	var msgs []string
	for _, line := range FilterLines(input, searcher) {
		msgs = append(msgs, line.Msg)
	}
	return msgs
}

func TestExactSearchIsCaseInsensitive(t *testing.T) {
	input := lines("Server Started", "client connected", "server stopped")
	got := matchedMsgs(t, SearchTypeExact, "SERVER", input)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
	if got[0] != "Server Started" || got[1] != "server stopped" {
		t.Errorf("unexpected matches: %v", got)
	}
}

func TestExactCaseSearchRespectsCase(t *testing.T) {
	input := lines("Server Started", "server stopped")
	got := matchedMsgs(t, SearchTypeExactCase, "Server", input)
	if len(got) != 1 || got[0] != "Server Started" {
		t.Errorf("unexpected matches: %v", got)
	}
}

func TestEmptySearchTypeDefaultsToExact(t *testing.T) {
	searcher, err := MakeSearcher("", "x")
	if err != nil {
		t.Fatalf("MakeSearcher failed: %v", err)
	}
	if searcher.GetType() != SearchTypeExact {
		t.Errorf("expected default type %q, got %q", SearchTypeExact, searcher.GetType())
	}
}

func TestFzfSearchMatchesSubsequence(t *testing.T) {
	input := lines("connection refused by peer", "all systems nominal")
	got := matchedMsgs(t, SearchTypeFzf, "connref", input)
	if len(got) != 1 || got[0] != "connection refused by peer" {
		t.Errorf("unexpected fzf matches: %v", got)
	}
}

func TestRegexpSearch(t *testing.T) {
	input := lines("GET /api/health 200", "GET /api/loglines 500", "POST /api/loglines 200")
	got := matchedMsgs(t, SearchTypeRegexp, `GET /api/\w+ 5\d\d`, input)
	if len(got) != 1 || got[0] != "GET /api/loglines 500" {
		t.Errorf("unexpected regexp matches: %v", got)
	}
}

func TestRegexpSearchRejectsBadPattern(t *testing.T) {
	if _, err := MakeSearcher(SearchTypeRegexp, "["); err == nil {
		t.Error("expected an error for an invalid regexp")
	}
}

func TestUnknownSearchTypeRejected(t *testing.T) {
	if _, err := MakeSearcher("soundex", "x"); err == nil {
		t.Error("expected an error for an unknown search type")
	}
}

func TestNilSearcherMatchesEverything(t *testing.T) {
	input := lines("a", "b")
	got := FilterLines(input, nil)
	if len(got) != 2 {
		t.Errorf("expected all lines back, got %d", len(got))
	}
}
