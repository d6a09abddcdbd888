// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package linesearch filters stored log lines by search term. Searchers are
// built per request and are not safe for concurrent use (the fzf slab is
// reused between matches).
package linesearch

import (
	"fmt"

	"github.com/tailpipedev/tailpipe/pkg/ds"
)

// Search type identifiers
const (
	SearchTypeExact     = "exact"
	SearchTypeExactCase = "exactcase"
	SearchTypeFzf       = "fzf"
	SearchTypeRegexp    = "regexp"
)

// Searcher matches individual log lines against a search term.
type Searcher interface {
	Match(line ds.LogLine) bool
	GetType() string
}

// MakeSearcher builds a searcher for the given type. An empty searchType
// defaults to case-insensitive exact matching.
func MakeSearcher(searchType string, searchTerm string) (Searcher, error) {
	switch searchType {
	case "", SearchTypeExact:
		return MakeExactSearcher(searchTerm, false), nil
	case SearchTypeExactCase:
		return MakeExactSearcher(searchTerm, true), nil
	case SearchTypeFzf:
		return MakeFzfSearcher(searchTerm)
	case SearchTypeRegexp:
		return MakeRegexpSearcher(searchTerm)
	default:
		return nil, fmt.Errorf("unknown search type: %s", searchType)
	}
}

// FilterLines returns the lines matching the searcher, preserving order. A
// nil searcher matches everything.
func FilterLines(lines []ds.LogLine, searcher Searcher) []ds.LogLine {
	if searcher == nil {
		return lines
	}
	rtn := make([]ds.LogLine, 0, len(lines))
	for _, line := range lines {
		if searcher.Match(line) {
			rtn = append(rtn, line)
		}
	}
	return rtn
}
