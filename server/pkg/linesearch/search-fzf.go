// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package linesearch

import (
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
	"github.com/tailpipedev/tailpipe/pkg/ds"
)

// FzfSearcher implements fuzzy matching using the fzf algorithm
type FzfSearcher struct {
	searchTerm string
	pattern    []rune
	slab       *util.Slab
}

// MakeFzfSearcher creates a new fzf searcher
func MakeFzfSearcher(searchTerm string) (Searcher, error) {
	pattern := []rune(strings.ToLower(searchTerm))
	slab := util.MakeSlab(64, 4096)
	return &FzfSearcher{
		searchTerm: searchTerm,
		pattern:    pattern,
		slab:       slab,
	}, nil
}

// Match checks if the log line matches the fuzzy search pattern
func (s *FzfSearcher) Match(line ds.LogLine) bool {
	msg := strings.ToLower(line.Msg)
	chars := util.ToChars([]byte(msg))
	result, _ := algo.FuzzyMatchV2(false, true, true, &chars, s.pattern, true, s.slab)
	return result.Score > 0
}

// GetType returns the search type identifier
func (s *FzfSearcher) GetType() string {
	return SearchTypeFzf
}
