// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package linesearch

import (
	"fmt"
	"regexp"

	"github.com/tailpipedev/tailpipe/pkg/ds"
)

// RegexpSearcher implements regular expression matching
type RegexpSearcher struct {
	searchTerm string
	re         *regexp.Regexp
}

// MakeRegexpSearcher creates a new regexp searcher
func MakeRegexpSearcher(searchTerm string) (Searcher, error) {
	re, err := regexp.Compile(searchTerm)
	if err != nil {
		return nil, fmt.Errorf("invalid regexp %q: %w", searchTerm, err)
	}
	return &RegexpSearcher{searchTerm: searchTerm, re: re}, nil
}

// Match checks if the log line matches the regexp
func (s *RegexpSearcher) Match(line ds.LogLine) bool {
	return s.re.MatchString(line.Msg)
}

// GetType returns the search type identifier
func (s *RegexpSearcher) GetType() string {
	return SearchTypeRegexp
}
