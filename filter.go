package main

import (
	"fmt"
	"regexp"
	"strings"
)

// testFilter selects tests by their full path, "suite/.../test".
type testFilter struct {
	mustMatch    []*regexp.Regexp
	mustNotMatch []*regexp.Regexp
}

func newTestFilter(run, skip []string) (testFilter, error) {
	var f testFilter
	var err error
	if f.mustMatch, err = compilePatterns(run); err != nil {
		return f, err
	}
	f.mustNotMatch, err = compilePatterns(skip)
	return f, err
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	var ret []*regexp.Regexp
	for _, p := range patterns {
		r, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", p, err)
		}
		ret = append(ret, r)
	}
	return ret, nil
}

func (f testFilter) IsDefined() bool {
	return len(f.mustMatch) != 0 || len(f.mustNotMatch) != 0
}

func (f testFilter) Match(path string) bool {
	if len(f.mustMatch) != 0 && !anyMatch(f.mustMatch, path) {
		return false
	}
	return !anyMatch(f.mustNotMatch, path)
}

func (f testFilter) String() string {
	var parts []string
	if len(f.mustMatch) != 0 {
		parts = append(parts, "matching "+describePatterns(f.mustMatch))
	}
	if len(f.mustNotMatch) != 0 {
		parts = append(parts, "not matching "+describePatterns(f.mustNotMatch))
	}
	return strings.Join(parts, " and ")
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func describePatterns(patterns []*regexp.Regexp) string {
	var ss []string
	for _, p := range patterns {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}
