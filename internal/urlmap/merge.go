package urlmap

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNilDocument is returned when Merge is given no document
var ErrNilDocument = errors.New("no url map document")

// MatchMode decides when an existing host rule or path matcher counts as the same entry
type MatchMode int

const (
	// MatchContains treats an entry as existing when its host or name contains the new one.
	// "a.example.com" is found by "example.com", which is the behaviour stored maps were built with.
	MatchContains MatchMode = iota
	// MatchExact requires equal strings
	MatchExact
)

func (m MatchMode) String() string {
	switch m {
	case MatchContains:
		return "contains"
	case MatchExact:
		return "exact"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(m))
	}
}

// ParseMatchMode parses "contains" or "exact"
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "contains":
		return MatchContains, nil
	case "exact":
		return MatchExact, nil
	default:
		return 0, fmt.Errorf("invalid match mode %q: expected contains or exact", s)
	}
}

// MergeResult reports what Merge did to the document
type MergeResult struct {
	HostRuleAdded    bool
	HostRuleIndex    int
	PathMatcherAdded bool
	PathMatcherIndex int
	// PathRulesAppended counts rules appended to an existing matcher
	PathRulesAppended int
	// DuplicatePathRules counts appended rules that were already present in the matcher
	DuplicatePathRules int
}

// Merger inserts or merges new host rules and path matchers into a document
type Merger struct {
	mode MatchMode
}

func NewMerger(mode MatchMode) *Merger {
	return &Merger{mode: mode}
}

func (m *Merger) Mode() MatchMode {
	return m.mode
}

// FindHostRule returns the index of the first host rule already covering host.
// In contains mode only the first host of each rule is checked.
func (m *Merger) FindHostRule(doc *Document, host string) (bool, int) {
	for i, hr := range doc.HostRules {
		if len(hr.Hosts) == 0 {
			continue
		}
		switch m.mode {
		case MatchExact:
			for _, h := range hr.Hosts {
				if h == host {
					return true, i
				}
			}
		default:
			if strings.Contains(hr.Hosts[0], host) {
				return true, i
			}
		}
	}
	return false, -1
}

// FindPathMatcher returns the index of the first path matcher matching name
func (m *Merger) FindPathMatcher(doc *Document, name string) (bool, int) {
	for i, pm := range doc.PathMatchers {
		if m.matches(pm.Name, name) {
			return true, i
		}
	}
	return false, -1
}

func (m *Merger) matches(existing, candidate string) bool {
	if m.mode == MatchExact {
		return existing == candidate
	}
	return strings.Contains(existing, candidate)
}

// Merge applies the host rule and path matcher to doc:
//   - the host rule is appended unless an existing rule already covers its host
//   - the path matcher is appended, or when one with the same name exists its
//     path rules are appended to that matcher instead
//
// Path rules are appended even when an identical rule is already present.
func (m *Merger) Merge(doc *Document, hostRule HostRule, matcher PathMatcher) (MergeResult, error) {
	if doc == nil {
		return MergeResult{}, ErrNilDocument
	}
	if len(hostRule.Hosts) == 0 || hostRule.Hosts[0] == "" {
		return MergeResult{}, fmt.Errorf("host rule: %w %q", ErrMissingField, KeyHosts)
	}
	if matcher.Name == "" {
		return MergeResult{}, fmt.Errorf("path matcher: %w %q", ErrMissingField, KeyName)
	}

	var result MergeResult

	found, idx := m.FindHostRule(doc, hostRule.Hosts[0])
	if found {
		result.HostRuleIndex = idx
	} else {
		doc.HostRules = append(doc.HostRules, cloneHostRule(hostRule))
		result.HostRuleAdded = true
		result.HostRuleIndex = len(doc.HostRules) - 1
	}

	found, idx = m.FindPathMatcher(doc, matcher.Name)
	if found {
		result.PathMatcherIndex = idx
		result.PathRulesAppended, result.DuplicatePathRules = appendPathRules(&doc.PathMatchers[idx], matcher.PathRules)
	} else {
		doc.PathMatchers = append(doc.PathMatchers, clonePathMatcher(matcher))
		result.PathMatcherAdded = true
		result.PathMatcherIndex = len(doc.PathMatchers) - 1
	}

	return result, nil
}

func appendPathRules(target *PathMatcher, rules []PathRule) (appended, duplicates int) {
	existing := len(target.PathRules)
	for _, r := range rules {
		for _, old := range target.PathRules[:existing] {
			if old.sameTarget(r) {
				duplicates++
				break
			}
		}
		target.PathRules = append(target.PathRules, clonePathRule(r))
		appended++
	}
	return appended, duplicates
}

func cloneHostRule(hr HostRule) HostRule {
	hr.Hosts = append([]string(nil), hr.Hosts...)
	return hr
}

func clonePathMatcher(pm PathMatcher) PathMatcher {
	rules := make([]PathRule, 0, len(pm.PathRules))
	for _, r := range pm.PathRules {
		rules = append(rules, clonePathRule(r))
	}
	pm.PathRules = rules
	return pm
}

func clonePathRule(r PathRule) PathRule {
	r.Paths = append([]string(nil), r.Paths...)
	if r.RouteAction != nil {
		ra := *r.RouteAction
		if ra.URLRewrite != nil {
			rw := *ra.URLRewrite
			ra.URLRewrite = &rw
		}
		r.RouteAction = &ra
	}
	return r
}
