package urlmap

import (
	"fmt"
)

// Records are the entries built from one invocation's input
type Records struct {
	HostRule    HostRule
	PathMatcher PathMatcher
	Shape       PathRuleShape
}

// NewHostRule binds a single host to a path matcher
func NewHostRule(host, pathMatcher string) HostRule {
	return HostRule{
		Hosts:       []string{host},
		PathMatcher: pathMatcher,
	}
}

// NewPathMatcher returns a path matcher with no path rules
func NewPathMatcher(name, defaultService string) PathMatcher {
	return PathMatcher{
		DefaultService: defaultService,
		Name:           name,
		PathRules:      []PathRule{},
	}
}

// NewPathRule routes a single path to service, rewriting the matched prefix to "/"
func NewPathRule(path, service string) PathRule {
	return PathRule{
		Paths: []string{path},
		RouteAction: &RouteAction{
			URLRewrite: &URLRewrite{PathPrefixRewrite: DefaultPathPrefixRewrite},
		},
		Service: service,
	}
}

// BuildRecords turns the host rule, path matcher and path rule tokens into records.
// Nothing is built unless every token parses and every required key has a value.
func BuildRecords(hostTokens, matcherTokens, ruleTokens []string) (Records, error) {
	hostFields, err := ParseFields(hostTokens, KeyHosts, KeyPathMatcher)
	if err != nil {
		return Records{}, fmt.Errorf("host rule: %w", err)
	}
	if err := requireFields("host rule", hostFields, KeyHosts, KeyPathMatcher); err != nil {
		return Records{}, err
	}

	matcherFields, err := ParseFields(matcherTokens, KeyName, KeyDefaultService)
	if err != nil {
		return Records{}, fmt.Errorf("path matcher: %w", err)
	}
	if err := requireFields("path matcher", matcherFields, KeyName, KeyDefaultService); err != nil {
		return Records{}, err
	}

	input, err := NormalizePathRules(ruleTokens)
	if err != nil {
		return Records{}, fmt.Errorf("path rules: %w", err)
	}

	matcher := NewPathMatcher(matcherFields[KeyName], matcherFields[KeyDefaultService])
	for _, spec := range input.Rules {
		matcher.PathRules = append(matcher.PathRules, NewPathRule(spec.Path, spec.Service))
	}

	return Records{
		HostRule:    NewHostRule(hostFields[KeyHosts], hostFields[KeyPathMatcher]),
		PathMatcher: matcher,
		Shape:       input.Shape,
	}, nil
}

func requireFields(record string, fields map[string]string, keys ...string) error {
	for _, k := range keys {
		if fields[k] == "" {
			return fmt.Errorf("%s: %w %q", record, ErrMissingField, k)
		}
	}
	return nil
}
