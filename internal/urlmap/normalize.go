package urlmap

import (
	"errors"
	"fmt"
	"strings"
)

// Field keys accepted on the command line
const (
	KeyHosts          = "hosts"
	KeyPathMatcher    = "pathMatcher"
	KeyName           = "name"
	KeyDefaultService = "defaultService"
	KeyPath           = "path"
	KeyService        = "service"
)

var (
	ErrMalformedToken     = errors.New("malformed key=value token")
	ErrUnknownField       = errors.New("unknown field")
	ErrDuplicateField     = errors.New("duplicate field")
	ErrMissingField       = errors.New("missing required field")
	ErrIncompletePathRule = errors.New("incomplete path rule")
	ErrNoPathRules        = errors.New("no path rules given")
)

// PathRuleShape tells whether the path rule input held one rule or several
type PathRuleShape int

const (
	SinglePathRule PathRuleShape = iota + 1
	MultiplePathRules
)

func (s PathRuleShape) String() string {
	switch s {
	case SinglePathRule:
		return "single"
	case MultiplePathRules:
		return "multiple"
	default:
		return "unknown"
	}
}

// PathRuleSpec is one path/service pair taken from the input
type PathRuleSpec struct {
	Path    string
	Service string
}

// PathRuleInput is the normalized form of the path rule tokens
type PathRuleInput struct {
	Shape PathRuleShape
	Rules []PathRuleSpec
}

// ParseToken splits a key=value token at the first '='
func ParseToken(tok string) (string, string, error) {
	key, value, ok := strings.Cut(tok, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedToken, tok)
	}
	return key, strings.TrimSpace(value), nil
}

// ParseFields parses tokens into a field map restricted to the given keys
func ParseFields(tokens []string, keys ...string) (map[string]string, error) {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}

	fields := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		k, v, err := ParseToken(tok)
		if err != nil {
			return nil, err
		}
		if _, ok := allowed[k]; !ok {
			return nil, fmt.Errorf("%w %q (expected one of %s)", ErrUnknownField, k, strings.Join(keys, ", "))
		}
		if _, ok := fields[k]; ok {
			return nil, fmt.Errorf("%w %q", ErrDuplicateField, k)
		}
		fields[k] = v
	}
	return fields, nil
}

// NormalizePathRules groups path rule tokens into path/service pairs, in input order.
// Each consecutive pair of tokens must carry exactly one path and one service.
func NormalizePathRules(tokens []string) (PathRuleInput, error) {
	if len(tokens) == 0 {
		return PathRuleInput{}, ErrNoPathRules
	}
	if len(tokens)%2 != 0 {
		return PathRuleInput{}, fmt.Errorf("%w: got %d tokens, path rules take a path and a service each",
			ErrIncompletePathRule, len(tokens))
	}

	rules := make([]PathRuleSpec, 0, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		fields, err := ParseFields(tokens[i:i+2], KeyPath, KeyService)
		if err != nil {
			return PathRuleInput{}, fmt.Errorf("path rule %d: %w", i/2+1, err)
		}
		spec := PathRuleSpec{Path: fields[KeyPath], Service: fields[KeyService]}
		if spec.Path == "" {
			return PathRuleInput{}, fmt.Errorf("path rule %d: %w %q", i/2+1, ErrMissingField, KeyPath)
		}
		if spec.Service == "" {
			return PathRuleInput{}, fmt.Errorf("path rule %d: %w %q", i/2+1, ErrMissingField, KeyService)
		}
		rules = append(rules, spec)
	}

	shape := MultiplePathRules
	if len(rules) == 1 {
		shape = SinglePathRule
	}
	return PathRuleInput{Shape: shape, Rules: rules}, nil
}
