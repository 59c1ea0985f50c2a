package urlmap

import (
	"go.yaml.in/yaml/v3"
)

// DefaultPathPrefixRewrite is the rewrite prefix set on every path rule built by this tool
const DefaultPathPrefixRewrite = "/"

// Document is an in-memory URL map. HostRules and PathMatchers are typed views of the
// loaded node tree; Encode appends whatever was added to them back into that tree, so
// comments and the key order of loaded entries are written back unchanged.
type Document struct {
	HostRules    []HostRule
	PathMatchers []PathMatcher

	root         *yaml.Node
	hostRulesSeq *yaml.Node
	matchersSeq  *yaml.Node
}

// HostRule binds hosts to a named path matcher
type HostRule struct {
	Hosts       []string               `yaml:"hosts"`
	PathMatcher string                 `yaml:"pathMatcher"`
	Extra       map[string]interface{} `yaml:",inline"`
}

// PathMatcher is a named set of path rules with a default backend
type PathMatcher struct {
	DefaultService string                 `yaml:"defaultService,omitempty"`
	Name           string                 `yaml:"name"`
	PathRules      []PathRule             `yaml:"pathRules,omitempty"`
	Extra          map[string]interface{} `yaml:",inline"`
}

// PathRule sends requests for its paths to a backend service
type PathRule struct {
	Paths       []string               `yaml:"paths"`
	RouteAction *RouteAction           `yaml:"routeAction,omitempty"`
	Service     string                 `yaml:"service,omitempty"`
	Extra       map[string]interface{} `yaml:",inline"`
}

type RouteAction struct {
	URLRewrite *URLRewrite             `yaml:"urlRewrite,omitempty"`
	Extra      map[string]interface{} `yaml:",inline"`
}

type URLRewrite struct {
	PathPrefixRewrite string                 `yaml:"pathPrefixRewrite,omitempty"`
	HostRewrite       string                 `yaml:"hostRewrite,omitempty"`
	Extra             map[string]interface{} `yaml:",inline"`
}

// Name returns the top-level name of the URL map, if any
func (d *Document) Name() string {
	return d.stringKey("name")
}

// DefaultService returns the top-level default backend of the URL map, if any
func (d *Document) DefaultService() string {
	return d.stringKey("defaultService")
}

func (d *Document) stringKey(key string) string {
	if d.root == nil {
		return ""
	}
	if v := mappingValue(d.root.Content[0], key); v != nil && v.Kind == yaml.ScalarNode && v.Tag != nullTag {
		return v.Value
	}
	return ""
}

// PrefixRewrite returns the path prefix rewrite of the rule, or "" when none is set
func (r PathRule) PrefixRewrite() string {
	if r.RouteAction == nil || r.RouteAction.URLRewrite == nil {
		return ""
	}
	return r.RouteAction.URLRewrite.PathPrefixRewrite
}

// sameTarget reports whether two rules route the same paths to the same service
func (r PathRule) sameTarget(o PathRule) bool {
	if r.Service != o.Service || len(r.Paths) != len(o.Paths) {
		return false
	}
	for i := range r.Paths {
		if r.Paths[i] != o.Paths[i] {
			return false
		}
	}
	return r.PrefixRewrite() == o.PrefixRewrite()
}
