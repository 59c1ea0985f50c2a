package xds

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	route "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	"github.com/moonkev/urlmapedit/internal/urlmap"
	"google.golang.org/protobuf/encoding/protojson"
)

const defaultRouteConfigName = "url_map"

// ErrUnknownPathMatcher is returned when a host rule names a path matcher the document lacks
var ErrUnknownPathMatcher = errors.New("host rule references an unknown path matcher")

// BuildRouteConfiguration translates a URL map into an Envoy route configuration.
// Each host rule becomes a virtual host. Path rules become routes in document order,
// followed by a catch-all route to the path matcher's default service.
func BuildRouteConfiguration(doc *urlmap.Document) (*route.RouteConfiguration, error) {
	matchers := make(map[string]*urlmap.PathMatcher, len(doc.PathMatchers))
	for i := range doc.PathMatchers {
		pm := &doc.PathMatchers[i]
		if _, dup := matchers[pm.Name]; !dup {
			matchers[pm.Name] = pm
		}
	}

	virtualHosts := make([]*route.VirtualHost, 0, len(doc.HostRules)+1)
	for i, hr := range doc.HostRules {
		pm, ok := matchers[hr.PathMatcher]
		if !ok {
			return nil, fmt.Errorf("%w: host rule %d (%v) -> %q", ErrUnknownPathMatcher, i, hr.Hosts, hr.PathMatcher)
		}

		vh := &route.VirtualHost{
			Name:    fmt.Sprintf("%s-%d", hr.PathMatcher, i),
			Domains: append([]string(nil), hr.Hosts...),
			Routes:  buildRoutes(pm),
		}
		virtualHosts = append(virtualHosts, vh)
		slog.Debug("Built virtual host", "name", vh.Name, "domains", vh.Domains, "routes", len(vh.Routes))
	}

	// The map-level default service catches hosts no host rule names
	if svc := doc.DefaultService(); svc != "" {
		virtualHosts = append(virtualHosts, &route.VirtualHost{
			Name:    "default",
			Domains: []string{"*"},
			Routes:  []*route.Route{catchAllRoute(svc)},
		})
	}

	name := doc.Name()
	if name == "" {
		name = defaultRouteConfigName
	}
	return &route.RouteConfiguration{
		Name:         name,
		VirtualHosts: virtualHosts,
	}, nil
}

func buildRoutes(pm *urlmap.PathMatcher) []*route.Route {
	routes := make([]*route.Route, 0, len(pm.PathRules)+1)
	for _, pr := range pm.PathRules {
		if pr.Service == "" {
			slog.Warn("Skipping path rule without a single backend service", "pathMatcher", pm.Name, "paths", pr.Paths)
			continue
		}

		ra := &route.RouteAction{
			ClusterSpecifier: &route.RouteAction_Cluster{Cluster: ClusterName(pr.Service)},
		}
		if prefixRewrite := pr.PrefixRewrite(); prefixRewrite != "" {
			ra.PrefixRewrite = prefixRewrite
		}

		for _, p := range pr.Paths {
			routes = append(routes, &route.Route{
				Match:  routeMatch(p),
				Action: &route.Route_Route{Route: ra},
			})
		}
	}
	if pm.DefaultService != "" {
		routes = append(routes, catchAllRoute(pm.DefaultService))
	}
	return routes
}

// routeMatch maps a URL map path to an Envoy match; a trailing "/*" is a prefix match
func routeMatch(p string) *route.RouteMatch {
	if strings.HasSuffix(p, "/*") {
		return &route.RouteMatch{
			PathSpecifier: &route.RouteMatch_Prefix{Prefix: strings.TrimSuffix(p, "*")},
		}
	}
	return &route.RouteMatch{
		PathSpecifier: &route.RouteMatch_Path{Path: p},
	}
}

func catchAllRoute(service string) *route.Route {
	return &route.Route{
		Match: &route.RouteMatch{
			PathSpecifier: &route.RouteMatch_Prefix{Prefix: "/"},
		},
		Action: &route.Route_Route{Route: &route.RouteAction{
			ClusterSpecifier: &route.RouteAction_Cluster{Cluster: ClusterName(service)},
		}},
	}
}

// ClusterName derives an Envoy cluster name from a backend reference. Full resource
// URLs like .../global/backendServices/web become "web".
func ClusterName(service string) string {
	s := strings.TrimRight(service, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Validate translates the document and checks the result against the Envoy API rules
func Validate(doc *urlmap.Document) error {
	rc, err := BuildRouteConfiguration(doc)
	if err != nil {
		return err
	}
	if err := rc.ValidateAll(); err != nil {
		return fmt.Errorf("invalid route configuration: %w", err)
	}
	return nil
}

// MarshalRouteConfiguration renders the route configuration as indented JSON
func MarshalRouteConfiguration(rc *route.RouteConfiguration) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(rc)
}
