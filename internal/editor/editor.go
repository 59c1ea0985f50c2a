package editor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/moonkev/urlmapedit/internal/common/telemetry"
	"github.com/moonkev/urlmapedit/internal/store"
	"github.com/moonkev/urlmapedit/internal/urlmap"
	"github.com/moonkev/urlmapedit/internal/xds"
)

// Request is one edit of a URL map, as given on the command line
type Request struct {
	HostRule    []string
	PathMatcher []string
	PathRules   []string
	MatchMode   urlmap.MatchMode
	// Validate checks the merged map against the Envoy route API before it is written
	Validate bool
	// EnvoyConfig translates the merged map to an Envoy route configuration before it is written
	EnvoyConfig bool
	// DryRun writes the merged map to Output instead of the store
	DryRun bool
	Output io.Writer
}

// Result is the merged document and what the merge did to it
type Result struct {
	Document *urlmap.Document
	Merge    urlmap.MergeResult
	Records  urlmap.Records
	// EnvoyConfig is the protojson route configuration, set when the request asked for it
	EnvoyConfig []byte
}

// Run loads the URL map from st, merges the requested records into it and writes it back.
// Input errors are reported before the store is touched; nothing is written unless the
// whole merge, validation and Envoy translation succeed.
func Run(ctx context.Context, st store.Store, req Request) (*Result, error) {
	recs, err := urlmap.BuildRecords(req.HostRule, req.PathMatcher, req.PathRules)
	if err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	slog.Debug("Built records",
		"hosts", recs.HostRule.Hosts,
		"pathMatcher", recs.PathMatcher.Name,
		"pathRules", len(recs.PathMatcher.PathRules),
		"shape", recs.Shape)

	if recs.HostRule.PathMatcher != recs.PathMatcher.Name {
		slog.Warn("Host rule points at a different path matcher than the one being added",
			"hostRulePathMatcher", recs.HostRule.PathMatcher,
			"pathMatcher", recs.PathMatcher.Name)
	}

	raw, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := urlmap.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", st, err)
	}
	slog.Info("Loaded url map",
		"store", st.String(),
		"hostRules", len(doc.HostRules),
		"pathMatchers", len(doc.PathMatchers))

	merger := urlmap.NewMerger(req.MatchMode)
	res, err := merger.Merge(doc, recs.HostRule, recs.PathMatcher)
	if err != nil {
		return nil, err
	}
	logMerge(recs, res, merger.Mode())
	recordMerge(res)

	if req.Validate {
		if err := xds.Validate(doc); err != nil {
			return nil, fmt.Errorf("merged url map failed validation: %w", err)
		}
		slog.Debug("Merged url map passed validation")
	}

	var envoyConfig []byte
	if req.EnvoyConfig {
		rc, err := xds.BuildRouteConfiguration(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to translate merged url map: %w", err)
		}
		envoyConfig, err = xds.MarshalRouteConfiguration(rc)
		if err != nil {
			return nil, err
		}
		slog.Debug("Translated merged url map", "virtualHosts", len(rc.VirtualHosts))
	}

	out, err := doc.Encode()
	if err != nil {
		return nil, err
	}

	if req.DryRun {
		if req.Output == nil {
			return nil, fmt.Errorf("dry run requires an output writer")
		}
		if _, err := req.Output.Write(out); err != nil {
			return nil, fmt.Errorf("failed to write dry run output: %w", err)
		}
		slog.Info("Dry run, url map not written", "store", st.String())
	} else {
		if err := st.Save(ctx, out); err != nil {
			return nil, err
		}
		telemetry.MetricLastSuccess.Set(float64(time.Now().Unix()))
	}

	return &Result{Document: doc, Merge: res, Records: recs, EnvoyConfig: envoyConfig}, nil
}

func logMerge(recs urlmap.Records, res urlmap.MergeResult, mode urlmap.MatchMode) {
	if res.HostRuleAdded {
		slog.Info("Added host rule", "hosts", recs.HostRule.Hosts, "pathMatcher", recs.HostRule.PathMatcher)
	} else {
		slog.Info("A host rule for this host already exists, will not add a new one",
			"host", recs.HostRule.Hosts[0],
			"index", res.HostRuleIndex,
			"matchMode", mode.String())
	}

	if res.PathMatcherAdded {
		slog.Info("Added path matcher",
			"name", recs.PathMatcher.Name,
			"pathRules", len(recs.PathMatcher.PathRules))
	} else {
		slog.Info("Path matcher already defined, appended path rules to it",
			"name", recs.PathMatcher.Name,
			"index", res.PathMatcherIndex,
			"appended", res.PathRulesAppended,
			"matchMode", mode.String())
	}
	if res.DuplicatePathRules > 0 {
		slog.Warn("Appended path rules that were already present", "count", res.DuplicatePathRules)
	}
}

func recordMerge(res urlmap.MergeResult) {
	if res.HostRuleAdded {
		telemetry.MetricHostRules.WithLabelValues("added").Inc()
	} else {
		telemetry.MetricHostRules.WithLabelValues("exists").Inc()
	}
	if res.PathMatcherAdded {
		telemetry.MetricPathMatchers.WithLabelValues("added").Inc()
	} else {
		telemetry.MetricPathMatchers.WithLabelValues("merged").Inc()
	}
	telemetry.MetricPathRulesAppended.Add(float64(res.PathRulesAppended))
	telemetry.MetricDuplicatePathRules.Add(float64(res.DuplicatePathRules))
}
