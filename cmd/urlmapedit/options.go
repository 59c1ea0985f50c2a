package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/moonkev/urlmapedit/internal/common/config"
	"github.com/moonkev/urlmapedit/internal/editor"
	"github.com/moonkev/urlmapedit/internal/store"
	"github.com/moonkev/urlmapedit/internal/store/consul"
	"github.com/moonkev/urlmapedit/internal/store/file"
	"github.com/moonkev/urlmapedit/internal/urlmap"
)

type options struct {
	filePath    string
	consulAddr  string
	consulKey   string
	consulToken string
	hostRule    config.KeyValueSliceFlag
	pathMatcher config.KeyValueSliceFlag
	pathRules   config.KeyValueSliceFlag
	matchMode   string
	dryRun      bool
	validate    bool
	envoyOut    string
	metricsFile string
	logLevel    config.LogLevelFlag
}

func newOptions() *options {
	return &options{
		consulAddr:  "localhost:8500",
		consulToken: os.Getenv("CONSUL_HTTP_TOKEN"),
		matchMode:   "contains",
		logLevel:    config.LogLevelFlag(slog.LevelInfo),
	}
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.filePath, "file", o.filePath, "path to the URL map YAML file to edit")
	fs.StringVar(&o.consulAddr, "consul-addr", o.consulAddr, "consul HTTP address (host:port), used with -consul-key")
	fs.StringVar(&o.consulKey, "consul-key", o.consulKey, "consul KV key holding the URL map, instead of -file")
	fs.StringVar(&o.consulToken, "consul-token", o.consulToken, "consul ACL token (default: $CONSUL_HTTP_TOKEN)")
	fs.Var(&o.hostRule, "hostrule", "host rule fields: hosts=HOST,pathMatcher=NAME (repeatable)")
	fs.Var(&o.pathMatcher, "pathmatcher", "path matcher fields: name=NAME,defaultService=SERVICE (repeatable)")
	fs.Var(&o.pathRules, "pathrules", "path rule fields, one path and one service per rule: path=PATH,service=SERVICE (repeatable; a comma not followed by key= stays in the value)")
	fs.StringVar(&o.matchMode, "match-mode", o.matchMode, "how existing host rules and path matchers are matched: contains or exact")
	fs.BoolVar(&o.dryRun, "dry-run", o.dryRun, "print the merged URL map to stdout instead of writing it")
	fs.BoolVar(&o.validate, "validate", o.validate, "check the merged URL map translates to a valid Envoy route configuration before writing")
	fs.StringVar(&o.envoyOut, "envoy-out", o.envoyOut, "write the merged URL map as an Envoy route configuration (JSON) to this path")
	fs.StringVar(&o.metricsFile, "metrics-file", o.metricsFile, "write run metrics in Prometheus text format to this path")
	fs.Var(&o.logLevel, "log-level", "log level: debug, info, warn, error (default: info)")
}

// request checks the flag combination and turns it into an editor request
func (o *options) request() (editor.Request, error) {
	if o.filePath == "" && o.consulKey == "" {
		return editor.Request{}, errors.New("one of -file or -consul-key must be specified")
	}
	if o.filePath != "" && o.consulKey != "" {
		return editor.Request{}, errors.New("-file and -consul-key are mutually exclusive")
	}
	if len(o.hostRule) == 0 || len(o.pathMatcher) == 0 || len(o.pathRules) == 0 {
		return editor.Request{}, errors.New("-hostrule, -pathmatcher and -pathrules are all required")
	}
	mode, err := urlmap.ParseMatchMode(o.matchMode)
	if err != nil {
		return editor.Request{}, fmt.Errorf("invalid -match-mode: %w", err)
	}
	return editor.Request{
		HostRule:    o.hostRule,
		PathMatcher: o.pathMatcher,
		PathRules:   o.pathRules,
		MatchMode:   mode,
		Validate:    o.validate,
		EnvoyConfig: o.envoyOut != "",
		DryRun:      o.dryRun,
		Output:      os.Stdout,
	}, nil
}

func (o *options) store() (store.Store, error) {
	if o.consulKey != "" {
		return consul.NewStore(consul.Config{ConsulAddr: o.consulAddr, Key: o.consulKey, Token: o.consulToken})
	}
	return file.NewStore(file.Config{Path: o.filePath})
}
