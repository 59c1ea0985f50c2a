package consul

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/moonkev/urlmapedit/internal/store"
)

// Config holds the Consul KV location of the URL map
type Config struct {
	ConsulAddr string
	Key        string
	Token      string
}

type HeaderRoundTripper struct {
	Rt http.RoundTripper
}

func (h *HeaderRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	return h.Rt.RoundTrip(req)
}

func NewClient(addr, token string) (*consulapi.Client, error) {
	consulCfg := consulapi.DefaultConfig()
	consulCfg.Address = fmt.Sprintf("http://%s", addr)
	if token != "" {
		consulCfg.Token = token
	}

	consulCfg.HttpClient = &http.Client{
		Transport: &HeaderRoundTripper{Rt: http.DefaultTransport},
	}
	return consulapi.NewClient(consulCfg)
}

// Store keeps the URL map as the value of a single Consul KV key
type Store struct {
	kv  *consulapi.KV
	key string
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Key == "" {
		return nil, errors.New("consul store requires a key")
	}
	client, err := NewClient(cfg.ConsulAddr, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &Store{kv: client.KV(), key: cfg.Key}, nil
}

func (s *Store) Load(ctx context.Context) ([]byte, error) {
	queryOpts := (&consulapi.QueryOptions{}).WithContext(ctx)

	pair, meta, err := s.kv.Get(s.key, queryOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", s.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("%w: consul key %s", store.ErrNotFound, s.key)
	}
	slog.Debug("Loaded url map from consul", "key", s.key, "index", meta.LastIndex, "bytes", len(pair.Value))
	return pair.Value, nil
}

func (s *Store) Save(ctx context.Context, data []byte) error {
	writeOpts := (&consulapi.WriteOptions{}).WithContext(ctx)

	if _, err := s.kv.Put(&consulapi.KVPair{Key: s.key, Value: data}, writeOpts); err != nil {
		return fmt.Errorf("failed to write consul key %s: %w", s.key, err)
	}
	slog.Debug("Wrote url map to consul", "key", s.key, "bytes", len(data))
	return nil
}

func (s *Store) String() string {
	return "consul:" + s.key
}
