package consul

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/moonkev/urlmapedit/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV serves the subset of the Consul KV HTTP API the store uses
type fakeKV struct {
	mu     sync.Mutex
	values map[string][]byte
	tokens []string
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tokens = append(f.tokens, r.Header.Get("X-Consul-Token"))
	key := strings.TrimPrefix(r.URL.Path, "/v1/kv/")
	w.Header().Set("X-Consul-Index", "7")
	w.Header().Set("X-Consul-LastContact", "0")
	w.Header().Set("X-Consul-KnownLeader", "true")

	switch r.Method {
	case http.MethodGet:
		val, ok := f.values[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{{
			"Key":         key,
			"Value":       val,
			"Flags":       0,
			"CreateIndex": 7,
			"ModifyIndex": 7,
		}})
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.values[key] = body
		_, _ = w.Write([]byte("true"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T, kv *fakeKV, key string) *Store {
	t.Helper()
	srv := httptest.NewServer(kv)
	t.Cleanup(srv.Close)

	s, err := NewStore(Config{
		ConsulAddr: strings.TrimPrefix(srv.URL, "http://"),
		Key:        key,
		Token:      "secret",
	})
	require.NoError(t, err)
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	kv := &fakeKV{values: map[string][]byte{"urlmaps/web": []byte("hostRules: []\npathMatchers: []\n")}}
	s := newTestStore(t, kv, "urlmaps/web")

	data, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hostRules: []\npathMatchers: []\n", string(data))

	require.NoError(t, s.Save(context.Background(), []byte("updated\n")))
	assert.Equal(t, "updated\n", string(kv.values["urlmaps/web"]))
	assert.Contains(t, kv.tokens, "secret")
	assert.Equal(t, "consul:urlmaps/web", s.String())
}

func TestStoreMissingKey(t *testing.T) {
	s := newTestStore(t, &fakeKV{values: map[string][]byte{}}, "urlmaps/none")

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNewStoreRequiresKey(t *testing.T) {
	_, err := NewStore(Config{ConsulAddr: "localhost:8500"})
	assert.Error(t, err)
}
