package editor

import (
	"bytes"
	"context"
	"testing"

	"github.com/moonkev/urlmapedit/internal/common/telemetry"
	"github.com/moonkev/urlmapedit/internal/store"
	"github.com/moonkev/urlmapedit/internal/urlmap"
	"github.com/moonkev/urlmapedit/internal/xds"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	data  []byte
	loads int
	saves int
}

func (m *memStore) Load(ctx context.Context) ([]byte, error) {
	m.loads++
	if m.data == nil {
		return nil, store.ErrNotFound
	}
	return m.data, nil
}

func (m *memStore) Save(ctx context.Context, data []byte) error {
	m.saves++
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memStore) String() string { return "memory" }

func request() Request {
	return Request{
		HostRule:    []string{"hosts=a.com", "pathMatcher=pm1"},
		PathMatcher: []string{"name=pm1", "defaultService=svcA"},
		PathRules:   []string{"path=/x", "service=svcB"},
	}
}

func assertEndToEnd(t *testing.T, data []byte) {
	t.Helper()
	doc, err := urlmap.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []urlmap.HostRule{{Hosts: []string{"a.com"}, PathMatcher: "pm1"}}, doc.HostRules)
	require.Len(t, doc.PathMatchers, 1)
	assert.Equal(t, "pm1", doc.PathMatchers[0].Name)
	assert.Equal(t, "svcA", doc.PathMatchers[0].DefaultService)
	require.Len(t, doc.PathMatchers[0].PathRules, 1)
	assert.Equal(t, []string{"/x"}, doc.PathMatchers[0].PathRules[0].Paths)
	assert.Equal(t, "svcB", doc.PathMatchers[0].PathRules[0].Service)
	assert.Equal(t, "/", doc.PathMatchers[0].PathRules[0].PrefixRewrite())
}

func TestRunEndToEnd(t *testing.T) {
	st := &memStore{data: []byte("hostRules: []\npathMatchers: []\n")}

	res, err := Run(context.Background(), st, request())
	require.NoError(t, err)

	assert.Equal(t, 1, st.saves)
	assertEndToEnd(t, st.data)
	assert.True(t, res.Merge.HostRuleAdded)
	assert.True(t, res.Merge.PathMatcherAdded)
	assert.Equal(t, urlmap.SinglePathRule, res.Records.Shape)
}

func TestRunTwiceMergesIntoExistingEntries(t *testing.T) {
	st := &memStore{data: []byte("hostRules: []\npathMatchers: []\n")}

	_, err := Run(context.Background(), st, request())
	require.NoError(t, err)

	existsBefore := testutil.ToFloat64(telemetry.MetricHostRules.WithLabelValues("exists"))
	mergedBefore := testutil.ToFloat64(telemetry.MetricPathMatchers.WithLabelValues("merged"))

	req := request()
	req.PathRules = []string{"path=/y", "service=svcC", "path=/x", "service=svcB"}
	res, err := Run(context.Background(), st, req)
	require.NoError(t, err)

	assert.False(t, res.Merge.HostRuleAdded)
	assert.False(t, res.Merge.PathMatcherAdded)
	assert.Equal(t, 2, res.Merge.PathRulesAppended)
	assert.Equal(t, 1, res.Merge.DuplicatePathRules)

	doc, err := urlmap.Decode(st.data)
	require.NoError(t, err)
	require.Len(t, doc.HostRules, 1)
	require.Len(t, doc.PathMatchers, 1)
	assert.Len(t, doc.PathMatchers[0].PathRules, 3)

	assert.Equal(t, existsBefore+1, testutil.ToFloat64(telemetry.MetricHostRules.WithLabelValues("exists")))
	assert.Equal(t, mergedBefore+1, testutil.ToFloat64(telemetry.MetricPathMatchers.WithLabelValues("merged")))
}

func TestRunRejectsInputBeforeLoading(t *testing.T) {
	st := &memStore{data: []byte("hostRules: []\npathMatchers: []\n")}
	req := request()
	req.PathRules = []string{"path/x", "service=svcB"}

	_, err := Run(context.Background(), st, req)
	assert.ErrorIs(t, err, urlmap.ErrMalformedToken)
	assert.Zero(t, st.loads)
	assert.Zero(t, st.saves)

	req = request()
	req.HostRule = []string{"pathMatcher=pm1"}
	_, err = Run(context.Background(), st, req)
	assert.ErrorIs(t, err, urlmap.ErrMissingField)
	assert.Zero(t, st.loads)
}

func TestRunMissingCollectionWritesNothing(t *testing.T) {
	st := &memStore{data: []byte("name: web-map\nhostRules: []\n")}

	_, err := Run(context.Background(), st, request())
	assert.ErrorIs(t, err, urlmap.ErrMissingCollection)
	assert.Zero(t, st.saves)
}

func TestRunMissingDocument(t *testing.T) {
	_, err := Run(context.Background(), &memStore{}, request())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunDryRun(t *testing.T) {
	original := []byte("hostRules: []\npathMatchers: []\n")
	st := &memStore{data: original}
	var out bytes.Buffer

	req := request()
	req.DryRun = true
	req.Output = &out
	_, err := Run(context.Background(), st, req)
	require.NoError(t, err)

	assert.Zero(t, st.saves)
	assert.Equal(t, original, st.data)
	assertEndToEnd(t, out.Bytes())
}

func TestRunValidateFailureWritesNothing(t *testing.T) {
	st := &memStore{data: []byte("hostRules: []\npathMatchers: []\n")}
	req := request()
	req.HostRule = []string{"hosts=a.com", "pathMatcher=elsewhere"}
	req.Validate = true

	_, err := Run(context.Background(), st, req)
	assert.ErrorIs(t, err, xds.ErrUnknownPathMatcher)
	assert.Zero(t, st.saves)
}

func TestRunEnvoyConfig(t *testing.T) {
	st := &memStore{data: []byte("hostRules: []\npathMatchers: []\n")}
	req := request()
	req.EnvoyConfig = true

	res, err := Run(context.Background(), st, req)
	require.NoError(t, err)
	assert.Equal(t, 1, st.saves)
	assert.Contains(t, string(res.EnvoyConfig), `"svcB"`)
	assert.Contains(t, string(res.EnvoyConfig), `"a.com"`)
}

func TestRunEnvoyConfigFailureWritesNothing(t *testing.T) {
	original := []byte("hostRules: []\npathMatchers: []\n")
	st := &memStore{data: original}
	req := request()
	req.HostRule = []string{"hosts=a.com", "pathMatcher=elsewhere"}
	req.EnvoyConfig = true

	res, err := Run(context.Background(), st, req)
	assert.ErrorIs(t, err, xds.ErrUnknownPathMatcher)
	assert.Nil(t, res)
	assert.Zero(t, st.saves)
	assert.Equal(t, original, st.data)
}

func TestRunDryRunWithEnvoyConfig(t *testing.T) {
	st := &memStore{data: []byte("hostRules: []\npathMatchers: []\n")}
	var out bytes.Buffer
	req := request()
	req.DryRun = true
	req.Output = &out
	req.EnvoyConfig = true

	res, err := Run(context.Background(), st, req)
	require.NoError(t, err)
	assert.Zero(t, st.saves)
	assertEndToEnd(t, out.Bytes())
	assert.NotEmpty(t, res.EnvoyConfig)
}

func TestRunDryRunWithoutOutput(t *testing.T) {
	st := &memStore{data: []byte("hostRules: []\npathMatchers: []\n")}
	req := request()
	req.DryRun = true

	_, err := Run(context.Background(), st, req)
	assert.Error(t, err)
	assert.Zero(t, st.saves)
}
