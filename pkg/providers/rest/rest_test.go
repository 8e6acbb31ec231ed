package rest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/config-collector/internal/testutil"
	"github.com/Sternrassler/config-collector/pkg/client"
	"github.com/Sternrassler/config-collector/pkg/fetcher"
	"github.com/Sternrassler/config-collector/pkg/sink"
)

type collectingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *collectingReporter) ReportException(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}
func (r *collectingReporter) ReportInfo(string)  {}
func (r *collectingReporter) ReportError(string) {}

func newAPIClient(t *testing.T, baseURL string) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig(baseURL, "config-collector-test/1.0")
	cfg.InitialBackoff = time.Millisecond
	c, err := client.New(cfg)
	require.NoError(t, err)
	return c
}

func usersConfig() Config {
	return Config{Kinds: []KindConfig{{
		Kind:              "users",
		ListPath:          "/v1/users",
		ResponseAttribute: "Users",
		DescribePath:      "/v1/users/{id}",
		IDField:           "user_id",
	}}}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		kinds   []KindConfig
		wantErr bool
	}{
		{"valid", usersConfig().Kinds, false},
		{"missing kind", []KindConfig{{ListPath: "/x"}}, true},
		{"missing list path", []KindConfig{{Kind: "x"}}, true},
		{"describe without placeholder", []KindConfig{{Kind: "x", ListPath: "/x", DescribePath: "/x/detail"}}, true},
		{"duplicate", []KindConfig{{Kind: "x", ListPath: "/x"}, {Kind: "x", ListPath: "/y"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{Kinds: tt.kinds}.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKind)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestItemsFromPage(t *testing.T) {
	items, err := itemsFromPage([]byte(`{"Users":[{"id":"a"},{"id":"b"}]}`), "Users")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = itemsFromPage([]byte(`[{"id":"a"}]`), "")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = itemsFromPage([]byte(`{"Groups":[]}`), "Users")
	assert.Error(t, err)
}

func TestItemID(t *testing.T) {
	id, err := itemID(map[string]any{"id": "u-1"}, "id")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)

	id, err = itemID(map[string]any{"id": float64(42)}, "id")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	id, err = itemID(map[string]any{"name": "shared-drive"}, "id")
	require.NoError(t, err)
	assert.Equal(t, sink.NonProviderID("shared-drive"), id)

	_, err = itemID(map[string]any{}, "id")
	assert.Error(t, err)
}

func TestQueryFromParams(t *testing.T) {
	q := queryFromParams(map[string]any{"state": "active", "tag": []any{"a", "b"}, "limit": 50})
	assert.Equal(t, "active", q.Get("state"))
	assert.Equal(t, []string{"a", "b"}, q["tag"])
	assert.Equal(t, "50", q.Get("limit"))
	assert.Nil(t, queryFromParams(nil))
}

func TestFetchAll_RESTProvider(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetPages("/v1/users", "Users", [][]map[string]any{
		{{"user_id": "u1", "name": "alice"}, {"user_id": "u2", "name": "bob"}},
		{{"user_id": "u3", "name": "carol"}},
	})
	mock.SetResponse("/v1/users/u1", testutil.NewJSONResponse(`{"mfa":true}`))
	mock.SetThrottled("/v1/users/u2", 2, testutil.NewJSONResponse(`{"mfa":false}`))
	mock.SetResponse("/v1/users/u3", testutil.NewErrorResponse(http.StatusForbidden, "AccessDenied", "no"))

	mem := sink.NewMemorySink()
	reg, err := NewProvider(newAPIClient(t, mock.URL()), usersConfig(), mem)
	require.NoError(t, err)

	rep := &collectingReporter{}
	f, err := fetcher.New(reg, fetcher.Config{ListWorkers: 1, ParseWorkers: 3}, fetcher.WithReporter(rep))
	require.NoError(t, err)

	stats, err := f.FetchAllStats(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Discovered)
	assert.Equal(t, int64(2), stats.Parsed)
	assert.Equal(t, int64(2), stats.Requeued)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, 3, mock.RequestCount("/v1/users/u2"))

	require.Len(t, rep.errs, 1)
	var apiErr *client.APIError
	require.True(t, errors.As(rep.errs[0], &apiErr))
	assert.Equal(t, "AccessDenied", apiErr.ErrorCode())

	rec, err := mem.Get(context.Background(), "users", "u2")
	require.NoError(t, err)
	var u2 map[string]any
	require.NoError(t, rec.Decode(&u2))
	assert.Equal(t, "bob", u2["name"])
	assert.Equal(t, false, u2["mfa"])

	_, err = mem.Get(context.Background(), "users", "u3")
	assert.ErrorIs(t, err, sink.ErrNotFound)
}

func TestFetchAll_RESTListErrorReported(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/v1/groups", testutil.NewErrorResponse(http.StatusForbidden, "AccessDenied", "no"))

	cfg := Config{Kinds: []KindConfig{
		{Kind: "groups", ListPath: "/v1/groups", ResponseAttribute: "Groups"},
		{Kind: "roles", ListPath: "/v1/groups", ResponseAttribute: "Roles", IgnoreListError: true},
	}}
	reg, err := NewProvider(newAPIClient(t, mock.URL()), cfg, sink.NewMemorySink())
	require.NoError(t, err)

	rep := &collectingReporter{}
	f, err := fetcher.New(reg, fetcher.Config{ListWorkers: 2, ParseWorkers: 2}, fetcher.WithReporter(rep))
	require.NoError(t, err)

	require.NoError(t, f.FetchAll(context.Background(), nil))

	require.Len(t, rep.errs, 1, "ignored kind must not be reported")
	var listErr *fetcher.ListError
	require.True(t, errors.As(rep.errs[0], &listErr))
	assert.Equal(t, "groups", listErr.Kind)
}

func TestFetchAll_RESTWithoutDescribe(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/v1/regions", testutil.NewJSONResponse(`[{"name":"north"},{"name":"south"}]`))

	mem := sink.NewMemorySink()
	reg, err := NewProvider(newAPIClient(t, mock.URL()), Config{Kinds: []KindConfig{
		{Kind: "regions", ListPath: "/v1/regions"},
	}}, mem)
	require.NoError(t, err)

	f, err := fetcher.New(reg, fetcher.Config{ListWorkers: 1, ParseWorkers: 1})
	require.NoError(t, err)
	require.NoError(t, f.FetchAll(context.Background(), nil))

	assert.Equal(t, 2, mem.Count())
	_, err = mem.Get(context.Background(), "regions", sink.NonProviderID("north"))
	assert.NoError(t, err)
}
