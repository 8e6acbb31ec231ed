// Package rest collects resources from a JSON management API described by
// configuration: each kind names its paginated list path and an optional
// describe path fetched per item.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Sternrassler/config-collector/pkg/client"
	"github.com/Sternrassler/config-collector/pkg/fetcher"
	"github.com/Sternrassler/config-collector/pkg/pagination"
	"github.com/Sternrassler/config-collector/pkg/sink"
)

// Name is the provider name used in sink keys.
const Name = "rest"

// MethodList is the list method every configured kind registers.
const MethodList = "List"

// DefaultIDField is the item field holding the id when a kind names none.
const DefaultIDField = "id"

// ErrInvalidKind is returned for an unusable kind configuration.
var ErrInvalidKind = errors.New("invalid kind configuration")

// KindConfig describes one resource kind of the API.
type KindConfig struct {
	// Kind is the resource kind, e.g. "users".
	Kind string `yaml:"kind"`

	// ListPath is the paginated listing, e.g. "/v1/users".
	ListPath string `yaml:"list_path"`

	// ResponseAttribute names the field of each page holding the items.
	// Empty means the page body is the item array itself.
	ResponseAttribute string `yaml:"response_attribute"`

	// DescribePath is fetched per item with "{id}" replaced, and its fields
	// are merged into the item. Empty stores the listed item as is.
	DescribePath string `yaml:"describe_path"`

	// IDField names the item field holding its id (default "id"). Items
	// without one get an id derived from their "name".
	IDField string `yaml:"id_field"`

	// IgnoreListError suppresses reports when the listing fails.
	IgnoreListError bool `yaml:"ignore_list_error"`

	// Params are sent as query parameters of the listing.
	Params map[string]any `yaml:"params"`
}

// Config configures the provider.
type Config struct {
	Kinds []KindConfig      `yaml:"kinds"`
	Pager pagination.Config `yaml:"pager"`
}

// Validate checks every kind.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Kinds))
	for i, k := range c.Kinds {
		switch {
		case k.Kind == "":
			return fmt.Errorf("%w: kinds[%d]: kind is required", ErrInvalidKind, i)
		case k.ListPath == "":
			return fmt.Errorf("%w: %s: list_path is required", ErrInvalidKind, k.Kind)
		case k.DescribePath != "" && !strings.Contains(k.DescribePath, "{id}"):
			return fmt.Errorf("%w: %s: describe_path must contain {id}", ErrInvalidKind, k.Kind)
		case seen[k.Kind]:
			return fmt.Errorf("%w: %s: duplicate kind", ErrInvalidKind, k.Kind)
		}
		seen[k.Kind] = true
	}
	return nil
}

// Descriptor returns the fetch descriptor of the kind.
func (k KindConfig) Descriptor() fetcher.Descriptor {
	return fetcher.Descriptor{
		Kind:              k.Kind,
		ResponseAttribute: k.ResponseAttribute,
		ListMethod:        MethodList,
		Params:            k.Params,
		IgnoreListError:   k.IgnoreListError,
	}
}

type provider struct {
	api   *client.Client
	pager *pagination.Pager
	sink  sink.Sink
}

// NewProvider registers every configured kind. Parsed items are written to s.
func NewProvider(api *client.Client, cfg Config, s sink.Sink) (*fetcher.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &provider{api: api, pager: pagination.NewPager(cfg.Pager), sink: s}

	reg := fetcher.NewRegistry()
	for _, k := range cfg.Kinds {
		reg.RegisterList(k.Kind, MethodList, p.lister(k))
		reg.RegisterParse(k.Kind, p.parser(k))
		reg.AddDefault(k.Descriptor())
	}
	return reg, nil
}

func (p *provider) lister(k KindConfig) fetcher.ListFunc {
	return func(ctx context.Context, d fetcher.Descriptor) ([]any, error) {
		query := queryFromParams(d.Params)
		return p.pager.FetchAll(ctx, k.ListPath, func(ctx context.Context, page int) ([]any, int, error) {
			var body json.RawMessage
			pages, err := p.api.GetPage(ctx, k.ListPath, query, page, &body)
			if err != nil {
				return nil, 0, err
			}
			items, err := itemsFromPage(body, d.ResponseAttribute)
			if err != nil {
				return nil, 0, fmt.Errorf("%s page %d: %w", k.ListPath, page, err)
			}
			return items, pages, nil
		})
	}
}

// parser describes the item when configured, merges the details into the
// listed fields and stores the result.
func (p *provider) parser(k KindConfig) fetcher.ParseFunc {
	idField := k.IDField
	if idField == "" {
		idField = DefaultIDField
	}

	return func(ctx context.Context, kind string, payload any) error {
		item, ok := payload.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: unexpected payload type %T", kind, payload)
		}

		id, err := itemID(item, idField)
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}

		if k.DescribePath != "" {
			path := strings.ReplaceAll(k.DescribePath, "{id}", url.PathEscape(id))
			var details map[string]any
			if err := p.api.GetJSON(ctx, path, nil, &details); err != nil {
				return fmt.Errorf("describe %s %s: %w", kind, id, err)
			}
			for field, v := range details {
				item[field] = v
			}
		}

		if err := p.sink.Put(ctx, kind, id, item); err != nil {
			return fmt.Errorf("store %s %s: %w", kind, id, err)
		}
		return nil
	}
}

// itemsFromPage extracts the item array of one page.
func itemsFromPage(body json.RawMessage, attribute string) ([]any, error) {
	raw := body
	if attribute != "" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("decode page: %w", err)
		}
		var ok bool
		raw, ok = fields[attribute]
		if !ok {
			return nil, fmt.Errorf("response has no %q attribute", attribute)
		}
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}

func itemID(item map[string]any, field string) (string, error) {
	switch v := item[field].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	case nil:
	default:
		return fmt.Sprint(v), nil
	}

	if name, ok := item["name"].(string); ok && name != "" {
		return sink.NonProviderID(name), nil
	}
	return "", fmt.Errorf("item has neither %q nor name", field)
}

func queryFromParams(params map[string]any) url.Values {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		switch v := params[k].(type) {
		case []any:
			for _, item := range v {
				q.Add(k, fmt.Sprint(item))
			}
		default:
			q.Set(k, fmt.Sprint(v))
		}
	}
	return q
}
