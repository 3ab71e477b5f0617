package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"power-observer/src/helpers"
	"power-observer/src/interfaces"
	"power-observer/src/models"
	"power-observer/src/network"
)

// -----------------------------------------------------------------------------

// HierarchicalHTTPStore reads a JSON tree exposed over HTTP as
// {base}/{node}/{yyyy}/{mm}/{dd}.json.
type HierarchicalHTTPStore struct {
	BaseURL   string
	AuthToken string
	Network   interfaces.INetworkManager
}

// -----------------------------------------------------------------------------

func NewHierarchicalHTTPStore(baseURL, authToken string, nm interfaces.INetworkManager) *HierarchicalHTTPStore {
	return &HierarchicalHTTPStore{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		AuthToken: authToken,
		Network:   nm,
	}
}

// -----------------------------------------------------------------------------

func (s *HierarchicalHTTPStore) Name() string { return "http" }

func (s *HierarchicalHTTPStore) Close() error { return nil }

// -----------------------------------------------------------------------------

func (s *HierarchicalHTTPStore) params(extra map[string]string) map[string]string {
	p := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		p[k] = v
	}
	if s.AuthToken != "" {
		p["auth"] = s.AuthToken
	}
	return p
}

// -----------------------------------------------------------------------------

// DayURL builds the location of one day of readings.
func (s *HierarchicalHTTPStore) DayURL(node string, day time.Time) string {
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d.json", s.BaseURL, node, day.Year(), int(day.Month()), day.Day())
}

// -----------------------------------------------------------------------------

func (s *HierarchicalHTTPStore) FetchDay(ctx context.Context, node string, day time.Time) (models.MRawDay, error) {
	body, err := s.Network.Get(ctx, s.DayURL(node, day), s.params(nil))
	if err != nil {
		if errors.Is(err, network.ErrNotFound) {
			return models.MRawDay{}, nil
		}
		return nil, helpers.NewUpstreamUnavailableError(fmt.Sprintf("http store fetch %s %s", node, day.Format("2006-01-02")), err)
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, helpers.NewDataShapeError("http store returned invalid JSON", err)
	}

	switch v := decoded.(type) {
	case nil:
		return models.MRawDay{}, nil
	case map[string]interface{}:
		return models.MRawDay(v), nil
	}
	return nil, helpers.NewDataShapeError(fmt.Sprintf("http store returned %T for a day", decoded), nil)
}

// -----------------------------------------------------------------------------

// ListNodes reads the shallow top level of the tree.
func (s *HierarchicalHTTPStore) ListNodes(ctx context.Context) ([]string, error) {
	body, err := s.Network.Get(ctx, s.BaseURL+".json", s.params(map[string]string{"shallow": "true"}))
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError("http store list nodes", err)
	}

	var top map[string]interface{}
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, helpers.NewDataShapeError("http store node list is not an object", err)
	}

	nodes := make([]string, 0, len(top))
	for k := range top {
		nodes = append(nodes, k)
	}
	sort.Strings(nodes)
	return nodes, nil
}
