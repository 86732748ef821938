package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/strategy"
)

// HTTPClient talks to the HPC head-node REST service over plain HTTP(S),
// following the request-building shape of github.com/canonical/lxd's
// client.ProtocolLXD (client/lxd.go): a single *http.Client plus a base
// URL, with one method per endpoint.
type HTTPClient struct {
	http        *http.Client
	baseURL     neturl.URL
	userAgent   string
	maxAttempts uint
}

// NewHTTPClient returns an HTTPClient pointed at baseURL (e.g.
// "https://headnode.example.com/hpc/v1").
func NewHTTPClient(baseURL string, httpClient *http.Client) (*HTTPClient, error) {
	u, err := neturl.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("Invalid head node URL %q: %w", baseURL, err)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPClient{
		http:        httpClient,
		baseURL:     *u,
		userAgent:   "hpc-mesos-bridge/1.0",
		maxAttempts: 3,
	}, nil
}

type nodeNamesRequest struct {
	Names []string `json:"names"`
}

func (c *HTTPClient) url(path string) string {
	u := c.baseURL
	u.Path = neturl.JoinPath(u.Path, path)
	return u.String()
}

// do issues req, retrying transient failures with the teacher's retry
// helper instead of a hand-rolled backoff loop, and decodes a JSON body
// into out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("Failed encoding request body: %w", err)
		}
	}

	return retry.Retry(func(attempt uint) error {
		req, err := http.NewRequestWithContext(ctx, method, c.url(path), bytes.NewReader(payload))
		if err != nil {
			return retry.Stop(err)
		}

		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("head node returned %s: %s", resp.Status, string(respBody))
		}

		if resp.StatusCode >= 400 {
			return retry.Stop(fmt.Errorf("head node returned %s: %s", resp.Status, string(respBody)))
		}

		if out != nil && len(respBody) > 0 {
			err = json.Unmarshal(respBody, out)
			if err != nil {
				return retry.Stop(fmt.Errorf("Failed decoding response body: %w", err))
			}
		}

		return nil
	}, strategy.Limit(c.maxAttempts), strategy.Backoff(backoffFunc))
}

func backoffFunc(attempt uint) time.Duration {
	return time.Duration(attempt) * 250 * time.Millisecond
}

// ListNodeGroups implements Client.
func (c *HTTPClient) ListNodeGroups(ctx context.Context, nameFilter string) ([]string, error) {
	var groups []string
	path := "/node-groups"
	if nameFilter != "" {
		path += "?name=" + neturl.QueryEscape(nameFilter)
	}

	err := c.do(ctx, http.MethodGet, path, nil, &groups)
	if err != nil {
		return nil, err
	}

	return groups, nil
}

// AddNodeGroup implements Client.
func (c *HTTPClient) AddNodeGroup(ctx context.Context, name, description string) error {
	return c.do(ctx, http.MethodPost, "/node-groups", map[string]string{
		"name":        name,
		"description": description,
	}, nil)
}

// GetNodeStatusExact implements Client.
func (c *HTTPClient) GetNodeStatusExact(ctx context.Context, names []string) ([]NodeStatus, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var statuses []NodeStatus
	err := c.do(ctx, http.MethodPost, "/node-status/query", nodeNamesRequest{Names: names}, &statuses)
	if err != nil {
		return nil, err
	}

	return statuses, nil
}

// AssignDefaultComputeNodeTemplate implements Client.
func (c *HTTPClient) AssignDefaultComputeNodeTemplate(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	return c.do(ctx, http.MethodPost, "/nodes/assign-default-template", nodeNamesRequest{Names: names}, nil)
}

// TakeNodesOffline implements Client.
func (c *HTTPClient) TakeNodesOffline(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	return c.do(ctx, http.MethodPost, "/nodes/offline", nodeNamesRequest{Names: names}, nil)
}

// BringNodesOnline implements Client.
func (c *HTTPClient) BringNodesOnline(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	return c.do(ctx, http.MethodPost, "/nodes/online", nodeNamesRequest{Names: names}, nil)
}

// AddNodeToNodeGroup implements Client.
func (c *HTTPClient) AddNodeToNodeGroup(ctx context.Context, group string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	return c.do(ctx, http.MethodPost, "/node-groups/"+neturl.PathEscape(group)+"/members", nodeNamesRequest{Names: names}, nil)
}

// CheckNodesIdle implements Client.
func (c *HTTPClient) CheckNodesIdle(ctx context.Context, names []string) ([]IdleNode, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var idle []IdleNode
	err := c.do(ctx, http.MethodPost, "/nodes/idle-check", nodeNamesRequest{Names: names}, &idle)
	if err != nil {
		return nil, err
	}

	return idle, nil
}

// RemoveNodes implements Client.
func (c *HTTPClient) RemoveNodes(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	return c.do(ctx, http.MethodDelete, "/nodes", nodeNamesRequest{Names: names}, nil)
}
