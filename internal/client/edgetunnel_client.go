package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// EdgeTunnelClient talks to the Multi-UUID API each EdgeTunnel group runs.
// Endpoint and key come from the group row, not from config.
type EdgeTunnelClient struct {
	httpClient *http.Client
}

// NewEdgeTunnelClient creates a new EdgeTunnel API client
func NewEdgeTunnelClient(timeout time.Duration) *EdgeTunnelClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EdgeTunnelClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type addUUIDRequest struct {
	UUID string `json:"uuid"`
}

// AddUUID registers a user UUID with the group's API
func (c *EdgeTunnelClient) AddUUID(ctx context.Context, group *models.NodeGroup, userUUID string) error {
	url := strings.TrimRight(group.APIEndpoint, "/") + "/api/uuid/add"

	body, err := json.Marshal(addUUIDRequest{UUID: userUUID})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+group.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// 只截取少量响应内容用于排查
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("edgetunnel api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return nil
}
