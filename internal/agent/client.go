// Package agent implements the reporting agent: it collects local system
// telemetry, posts it to the server's webhook, and spools reports locally
// while the server is unreachable.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/machinehub/machinehub/internal/telemetry"
)

// ErrRejected indicates the server refused the report (bad secret, unknown
// machine, malformed document). Retrying the same report will not help.
var ErrRejected = errors.New("report rejected by server")

// maxAckBody caps the accepted response size.
const maxAckBody = 1 << 20

// ReportAck is the server's acknowledgement of an accepted report.
type ReportAck struct {
	MachineID  string `json:"machine_id"`
	SnapshotID string `json:"snapshot_id"`
}

// Client posts telemetry reports to the MachineHub server.
type Client struct {
	serverURL  string
	secret     string
	machineID  string
	httpClient *http.Client
}

// NewClient creates a new reporting client. machineID is optional; when set
// it is passed along so the server skips IP-based machine resolution.
func NewClient(serverURL, secret, machineID string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		secret:    secret,
		machineID: machineID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckHealth checks if the server is reachable.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// Report posts a telemetry document to the server.
func (c *Client) Report(ctx context.Context, doc *telemetry.Document) (*ReportAck, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return c.ReportRaw(ctx, data)
}

// ReportRaw posts an already-serialized telemetry document. A 4xx response
// returns an error wrapping ErrRejected; network failures and 5xx responses
// return plain errors and may be retried.
func (c *Client) ReportRaw(ctx context.Context, payload []byte) (*ReportAck, error) {
	endpoint := c.serverURL + "/webhook/telemetry"
	if c.machineID != "" {
		endpoint += "?machine_id=" + url.QueryEscape(c.machineID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send report: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var ack ReportAck
		if err := json.Unmarshal(body, &ack); err != nil {
			return nil, fmt.Errorf("decode ack: %w", err)
		}
		return &ack, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	default:
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
