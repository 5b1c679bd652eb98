package cellranger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"strand/internal/logging"
	"strand/internal/services"
	"strand/internal/services/execx"
)

// uiMarkerFile is written by cellranger inside the invocation's id directory
// once its web UI is listening.
const uiMarkerFile = "_uiport"

const markerPollInterval = time.Second

// IPEcho resolves the machine's externally visible address.
type IPEcho interface {
	ExternalIP(ctx context.Context) (string, error)
}

// IpifyEcho resolves the external address via the ipify echo service.
type IpifyEcho struct {
	client *http.Client
	url    string
}

// NewIpifyEcho constructs the default resolver.
func NewIpifyEcho() *IpifyEcho {
	return &IpifyEcho{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    "https://api.ipify.org",
	}
}

// ExternalIP fetches the caller's public address.
func (e *IpifyEcho) ExternalIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return "", fmt.Errorf("build ip echo request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ip echo request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip echo returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", fmt.Errorf("read ip echo response: %w", err)
	}
	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "", errors.New("ip echo returned empty body")
	}
	return ip, nil
}

// reportUI polls the marker file and logs the externally reachable UI URL.
// An error means the marker never appeared within the deadline; the caller
// decides whether that is fatal based on how the process itself fared.
func (c *Client) reportUI(ctx context.Context, inv execx.Invocation, markerPath string) error {
	port, err := c.pollUIMarker(ctx, markerPath)
	if err != nil {
		return err
	}

	host := "localhost"
	if ip, ipErr := c.ipEcho.ExternalIP(ctx); ipErr == nil {
		host = ip
	} else {
		c.logger.Debug("external address lookup failed",
			logging.String(logging.FieldStage, inv.Stage),
			logging.Error(ipErr),
		)
	}
	c.logger.Info(fmt.Sprintf("cellranger UI is at http://%s:%s", host, port),
		logging.String(logging.FieldStage, inv.Stage),
	)
	return nil
}

// pollUIMarker waits the configured startup delay, then probes the marker
// until it appears or the deadline passes. The marker content is host:port
// as bound by cellranger; only the port is meaningful off-host.
func (c *Client) pollUIMarker(ctx context.Context, markerPath string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.markerDelay):
	}

	deadline := time.Now().Add(c.markerTimeout)
	for {
		content, err := os.ReadFile(markerPath)
		switch {
		case err == nil:
			value := strings.TrimSpace(string(content))
			if value == "" {
				return "", services.Wrap(services.ErrExternalTool, "", "", fmt.Sprintf("ui marker %s is empty", markerPath), nil)
			}
			parts := strings.Split(value, ":")
			return parts[len(parts)-1], nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", services.Wrap(services.ErrExternalTool, "", "", "read ui marker", err)
		}

		if time.Now().After(deadline) {
			return "", services.Wrap(services.ErrExternalTool, "", "",
				fmt.Sprintf("ui marker %s did not appear within %s", markerPath, c.markerTimeout), nil)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(markerPollInterval):
		}
	}
}
