// Package converter provides the PDF conversion engines.
// MarkerConverter calls an external layout-aware conversion service over
// HTTP; PDFTextConverter extracts the text layer in-process.
package converter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
)

// MarkerConverter implements ports.DocumentConverter against the
// conversion service.
type MarkerConverter struct {
	serviceURL string
	client     *http.Client
	serviceCmd *exec.Cmd
}

// NewMarkerConverter creates a client for the service at serviceURL.
// A zero timeout means 10 minutes per document.
func NewMarkerConverter(serviceURL string, timeout time.Duration) *MarkerConverter {
	if serviceURL == "" {
		serviceURL = "http://localhost:8081"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &MarkerConverter{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		client:     &http.Client{Timeout: timeout},
	}
}

// convertResponse is the service response format. Images are base64.
type convertResponse struct {
	Markdown string            `json:"markdown"`
	Images   map[string]string `json:"images"`
	Error    string            `json:"error,omitempty"`
}

// Warmup checks that the service is up and has its models loaded.
func (c *MarkerConverter) Warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("conversion service at %s unreachable: %w", c.serviceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("conversion service not ready: status %d", resp.StatusCode)
	}
	return nil
}

// Convert posts the PDF bytes and decodes markdown plus images.
func (c *MarkerConverter) Convert(ctx context.Context, path string) (*entities.Rendered, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL+"/convert", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling conversion service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var result convertResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("conversion service returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("conversion failed: %s", result.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("conversion service returned status %d", resp.StatusCode)
	}

	images := make(map[string]any, len(result.Images))
	for name, b64 := range result.Images {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decoding image %s: %w", name, err)
		}
		images[name] = raw
	}

	return &entities.Rendered{
		Markdown: norm.NFC.String(result.Markdown),
		Images:   images,
	}, nil
}

// StartService launches the conversion service script with python3 and
// waits until /health answers. The returned func stops it.
func (c *MarkerConverter) StartService(ctx context.Context, script string) (func(), error) {
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("conversion service script: %w", err)
	}

	c.serviceCmd = exec.Command("python3", script)
	c.serviceCmd.Stdout = os.Stderr
	c.serviceCmd.Stderr = os.Stderr
	if err := c.serviceCmd.Start(); err != nil {
		return nil, fmt.Errorf("starting conversion service: %w", err)
	}

	cleanup := func() {
		if c.serviceCmd != nil && c.serviceCmd.Process != nil {
			c.serviceCmd.Process.Kill()
			c.serviceCmd.Wait()
		}
	}

	logging.Infof("started conversion service %s (pid %d)", script, c.serviceCmd.Process.Pid)

	// Model loading can take a while.
	deadline := time.Now().Add(2 * time.Minute)
	for {
		if err := c.Warmup(ctx); err == nil {
			return cleanup, nil
		}
		if time.Now().After(deadline) {
			cleanup()
			return nil, fmt.Errorf("conversion service did not become healthy")
		}
		select {
		case <-ctx.Done():
			cleanup()
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}
