package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KevinDz11/nopro/internal/model"
)

// RemoteDetector calls a self-hosted object-detection service.
//
//	POST {base}/v1/detect  {"model": "...", "mime": "...", "image": "<base64>"}
//	200 {"labels": [{"name": "NOM", "confidence": 0.93}], "raw_context_text": "..."}
type RemoteDetector struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type remoteRequest struct {
	Model string `json:"model,omitempty"`
	MIME  string `json:"mime"`
	Image string `json:"image"`
}

type remoteError struct {
	Error string `json:"error"`
}

// NewRemoteDetector creates a client for the detection service at cfg.BaseURL
func NewRemoteDetector(cfg model.VisionConfig, httpClient *http.Client) (*RemoteDetector, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: remote detector base URL is required", model.ErrDetectorUnavailable)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	client := *httpClient
	client.Timeout = timeout

	return &RemoteDetector{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &client,
	}, nil
}

func (d *RemoteDetector) Name() string { return "remote" }

func (d *RemoteDetector) Detect(ctx context.Context, img Image) (*Detection, error) {
	body, err := json.Marshal(remoteRequest{
		Model: d.model,
		MIME:  img.MIME,
		Image: base64.StdEncoding.EncodeToString(img.Data),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/detect", d.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr remoteError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	det, err := decodeDetection(respBody)
	if err != nil {
		return nil, err
	}
	det.Detector = d.Name()
	return det, nil
}
