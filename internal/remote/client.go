// Package remote implements the transcription client against a
// generative-language REST API. Each call uploads one segment artifact,
// waits for remote processing, requests a timestamped transcription, and
// deletes the remote file again.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"longform-transcriber/internal/transcribe"
)

const (
	fileStateProcessing = "PROCESSING"
	fileStateFailed     = "FAILED"

	defaultPollInterval = 5 * time.Second
	deleteTimeout       = 30 * time.Second
)

// Client calls the remote inference capability for one artifact at a time.
// It keeps no per-call state and is safe for concurrent use by pool workers.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	pollInterval time.Duration
	httpClient   *http.Client
	readFile     func(name string) ([]byte, error)
}

// NewClient constructs a client for the given API endpoint and model.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		pollInterval: defaultPollInterval,
		httpClient:   &http.Client{},
		readFile:     os.ReadFile,
	}
}

type remoteFile struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

type uploadResponse struct {
	File remoteFile `json:"file"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	FileURI  string `json:"file_uri"`
	MimeType string `json:"mime_type"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Transcribe uploads the artifact, waits for remote processing, requests a
// timeline-anchored transcription, and removes the remote file. The caller's
// context bounds the whole exchange; deletion runs best-effort even after
// the context expires.
func (c *Client) Transcribe(ctx context.Context, artifactPath string, startOffset float64) (string, error) {
	file, err := c.upload(ctx, artifactPath)
	if err != nil {
		return "", err
	}
	defer c.deleteFile(ctx, file.Name)

	file, err = c.awaitProcessed(ctx, file)
	if err != nil {
		return "", err
	}

	return c.generate(ctx, file, startOffset)
}

// upload sends the artifact bytes to the remote file store.
func (c *Client) upload(ctx context.Context, artifactPath string) (remoteFile, error) {
	data, err := c.readFile(artifactPath)
	if err != nil {
		return remoteFile{}, fmt.Errorf("read artifact: %w", err)
	}

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return remoteFile{}, err
	}
	req.Header.Set("Content-Type", "audio/wav")

	var parsed uploadResponse
	if err := c.do(req, &parsed); err != nil {
		return remoteFile{}, fmt.Errorf("upload artifact: %w", err)
	}
	if parsed.File.Name == "" {
		return remoteFile{}, fmt.Errorf("upload artifact: response has no file name")
	}
	return parsed.File, nil
}

// awaitProcessed polls the remote file until it leaves the processing state.
func (c *Client) awaitProcessed(ctx context.Context, file remoteFile) (remoteFile, error) {
	for file.State == fileStateProcessing {
		select {
		case <-ctx.Done():
			return remoteFile{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, file.Name, c.apiKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return remoteFile{}, err
		}

		var refreshed remoteFile
		if err := c.do(req, &refreshed); err != nil {
			return remoteFile{}, fmt.Errorf("poll remote file: %w", err)
		}
		if refreshed.URI == "" {
			refreshed.URI = file.URI
		}
		refreshed.Name = file.Name
		file = refreshed
	}

	if file.State == fileStateFailed {
		return remoteFile{}, fmt.Errorf("remote file processing failed: %s", file.Name)
	}
	return file, nil
}

// generate requests the transcription for a processed remote file.
func (c *Client) generate(ctx context.Context, file remoteFile, startOffset float64) (string, error) {
	payload := generateRequest{
		Contents: []content{{
			Parts: []part{
				{FileData: &fileData{FileURI: file.URI, MimeType: "audio/wav"}},
				{Text: transcriptionPrompt(startOffset)},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var parsed generateResponse
	if err := c.do(req, &parsed); err != nil {
		return "", fmt.Errorf("generate transcription: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("generate transcription: response has no candidates")
	}

	var texts []string
	for _, p := range parsed.Candidates[0].Content.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	if len(texts) == 0 {
		return "", fmt.Errorf("generate transcription: candidate has no text parts")
	}
	return strings.Join(texts, "\n"), nil
}

// deleteFile removes the remote file best-effort, surviving an already
// expired caller context so timed-out calls still clean up.
func (c *Client) deleteFile(ctx context.Context, name string) {
	if name == "" {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, name, c.apiKey)
	req, err := http.NewRequestWithContext(cleanupCtx, http.MethodDelete, url, nil)
	if err != nil {
		return
	}
	_ = c.do(req, nil)
}

// do executes one request and decodes a JSON response when out is non-nil.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote API status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// transcriptionPrompt instructs the model to emit timeline-anchored lines.
func transcriptionPrompt(startOffset float64) string {
	anchor := transcribe.FormatClock(startOffset)
	return fmt.Sprintf(
		"Transcribe the speech in this audio segment. "+
			"The segment starts at %s on the full recording's timeline. "+
			"Prefix every line with its absolute timestamp in the form [MM:SS], "+
			"beginning at [%s]. Transcribe only what is actually spoken.",
		anchor, anchor,
	)
}

// NewClientForTests constructs a client with injectable dependencies.
func NewClientForTests(baseURL, apiKey, model string, pollInterval time.Duration, httpClient *http.Client) *Client {
	c := NewClient(baseURL, apiKey, model)
	if pollInterval > 0 {
		c.pollInterval = pollInterval
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}
