package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thereceipt/certificate-engine/internal/batch"
)

// CommandResult mirrors the /command response
type CommandResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(serverURL string) *client {
	return &client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *client) executeCommand(command string) *CommandResult {
	jsonData, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return &CommandResult{Error: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	resp, err := c.http.Post(c.baseURL+"/command", "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return &CommandResult{Error: fmt.Sprintf("failed to connect to server: %v", err)}
	}
	defer resp.Body.Close()

	var result CommandResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &CommandResult{Error: fmt.Sprintf("failed to parse response: %v", err)}
	}
	return &result
}

// uploadRun posts a local data file to the run queue and returns the run id
func (c *client) uploadRun(templateID, dataPath, format string) (string, error) {
	f, err := os.Open(dataPath)
	if err != nil {
		return "", fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("templateId", templateID)
	if format != "" {
		w.WriteField("format", format)
	}
	name := filepath.Base(dataPath)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="data"; filename=%q`, name))
	h.Set("Content-Type", dataContentType(name))
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read data file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	resp, err := c.http.Post(c.baseURL+"/api/v1/certificates/runs", w.FormDataContentType(), &body)
	if err != nil {
		return "", fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		RunID string `json:"runId"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		if out.Error == "" {
			out.Error = resp.Status
		}
		return "", fmt.Errorf("%s", out.Error)
	}
	return out.RunID, nil
}

// dataContentType labels an upload so the server can pick its reader
func dataContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".xlsx", ".xlsm":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

func (c *client) getRun(runID string) (*batch.Run, error) {
	resp, err := c.http.Get(c.baseURL + "/api/v1/runs/" + url.PathEscape(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var out struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&out)
		if out.Error == "" {
			out.Error = resp.Status
		}
		return nil, fmt.Errorf("%s", out.Error)
	}

	var run batch.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &run, nil
}

// wsURL turns the server URL into the websocket endpoint
func (c *client) wsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}
