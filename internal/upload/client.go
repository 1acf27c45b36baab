package upload

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/artifact"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
)

// ingestPath is the central node's upload endpoint.
const ingestPath = "/ingest/output"

// Config holds worker-side upload settings.
type Config struct {
	URL         string
	WorkerID    string
	WorkerToken string
	Compress    bool
	VerifyTLS   bool
	Timeout     time.Duration
}

// Payload is the wire shape POSTed to the central ingest endpoint.
type Payload struct {
	ScanName      string `json:"scan_name,omitempty"`
	DefaultDomain string `json:"default_domain,omitempty"`
	Encoding      string `json:"encoding"`
	PayloadB64    string `json:"payload_b64"`
}

// Response is the central node's reply.
type Response struct {
	Imported int    `json:"imported"`
	Worker   string `json:"worker"`
}

// Client pushes consolidated scan output to the central node under
// worker credentials. Calls are synchronous; a failed upload is the
// caller's to log, retry policy lives outside this client.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates an upload client. Missing endpoint or credentials
// are surfaced per call, so a worker can be configured lazily.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	transport := http.DefaultTransport
	if !cfg.VerifyTLS {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout, Transport: transport},
		logger: logger,
	}
}

// UploadDir uploads the directory's consolidated output file. Unlike
// the importer's tolerant multi-format scan, a missing consolidated
// output here is a hard failure: a worker that produced nothing to
// upload is an operational problem, not a skip.
func (c *Client) UploadDir(ctx context.Context, dir, defaultDomain, scanName string) (int, error) {
	path := filepath.Join(dir, artifact.ConsolidatedOutput)
	if _, err := os.Stat(path); err != nil {
		return 0, types.NewError(types.ARTIFACT_NOT_FOUND,
			fmt.Sprintf("%s not found in scan dir %s", artifact.ConsolidatedOutput, dir))
	}
	if scanName == "" {
		scanName = filepath.Base(dir)
	}
	return c.UploadFile(ctx, path, defaultDomain, scanName)
}

// UploadFile uploads one consolidated output file.
func (c *Client) UploadFile(ctx context.Context, path, defaultDomain, scanName string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, types.WrapError(types.ARTIFACT_NOT_FOUND, "read output file", err)
	}
	return c.UploadBytes(ctx, data, defaultDomain, scanName)
}

// UploadBytes uploads raw consolidated output bytes.
func (c *Client) UploadBytes(ctx context.Context, data []byte, defaultDomain, scanName string) (int, error) {
	if len(data) == 0 {
		return 0, types.NewError(types.UPLOAD_FAILED, "payload is empty")
	}
	endpoint, err := c.endpoint()
	if err != nil {
		return 0, err
	}
	if c.cfg.WorkerID == "" || c.cfg.WorkerToken == "" {
		return 0, types.NewError(types.UPLOAD_NOT_CONFIGURED, "worker credentials are not configured")
	}

	encoding := "plain"
	body := data
	if c.cfg.Compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return 0, types.WrapError(types.UPLOAD_FAILED, "gzip payload", err)
		}
		if err := gz.Close(); err != nil {
			return 0, types.WrapError(types.UPLOAD_FAILED, "gzip payload", err)
		}
		body = buf.Bytes()
		encoding = "gzip"
	}

	payload, err := json.Marshal(Payload{
		ScanName:      scanName,
		DefaultDomain: defaultDomain,
		Encoding:      encoding,
		PayloadB64:    base64.StdEncoding.EncodeToString(body),
	})
	if err != nil {
		return 0, types.WrapError(types.UPLOAD_FAILED, "encode payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, types.WrapError(types.UPLOAD_FAILED, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Worker-Id", c.cfg.WorkerID)
	req.Header.Set("X-Worker-Token", c.cfg.WorkerToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, types.WrapError(types.UPLOAD_FAILED, "post to central", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, types.NewError(types.UPLOAD_FAILED,
			fmt.Sprintf("central returned status %d", resp.StatusCode))
	}

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, types.WrapError(types.UPLOAD_FAILED, "malformed central response", err)
	}

	c.logger.Info("upload completed", "imported", parsed.Imported, "scan", scanName, "domain", defaultDomain)
	return parsed.Imported, nil
}

func (c *Client) endpoint() (string, error) {
	url := strings.TrimRight(strings.TrimSpace(c.cfg.URL), "/")
	if url == "" {
		return "", types.NewError(types.UPLOAD_NOT_CONFIGURED, "central API URL is not configured")
	}
	if strings.HasSuffix(url, ingestPath) {
		return url, nil
	}
	return url + ingestPath, nil
}
