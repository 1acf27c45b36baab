package server

import (
	"bytes"
	"compress/gzip"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/store"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/upload"
)

// defaultMaxUploadBytes bounds a decoded worker upload.
const defaultMaxUploadBytes = 256 << 20

var errPayloadTooLarge = errors.New("decoded payload exceeds the upload limit")

func (s *Server) handleHealthz(c *gin.Context) {
	if s.opts.Health != nil {
		if err := s.opts.Health.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{
		"time":            time.Now().UTC().Format(time.RFC3339),
		"role":            s.opts.Info.Role,
		"targets":         s.opts.Info.Targets,
		"cleanup_enabled": s.opts.Info.CleanupEnabled,
	}
	if s.opts.Status != nil {
		resp["scheduler_running"] = s.opts.Status.Running()
		resp["last_cycle"] = s.opts.Status.LastCycle()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHostQuery(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph store not available"})
		return
	}

	var q store.HostQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}

	rows, err := s.opts.Store.Hosts(c.Request.Context(), q)
	if err != nil {
		s.opts.Logger.Error("host query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hosts": rows, "count": len(rows)})
}

func (s *Server) handleEventQuery(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph store not available"})
		return
	}

	var q store.EventQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}

	rows, err := s.opts.Store.Events(c.Request.Context(), q)
	if err != nil {
		s.opts.Logger.Error("event query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": rows, "count": len(rows)})
}

// handleIngest receives a worker's consolidated scan output. Worker
// credentials are checked before the body is even decoded, so a bad
// token has no side effects at all.
func (s *Server) handleIngest(c *gin.Context) {
	workerID := c.GetHeader("X-Worker-Id")
	workerToken := c.GetHeader("X-Worker-Token")
	if !s.workerAuthorized(workerID, workerToken) {
		s.opts.Logger.Warn("worker ingest rejected", "worker", workerID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid worker credentials"})
		return
	}

	if s.opts.Ingestor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingest not available"})
		return
	}

	var payload upload.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	data, err := decodePayload(payload, s.maxUploadBytes())
	if err != nil {
		if errors.Is(err, errPayloadTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload decode failed: " + err.Error()})
		return
	}

	imported, err := s.opts.Ingestor.ImportBytes(c.Request.Context(), data, payload.DefaultDomain)
	if err != nil {
		s.opts.Logger.Error("worker ingest failed", "worker", workerID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}

	s.opts.Logger.Info("worker ingest accepted",
		"worker", workerID, "scan", payload.ScanName, "imported", imported)
	c.JSON(http.StatusOK, upload.Response{Imported: imported, Worker: workerID})
}

func (s *Server) workerAuthorized(id, token string) bool {
	if id == "" || token == "" {
		return false
	}
	want, ok := s.opts.WorkerTokens[id]
	if !ok || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}

func (s *Server) maxUploadBytes() int64 {
	if s.opts.MaxUploadBytes > 0 {
		return s.opts.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

// decodePayload rejects, rather than truncates, anything whose decoded
// form exceeds limit.
func decodePayload(p upload.Payload, limit int64) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(p.PayloadB64)
	if err != nil {
		return nil, err
	}
	if p.Encoding != "gzip" {
		if int64(len(raw)) > limit {
			return nil, errPayloadTooLarge
		}
		return raw, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	data, err := io.ReadAll(io.LimitReader(gz, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errPayloadTooLarge
	}
	return data, nil
}
