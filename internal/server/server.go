package server

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/clinigraph/trellis/internal/config"
	"github.com/clinigraph/trellis/internal/core"
	"github.com/clinigraph/trellis/internal/driver"
	"github.com/clinigraph/trellis/internal/llm"
)

type Server struct {
	Pipeline *core.Pipeline
}

func NewServer() *Server {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Env vars win over the config file.
	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USER"); v != "" {
		cfg.Neo4j.User = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = "bolt://localhost:7687"
	}

	d, err := driver.NewNeo4jDriver(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password)
	if err != nil {
		log.Fatalf("Failed to connect to graph store: %v", err)
	}

	llmClient, err := llm.NewClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	p := core.NewPipeline(d, llmClient, cfg)
	if err := p.BuildIndices(context.Background()); err != nil {
		log.Printf("Warning: failed to build indices: %v", err)
	}

	return &Server{Pipeline: p}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/ingest/document", s.IngestDocument)
	r.POST("/ingest/bulk", s.IngestBulk)
	r.POST("/ingest/extract", s.Extract)
	r.GET("/healthz", s.Health)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) IngestDocument(c *gin.Context) {
	var doc core.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := s.Pipeline.IngestDocument(c.Request.Context(), doc)
	if err != nil {
		log.Printf("Failed to ingest document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process document"})
		return
	}

	c.JSON(http.StatusOK, result)
}

type bulkEntry struct {
	SourceID string `json:"source_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`

	Result *core.IngestResult `json:"result,omitempty"`
}

func (s *Server) IngestBulk(c *gin.Context) {
	var docs []core.Document
	if err := c.ShouldBindJSON(&docs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	successful := 0
	entries := make([]bulkEntry, 0, len(docs))
	for _, doc := range docs {
		result, err := s.Pipeline.IngestDocument(c.Request.Context(), doc)
		if err != nil {
			log.Printf("Bulk ingest: document %s failed: %v", doc.SourceID, err)
			entries = append(entries, bulkEntry{SourceID: doc.SourceID, Status: "failed", Error: err.Error()})
			continue
		}
		successful++
		entries = append(entries, bulkEntry{SourceID: result.SourceID, Status: "success", Result: result})
	}

	c.JSON(http.StatusOK, gin.H{
		"total":      len(docs),
		"successful": successful,
		"failed":     len(docs) - successful,
		"results":    entries,
	})
}

func (s *Server) Extract(c *gin.Context) {
	var doc core.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	merged, err := s.Pipeline.Extract(c.Request.Context(), doc)
	if err != nil {
		log.Printf("Failed to extract: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to extract"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entities":   merged.Entities,
		"assertions": merged.Assertions,
	})
}
