// Package feed implements domain.Feed over HTTP JSON endpoints.
//
// A feed answers GET <path> with a JSON body holding an array of documents
// at DocumentsPath, a gjson path that defaults to "documents".
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"docquery-service/internal/domain"
)

// DefaultDocumentsPath is where documents are read when none is configured.
const DefaultDocumentsPath = "documents"

// Config describes one feed.
type Config struct {
	Name          string
	Collection    string
	Path          string
	DocumentsPath string
	Client        ClientConfig
}

// Client implements domain.Feed.
type Client struct {
	cfg    Config
	client *resty.Client
	cb     *gobreaker.CircuitBreaker[[]byte]
	logger *zap.Logger
}

// New creates a feed client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.DocumentsPath == "" {
		cfg.DocumentsPath = DefaultDocumentsPath
	}

	return &Client{
		cfg:    cfg,
		client: NewRestyClient(cfg.Client),
		cb:     NewCircuitBreaker[[]byte](cfg.Name, cfg.Client.CB, logger),
		logger: logger,
	}
}

// Name returns the feed identifier.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Collection returns the collection fed by this feed.
func (c *Client) Collection() string {
	return c.cfg.Collection
}

// Fetch retrieves every document currently published by the feed.
func (c *Client) Fetch(ctx context.Context) ([]domain.Document, error) {
	body, err := c.cb.Execute(func() ([]byte, error) {
		r, err := c.client.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			Get(c.cfg.Path)
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, fmt.Errorf("%s returned status %d", c.cfg.Name, r.StatusCode())
		}

		return r.Body(), nil
	})
	if err != nil {
		c.logger.Warn("feed fetch failed",
			zap.String("feed", c.cfg.Name),
			zap.Error(err),
			zap.String("state", c.cb.State().String()),
		)

		return nil, fmt.Errorf("fetching from %s: %w", c.cfg.Name, err)
	}

	docs, err := decodeDocuments(body, c.cfg.DocumentsPath)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.cfg.Name, err)
	}

	c.logger.Info("feed fetch completed",
		zap.String("feed", c.cfg.Name),
		zap.Int("count", len(docs)),
	)

	return docs, nil
}

// HealthCheck verifies the feed is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/health")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("health check returned status %d", resp.StatusCode())
	}

	return nil
}

func decodeDocuments(body []byte, path string) ([]domain.Document, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	arr := gjson.GetBytes(body, path)
	if !arr.IsArray() {
		return nil, fmt.Errorf("no document array at %q", path)
	}

	items := arr.Array()
	docs := make([]domain.Document, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, fmt.Errorf("%s.%d is not an object", path, i)
		}
		var doc domain.Document
		if err := json.Unmarshal([]byte(item.Raw), &doc); err != nil {
			return nil, fmt.Errorf("%s.%d: %w", path, i, err)
		}
		docs = append(docs, doc)
	}

	return docs, nil
}
