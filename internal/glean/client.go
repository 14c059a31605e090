package glean

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"powerbi-glean-connector/internal/model"
	"powerbi-glean-connector/internal/utils"
)

// Client implements the Glean document indexing API
type Client struct {
	baseURL    string // e.g. https://app.glean.com
	httpClient *http.Client
	token      string // indexing API token
	datasource string
}

// NewClient creates a new Glean indexing client
func NewClient(baseURL, token, datasource string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if token == "" {
		return nil, fmt.Errorf("API token is required")
	}
	if datasource == "" {
		return nil, fmt.Errorf("datasource name is required")
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		token:      token,
		datasource: datasource,
	}, nil
}

// Datasource returns the configured datasource name
func (c *Client) Datasource() string {
	return c.datasource
}

// IndexDocument pushes one document to the index. The index keys on the
// document id, so re-indexing the same id overwrites in place.
func (c *Client) IndexDocument(ctx context.Context, doc *model.Document) error {
	reqURL := fmt.Sprintf("%s/api/index/v1/indexdocument", c.baseURL)

	payload := IndexDocumentRequest{
		Document: DocumentDefinition{
			Datasource: c.datasource,
			ID:         doc.ID,
			Title:      doc.Title,
			ViewURL:    doc.ViewURL,
			Body: ContentDefinition{
				MimeType:    "text/plain",
				TextContent: doc.Body,
			},
			Permissions: PermissionsDefinition{AllowAnonymousAccess: true},
		},
	}
	if doc.Author != "" {
		payload.Document.Author = &PersonReference{Email: doc.Author}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return utils.NewPublishError(doc.ID, resp.StatusCode, string(body))
	}

	return nil
}

// setAuthHeader sets the Bearer token authorization header
func (c *Client) setAuthHeader(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// =============================================================================
// Glean Data Structures
// =============================================================================

// IndexDocumentRequest is the envelope of an indexdocument call
type IndexDocumentRequest struct {
	Document DocumentDefinition `json:"document"`
}

// DocumentDefinition is the indexable document shape
type DocumentDefinition struct {
	Datasource  string                `json:"datasource"`
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	ViewURL     string                `json:"viewURL"`
	Body        ContentDefinition     `json:"body"`
	Author      *PersonReference      `json:"author,omitempty"`
	Permissions PermissionsDefinition `json:"permissions"`
}

// ContentDefinition carries the document body
type ContentDefinition struct {
	MimeType    string `json:"mimeType"`
	TextContent string `json:"textContent"`
}

// PersonReference identifies a person by email
type PersonReference struct {
	Email string `json:"email"`
}

// PermissionsDefinition controls document visibility
type PermissionsDefinition struct {
	AllowAnonymousAccess bool `json:"allowAnonymousAccess"`
}
