// Package tracker talks to the Jira Cloud REST API (v3).
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/schema"
)

const apiPrefix = "/rest/api/3"

// Config holds what is needed to reach a Jira site
type Config struct {
	BaseURL  string
	Email    string
	APIToken string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Client is a Jira REST client authenticated with email + API token
type Client struct {
	api     *client.Client
	baseURL string
	logger  *slog.Logger
}

// Issue is the part of a Jira issue the sync flow consumes
type Issue struct {
	ID              string       `json:"id"`
	Key             string       `json:"key"`
	Summary         string       `json:"summary"`
	Status          string       `json:"status"`
	Description     string       `json:"description"`
	DescriptionHTML string       `json:"description_html"`
	Attachments     []Attachment `json:"attachments,omitempty"`
}

// Attachment is a file attached to an issue
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}

// IsImage reports whether the attachment is an image
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.MimeType), "image/")
}

// Comment is one issue comment
type Comment struct {
	ID           string `json:"id"`
	Body         string `json:"body"`
	RenderedBody string `json:"rendered_body"`
}

// Text returns the rendered HTML body, falling back to plain text
func (c Comment) Text() string {
	if c.RenderedBody != "" {
		return c.RenderedBody
	}
	return c.Body
}

// New creates a Jira client
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := client.NormalizeBaseURL(cfg.BaseURL)
	return &Client{
		api: client.NewClient(client.Options{
			BaseURL: base,
			Timeout: cfg.Timeout,
			Auth:    client.BasicAuth(cfg.Email, cfg.APIToken),
			Logger:  logger.With("component", "jira"),
		}),
		baseURL: base,
		logger:  logger,
	}
}

// BaseURL returns the normalized site URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

type issueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"`
	Status      *struct {
		Name string `json:"name"`
	} `json:"status"`
	IssueType *struct {
		Name    string `json:"name"`
		IconURL string `json:"iconUrl"`
	} `json:"issuetype"`
	Attachment []struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		MimeType string `json:"mimeType"`
		Content  string `json:"content"`
	} `json:"attachment"`
}

type issueResponse struct {
	ID             string      `json:"id"`
	Key            string      `json:"key"`
	Fields         issueFields `json:"fields"`
	RenderedFields struct {
		Description string `json:"description"`
	} `json:"renderedFields"`
}

func issuePath(key string) string {
	return apiPrefix + "/issue/" + url.PathEscape(key)
}

// Preview fetches the short view of a task
func (c *Client) Preview(ctx context.Context, key string) (schema.TaskPreview, error) {
	key = schema.NormalizeTaskKey(key)
	if key == "" {
		return schema.TaskPreview{}, client.Validationf("task key is required")
	}

	var resp issueResponse
	query := url.Values{"fields": {"summary,status,issuetype"}}
	if err := c.api.Do(ctx, http.MethodGet, issuePath(key), query, nil, &resp); err != nil {
		return schema.TaskPreview{}, fmt.Errorf("preview %s: %w", key, err)
	}
	if resp.Fields.Summary == "" {
		return schema.TaskPreview{}, fmt.Errorf("preview %s: %w", key, client.ErrNotFound)
	}

	preview := schema.TaskPreview{
		Key:     firstNonEmpty(resp.Key, key),
		Summary: resp.Fields.Summary,
	}
	if resp.Fields.Status != nil {
		preview.Status = resp.Fields.Status.Name
	}
	if resp.Fields.IssueType != nil {
		preview.IconURL = resp.Fields.IssueType.IconURL
	}
	return preview, nil
}

// Issue fetches the full issue including rendered HTML and attachments
func (c *Client) Issue(ctx context.Context, key string) (*Issue, error) {
	key = schema.NormalizeTaskKey(key)
	if key == "" {
		return nil, client.Validationf("task key is required")
	}

	var resp issueResponse
	query := url.Values{"expand": {"renderedFields"}}
	if err := c.api.Do(ctx, http.MethodGet, issuePath(key), query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}
	if resp.Fields.Summary == "" {
		return nil, fmt.Errorf("get issue %s: %w", key, client.ErrNotFound)
	}

	issue := &Issue{
		ID:              resp.ID,
		Key:             firstNonEmpty(resp.Key, key),
		Summary:         resp.Fields.Summary,
		Description:     PlainText(resp.Fields.Description),
		DescriptionHTML: resp.RenderedFields.Description,
	}
	if resp.Fields.Status != nil {
		issue.Status = resp.Fields.Status.Name
	}
	for _, a := range resp.Fields.Attachment {
		issue.Attachments = append(issue.Attachments, Attachment{
			ID:       a.ID,
			Filename: a.Filename,
			MimeType: a.MimeType,
			URL:      a.Content,
		})
	}
	return issue, nil
}

// ImageAttachments returns only image attachments
func (i *Issue) ImageAttachments() []Attachment {
	var out []Attachment
	for _, a := range i.Attachments {
		if a.IsImage() {
			out = append(out, a)
		}
	}
	return out
}

// Comments fetches the issue comments with rendered bodies
func (c *Client) Comments(ctx context.Context, key string) ([]Comment, error) {
	var resp struct {
		Comments []struct {
			ID           string          `json:"id"`
			Body         json.RawMessage `json:"body"`
			RenderedBody string          `json:"renderedBody"`
		} `json:"comments"`
	}
	query := url.Values{"expand": {"renderedBody"}}
	if err := c.api.Do(ctx, http.MethodGet, issuePath(key)+"/comment", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get comments %s: %w", key, err)
	}

	comments := make([]Comment, 0, len(resp.Comments))
	for _, rc := range resp.Comments {
		comments = append(comments, Comment{
			ID:           rc.ID,
			Body:         PlainText(rc.Body),
			RenderedBody: rc.RenderedBody,
		})
	}
	return comments, nil
}

// AddComment posts a plain-text comment as a single ADF paragraph
func (c *Client) AddComment(ctx context.Context, key, text string) error {
	payload := map[string]any{"body": paragraphDoc(text)}
	if err := c.api.Do(ctx, http.MethodPost, issuePath(key)+"/comment", nil, payload, nil); err != nil {
		return fmt.Errorf("add comment %s: %w", key, err)
	}
	return nil
}

// Download fetches an attachment or inline image. Credentials are only sent
// to the Jira site itself. Relative URLs resolve against the site; HTML
// responses (login pages) are rejected.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.ReplaceAll(rawURL, "&amp;", "&")
	data, contentType, err := c.api.Download(ctx, rawURL, c.ownsURL(rawURL))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("download %s: %w: got an HTML page instead of a file", rawURL, client.ErrUpstream)
	}
	return data, nil
}

// Myself returns the display name of the authenticated user
func (c *Client) Myself(ctx context.Context) (string, error) {
	var resp struct {
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	}
	if err := c.api.Do(ctx, http.MethodGet, apiPrefix+"/myself", nil, nil, &resp); err != nil {
		return "", fmt.Errorf("jira whoami: %w", err)
	}
	return firstNonEmpty(resp.DisplayName, resp.EmailAddress), nil
}

func (c *Client) ownsURL(rawURL string) bool {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return true
	}
	if c.baseURL != "" && strings.HasPrefix(rawURL, c.baseURL) {
		return true
	}
	return strings.Contains(rawURL, "atlassian") || strings.Contains(rawURL, "/rest/") || strings.Contains(rawURL, "/secure/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
