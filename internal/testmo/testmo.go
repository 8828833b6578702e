// Package testmo is a client for the Testmo REST API (v1).
package testmo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/schema"
)

// Case defaults used for every record we write
const (
	DefaultTemplateID = 2
	DefaultStateID    = 4
	DefaultPriorityID = 2
	perPage           = 100
	maxPages          = 200
)

// Config holds what is needed to reach a Testmo instance
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is a Testmo API client
type Client struct {
	api    *client.Client
	webURL string
	logger *slog.Logger
}

// Case is a test case stored in a repository folder
type Case struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	FolderID int    `json:"folder_id,omitempty"`
}

// Step is one entry of the custom_steps field
type Step struct {
	Text1 string `json:"text1"`
	Text3 string `json:"text3"`
}

// CaseInput is the content of a case to create or update
type CaseInput struct {
	Name        string
	FolderID    int
	Refs        string
	Description string
	Steps       []Step
}

// APIBase normalizes a configured URL into the API root
func APIBase(raw string) string {
	base := client.NormalizeBaseURL(raw)
	if base != "" && !strings.HasSuffix(base, "/api/v1") {
		base += "/api/v1"
	}
	return base
}

// New creates a Testmo client
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := APIBase(cfg.BaseURL)
	return &Client{
		api: client.NewClient(client.Options{
			BaseURL: base,
			Timeout: cfg.Timeout,
			Auth:    client.BearerAuth(cfg.APIKey),
			Logger:  logger.With("component", "testmo"),
		}),
		webURL: strings.TrimSuffix(base, "/api/v1"),
		logger: logger,
	}
}

// WebURL returns the browser URL of the instance
func (c *Client) WebURL() string {
	return c.webURL
}

// CaseURL returns the browser URL of a case in a repository
func (c *Client) CaseURL(projectID, caseID int) string {
	return fmt.Sprintf("%s/repositories/%d?case_id=%d", c.webURL, projectID, caseID)
}

// FaviconURL is used as the icon of links pointing at Testmo
func (c *Client) FaviconURL() string {
	return c.webURL + "/favicon.ico"
}

// listPage covers the response shapes the API uses for lists
type listPage struct {
	Result   json.RawMessage `json:"result"`
	Folders  json.RawMessage `json:"folders"`
	Cases    json.RawMessage `json:"cases"`
	Data     json.RawMessage `json:"data"`
	NextPage *int            `json:"next_page"`
	Meta     struct {
		Pagination struct {
			NextPage *int `json:"next_page"`
		} `json:"pagination"`
	} `json:"meta"`
}

func (p listPage) next() int {
	if p.NextPage != nil {
		return *p.NextPage
	}
	if p.Meta.Pagination.NextPage != nil {
		return *p.Meta.Pagination.NextPage
	}
	return 0
}

// items decodes the first non-empty list field into out
func (p listPage) items(out any) error {
	for _, raw := range []json.RawMessage{p.Result, p.Folders, p.Cases, p.Data} {
		trimmed := strings.TrimSpace(string(raw))
		if trimmed == "" || trimmed == "null" {
			continue
		}
		if trimmed[0] != '[' {
			// single object responses are wrapped into a one-element list
			raw = json.RawMessage("[" + trimmed + "]")
		}
		return json.Unmarshal(raw, out)
	}
	return nil
}

type folderDTO struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ParentID *int   `json:"parent_id"`
}

func (f folderDTO) toFolder() schema.Folder {
	folder := schema.Folder{ID: f.ID, Name: f.Name}
	if f.ParentID != nil && *f.ParentID != 0 {
		parent := *f.ParentID
		folder.ParentID = &parent
	}
	return folder
}

// Folders lists every folder of a project repository
func (c *Client) Folders(ctx context.Context, projectID int) ([]schema.Folder, error) {
	var folders []schema.Folder
	page := 1
	for i := 0; i < maxPages && page > 0; i++ {
		var resp listPage
		query := url.Values{"page": {strconv.Itoa(page)}, "per_page": {strconv.Itoa(perPage)}}
		if err := c.api.Do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/folders", projectID), query, nil, &resp); err != nil {
			return nil, fmt.Errorf("list folders of project %d: %w", projectID, err)
		}
		var dtos []folderDTO
		if err := resp.items(&dtos); err != nil {
			return nil, fmt.Errorf("%w: decode folders: %v", client.ErrUpstream, err)
		}
		for _, d := range dtos {
			folders = append(folders, d.toFolder())
		}
		next := resp.next()
		if next <= page {
			break
		}
		page = next
	}
	c.logger.Debug("folders listed", "project", projectID, "count", len(folders))
	return folders, nil
}

// CreateFolder creates a folder, optionally below parentID
func (c *Client) CreateFolder(ctx context.Context, projectID int, name string, parentID *int) (schema.Folder, error) {
	entry := map[string]any{"name": name}
	if parentID != nil && *parentID > 0 {
		entry["parent_id"] = *parentID
	}

	var resp listPage
	payload := map[string]any{"folders": []any{entry}}
	if err := c.api.Do(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/folders", projectID), nil, payload, &resp); err != nil {
		return schema.Folder{}, fmt.Errorf("create folder %q: %w", name, err)
	}

	var dtos []folderDTO
	if err := resp.items(&dtos); err != nil || len(dtos) == 0 || dtos[0].ID == 0 {
		return schema.Folder{}, fmt.Errorf("%w: create folder %q returned no folder", client.ErrUpstream, name)
	}
	return dtos[0].toFolder(), nil
}

// FindCase looks up a case in a folder by name, ignoring case and
// surrounding whitespace. It returns nil when there is no such case.
func (c *Client) FindCase(ctx context.Context, projectID, folderID int, name string) (*Case, error) {
	target := strings.ToLower(strings.TrimSpace(name))
	page := 1
	for i := 0; i < maxPages && page > 0; i++ {
		var resp listPage
		query := url.Values{
			"folder_id": {strconv.Itoa(folderID)},
			"page":      {strconv.Itoa(page)},
			"per_page":  {strconv.Itoa(perPage)},
		}
		if err := c.api.Do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/cases", projectID), query, nil, &resp); err != nil {
			return nil, fmt.Errorf("find case %q: %w", name, err)
		}
		var cases []Case
		if err := resp.items(&cases); err != nil {
			return nil, fmt.Errorf("%w: decode cases: %v", client.ErrUpstream, err)
		}
		for _, cs := range cases {
			if strings.ToLower(strings.TrimSpace(cs.Name)) == target {
				c.logger.Info("duplicate case found", "name", cs.Name, "id", cs.ID)
				found := cs
				return &found, nil
			}
		}
		next := resp.next()
		if next <= page {
			break
		}
		page = next
	}
	return nil, nil
}

func (in CaseInput) payload() map[string]any {
	steps := in.Steps
	if steps == nil {
		steps = []Step{}
	}
	return map[string]any{
		"name":               in.Name,
		"template_id":        DefaultTemplateID,
		"state_id":           DefaultStateID,
		"priority_id":        DefaultPriorityID,
		"estimate":           0,
		"refs":               in.Refs,
		"custom_description": in.Description,
		"custom_steps":       steps,
	}
}

// CreateCase creates one case in in.FolderID
func (c *Client) CreateCase(ctx context.Context, projectID int, in CaseInput) (*Case, error) {
	if in.FolderID <= 0 {
		return nil, client.Validationf("folder id must be positive, got %d", in.FolderID)
	}
	entry := in.payload()
	entry["folder_id"] = in.FolderID

	var resp listPage
	payload := map[string]any{"cases": []any{entry}}
	if err := c.api.Do(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/cases", projectID), nil, payload, &resp); err != nil {
		return nil, fmt.Errorf("create case %q: %w", in.Name, err)
	}

	var cases []Case
	if err := resp.items(&cases); err != nil || len(cases) == 0 || cases[0].ID == 0 {
		return nil, fmt.Errorf("%w: create case %q returned no case", client.ErrUpstream, in.Name)
	}
	created := cases[0]
	if created.Name == "" {
		created.Name = in.Name
	}
	return &created, nil
}

// UpdateCase replaces the content of an existing case. Instances that do
// not accept PATCH on the bulk endpoint are retried with PUT.
func (c *Client) UpdateCase(ctx context.Context, projectID, caseID int, in CaseInput) (*Case, error) {
	payload := in.payload()
	payload["ids"] = []int{caseID}
	path := fmt.Sprintf("/projects/%d/cases", projectID)

	var resp listPage
	err := c.api.Do(ctx, http.MethodPatch, path, nil, payload, &resp)
	if client.StatusCode(err) == http.StatusMethodNotAllowed {
		c.logger.Debug("PATCH not allowed, retrying with PUT", "case", caseID)
		resp = listPage{}
		err = c.api.Do(ctx, http.MethodPut, path, nil, payload, &resp)
	}
	if err != nil {
		return nil, fmt.Errorf("update case %d: %w", caseID, err)
	}

	updated := Case{ID: caseID, Name: in.Name, FolderID: in.FolderID}
	var cases []Case
	if err := resp.items(&cases); err == nil && len(cases) > 0 && cases[0].ID != 0 {
		updated.ID = cases[0].ID
	}
	return &updated, nil
}

// CaseExists reports whether a case is still present. 404 and 400 both
// mean the case is gone.
func (c *Client) CaseExists(ctx context.Context, caseID int) (bool, error) {
	err := c.api.Do(ctx, http.MethodGet, fmt.Sprintf("/cases/%d", caseID), nil, nil, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, client.ErrNotFound), client.StatusCode(err) == http.StatusBadRequest:
		return false, nil
	default:
		return false, fmt.Errorf("check case %d: %w", caseID, err)
	}
}

// AttachmentNames lists the file names already attached to a case
func (c *Client) AttachmentNames(ctx context.Context, caseID int) (map[string]bool, error) {
	var resp listPage
	if err := c.api.Do(ctx, http.MethodGet, fmt.Sprintf("/cases/%d/attachments", caseID), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list attachments of case %d: %w", caseID, err)
	}
	var atts []struct {
		Name string `json:"name"`
	}
	if err := resp.items(&atts); err != nil {
		return nil, fmt.Errorf("%w: decode attachments: %v", client.ErrUpstream, err)
	}
	names := make(map[string]bool, len(atts))
	for _, a := range atts {
		names[a.Name] = true
	}
	return names, nil
}

// UploadAttachment attaches one file to a case
func (c *Client) UploadAttachment(ctx context.Context, caseID int, filename string, data []byte) error {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if contentType == "" {
		contentType = "image/jpeg"
	}
	path := fmt.Sprintf("/cases/%d/attachments/single", caseID)
	if err := c.api.Upload(ctx, path, "file", filename, contentType, data, nil); err != nil {
		return fmt.Errorf("upload %s to case %d: %w", filename, caseID, err)
	}
	return nil
}

// Projects lists the projects visible to the API key
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var resp listPage
	if err := c.api.Do(ctx, http.MethodGet, "/projects", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var projects []Project
	if err := resp.items(&projects); err != nil {
		return nil, fmt.Errorf("%w: decode projects: %v", client.ErrUpstream, err)
	}
	return projects, nil
}

// Project is a Testmo project (repository)
type Project struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
