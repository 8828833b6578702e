// Package publish writes test case candidates into Testmo and links the
// resulting cases back to their Jira task.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/yuin/goldmark"

	"github.com/veloxcase/cli/internal/media"
	"github.com/veloxcase/cli/internal/scenario"
	"github.com/veloxcase/cli/internal/schema"
	"github.com/veloxcase/cli/internal/testmo"
	"github.com/veloxcase/cli/internal/tracker"
)

// Issues is the tracker side of a publish
type Issues interface {
	Issue(ctx context.Context, key string) (*tracker.Issue, error)
	Comments(ctx context.Context, key string) ([]tracker.Comment, error)
	Download(ctx context.Context, url string) ([]byte, error)
	AddComment(ctx context.Context, key, text string) error
	RemoteLinks(ctx context.Context, key string) ([]tracker.RemoteLink, error)
	AddRemoteLink(ctx context.Context, key string, link tracker.RemoteLink) error
	DeleteRemoteLink(ctx context.Context, key string, id int) error
}

// Cases is the test-management side of a publish
type Cases interface {
	FindCase(ctx context.Context, projectID, folderID int, name string) (*testmo.Case, error)
	CreateCase(ctx context.Context, projectID int, in testmo.CaseInput) (*testmo.Case, error)
	UpdateCase(ctx context.Context, projectID, caseID int, in testmo.CaseInput) (*testmo.Case, error)
	CaseExists(ctx context.Context, caseID int) (bool, error)
	AttachmentNames(ctx context.Context, caseID int) (map[string]bool, error)
	UploadAttachment(ctx context.Context, caseID int, filename string, data []byte) error
	WebURL() string
	CaseURL(projectID, caseID int) string
	FaviconURL() string
}

// LinkTitlePrefix starts the title of every web link we add to a task
const LinkTitlePrefix = "Testmo Case: "

var caseIDPattern = regexp.MustCompile(`case_id=(\d+)`)

// taskData is what we fetch once per task and reuse for all of its
// candidates within one sync operation
type taskData struct {
	once     sync.Once
	issue    *tracker.Issue
	comments []tracker.Comment
	images   []media.File
	desc     string
	err      error
}

// Publisher creates or updates one Testmo case per candidate
type Publisher struct {
	issues Issues
	cases  Cases
	md     goldmark.Markdown
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*taskData
}

// New creates a Publisher
func New(issues Issues, cases Cases, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		issues: issues,
		cases:  cases,
		md:     goldmark.New(),
		logger: logger,
		tasks:  make(map[string]*taskData),
	}
}

// Reset drops all cached task data. The next write of every task fetches
// it again and re-checks its links.
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = make(map[string]*taskData)
}

// CreateOrUpdate writes c into target. Without overwrite an existing case
// with the same name is reported as a duplicate and left untouched.
func (p *Publisher) CreateOrUpdate(ctx context.Context, target schema.SyncTarget, c schema.TestCaseCandidate, overwrite bool) (schema.WriteResult, error) {
	name := scenario.CaseName(c)

	existing, err := p.cases.FindCase(ctx, target.ProjectID, target.FolderID, name)
	if err != nil {
		return schema.WriteResult{}, err
	}
	if existing != nil && !overwrite {
		return schema.WriteResult{Status: schema.WriteDuplicate, CaseID: existing.ID, CaseName: name}, nil
	}

	td := p.load(ctx, c.TaskKey)
	if td.err != nil {
		return schema.WriteResult{}, td.err
	}

	in := testmo.CaseInput{
		Name:        name,
		FolderID:    target.FolderID,
		Refs:        c.TaskKey,
		Description: td.desc,
		Steps:       p.steps(c, td),
	}

	status := schema.WriteCreated
	var written *testmo.Case
	if existing != nil {
		written, err = p.cases.UpdateCase(ctx, target.ProjectID, existing.ID, in)
		status = schema.WriteUpdated
	} else {
		written, err = p.cases.CreateCase(ctx, target.ProjectID, in)
	}
	if err != nil {
		return schema.WriteResult{}, err
	}
	p.logger.Info("case written", "task", c.TaskKey, "case", written.ID, "status", status)

	images := p.uploadImages(ctx, written.ID, td.images, status == schema.WriteUpdated)
	p.link(ctx, target.ProjectID, c.TaskKey, written.ID, name)
	p.comment(ctx, c.TaskKey, name, status == schema.WriteUpdated)

	return schema.WriteResult{
		Status:     status,
		CaseID:     written.ID,
		CaseName:   name,
		ImageCount: images,
	}, nil
}

// load fetches the issue, its comments and image attachments once per task.
// Dead case links are cleaned on the first load.
func (p *Publisher) load(ctx context.Context, key string) *taskData {
	p.mu.Lock()
	td, ok := p.tasks[key]
	if !ok {
		td = &taskData{}
		p.tasks[key] = td
	}
	p.mu.Unlock()

	td.once.Do(func() {
		p.cleanDeadLinks(ctx, key)

		issue, err := p.issues.Issue(ctx, key)
		if err != nil {
			td.err = err
			return
		}
		td.issue = issue

		comments, err := p.issues.Comments(ctx, key)
		if err != nil {
			p.logger.Warn("comments unavailable", "task", key, "error", err)
		}
		td.comments = comments

		var sources []media.Source
		for _, a := range issue.ImageAttachments() {
			sources = append(sources, media.Source{Name: a.Filename, URL: a.URL})
		}
		td.images = media.DownloadAll(ctx, sources, p.issues.Download, media.DownloadWorkers, p.logger)
		td.desc = media.InlineImages(ctx, issue.DescriptionHTML, p.issues.Download, p.logger)
	})

	if td.err != nil {
		// Let a later call retry the fetch
		p.mu.Lock()
		if p.tasks[key] == td {
			delete(p.tasks, key)
		}
		p.mu.Unlock()
	}
	return td
}

func (p *Publisher) steps(c schema.TestCaseCandidate, td *taskData) []testmo.Step {
	if !c.Implicit {
		return []testmo.Step{p.step(c, false)}
	}

	first := c
	first.Scenario = td.issue.DescriptionHTML
	if first.Scenario == "" {
		first.Scenario = html.EscapeString(td.issue.Description)
	}
	steps := []testmo.Step{p.step(first, true)}
	for _, cm := range td.comments {
		for _, parsed := range scenario.ParseCommentCases(cm.Text()) {
			steps = append(steps, p.step(parsed, false))
		}
	}
	return steps
}

// step renders one candidate as a Testmo step. rawHTML marks a scenario
// that is already HTML.
func (p *Publisher) step(c schema.TestCaseCandidate, rawHTML bool) testmo.Step {
	body := c.Scenario
	if !rawHTML {
		body = p.render(body)
	}
	status := c.Status
	if status == "" {
		status = schema.DefaultCaseStatus
	}
	return testmo.Step{
		Text1: "<p><strong>" + html.EscapeString(c.Name) + "</strong></p>" + body,
		Text3: p.render(c.ExpectedResult) + "<p><em>Status: " + html.EscapeString(status) + "</em></p>",
	}
}

// render converts markdown to HTML, falling back to an escaped paragraph
func (p *Publisher) render(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(text), &buf); err != nil {
		return "<p>" + html.EscapeString(text) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}

// uploadImages attaches images to the case. Updates skip files whose name
// is already attached.
func (p *Publisher) uploadImages(ctx context.Context, caseID int, images []media.File, update bool) int {
	if len(images) == 0 || caseID == 0 {
		return 0
	}
	files := images
	if update {
		names, err := p.cases.AttachmentNames(ctx, caseID)
		if err != nil {
			p.logger.Warn("attachment list unavailable, uploading all", "case", caseID, "error", err)
		} else {
			files = files[:0:0]
			for _, f := range images {
				if names[f.Name] {
					p.logger.Debug("skipping existing attachment", "case", caseID, "file", f.Name)
					continue
				}
				files = append(files, f)
			}
		}
	}
	return media.UploadAll(ctx, files, func(ctx context.Context, f media.File) error {
		return p.cases.UploadAttachment(ctx, caseID, f.Name, f.Data)
	}, media.UploadWorkers, p.logger)
}

func isCaseLink(l tracker.RemoteLink) bool {
	return strings.Contains(l.Title, "Testmo") || strings.Contains(strings.ToLower(l.URL), "testmo")
}

// link replaces any previous Testmo web link on the task with one to caseID
func (p *Publisher) link(ctx context.Context, projectID int, key string, caseID int, name string) {
	if caseID == 0 {
		return
	}
	links, err := p.issues.RemoteLinks(ctx, key)
	if err != nil {
		p.logger.Warn("remote links unavailable", "task", key, "error", err)
	}
	for _, l := range links {
		if !isCaseLink(l) {
			continue
		}
		if err := p.issues.DeleteRemoteLink(ctx, key, l.ID); err != nil {
			p.logger.Warn("old remote link not removed", "task", key, "link", l.ID, "error", err)
		}
	}

	err = p.issues.AddRemoteLink(ctx, key, tracker.RemoteLink{
		URL:     p.cases.CaseURL(projectID, caseID),
		Title:   LinkTitlePrefix + name,
		IconURL: p.cases.FaviconURL(),
	})
	if err != nil {
		p.logger.Warn("remote link not added", "task", key, "error", err)
	}
}

// comment posts the sync notice on the task
func (p *Publisher) comment(ctx context.Context, key, name string, updated bool) {
	action := "Created case"
	if updated {
		action = "Updated case"
	}
	text := fmt.Sprintf("Testmo sync complete.\n%s: %s", action, name)
	if err := p.issues.AddComment(ctx, key, text); err != nil {
		p.logger.Warn("sync comment not posted", "task", key, "error", err)
	}
}

// cleanDeadLinks removes Testmo links whose case no longer exists
func (p *Publisher) cleanDeadLinks(ctx context.Context, key string) {
	links, err := p.issues.RemoteLinks(ctx, key)
	if err != nil {
		p.logger.Warn("dead link check skipped", "task", key, "error", err)
		return
	}
	web := p.cases.WebURL()
	cleaned := 0
	for _, l := range links {
		if !strings.Contains(l.Title, "Testmo") && (web == "" || !strings.Contains(l.URL, web)) {
			continue
		}
		m := caseIDPattern.FindStringSubmatch(l.URL)
		if m == nil {
			continue
		}
		caseID, _ := strconv.Atoi(m[1])
		exists, err := p.cases.CaseExists(ctx, caseID)
		if err != nil {
			p.logger.Warn("case check failed", "case", caseID, "error", err)
			continue
		}
		if exists {
			continue
		}
		if err := p.issues.DeleteRemoteLink(ctx, key, l.ID); err != nil {
			p.logger.Warn("dead link not removed", "task", key, "link", l.ID, "error", err)
			continue
		}
		cleaned++
	}
	if cleaned > 0 {
		p.logger.Info("dead links removed", "task", key, "count", cleaned)
	}
}
