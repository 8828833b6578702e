package publish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxcase/cli/internal/casesync"
	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/schema"
	"github.com/veloxcase/cli/internal/testmo"
	"github.com/veloxcase/cli/internal/tracker"
)

type fakeIssues struct {
	mu        sync.Mutex
	issue     *tracker.Issue
	issueErr  error
	comments  []tracker.Comment
	links     []tracker.RemoteLink
	issueHits int
	added     []tracker.RemoteLink
	deleted   []int
	posted    []string
}

func (f *fakeIssues) Issue(_ context.Context, key string) (*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issueHits++
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return f.issue, nil
}

func (f *fakeIssues) Comments(context.Context, string) ([]tracker.Comment, error) {
	return f.comments, nil
}

func (f *fakeIssues) Download(_ context.Context, url string) ([]byte, error) {
	if strings.Contains(url, "broken") {
		return nil, errors.New("boom")
	}
	return []byte("data:" + url), nil
}

func (f *fakeIssues) AddComment(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, text)
	return nil
}

func (f *fakeIssues) RemoteLinks(context.Context, string) ([]tracker.RemoteLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tracker.RemoteLink(nil), f.links...), nil
}

func (f *fakeIssues) AddRemoteLink(_ context.Context, _ string, link tracker.RemoteLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, link)
	return nil
}

func (f *fakeIssues) DeleteRemoteLink(_ context.Context, _ string, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeCases struct {
	mu       sync.Mutex
	existing map[string]int
	gone     map[int]bool
	attached map[string]bool
	created  []testmo.CaseInput
	updated  map[int]testmo.CaseInput
	uploads  []string
	nextID   int
}

func newFakeCases() *fakeCases {
	return &fakeCases{
		existing: map[string]int{},
		gone:     map[int]bool{},
		attached: map[string]bool{},
		updated:  map[int]testmo.CaseInput{},
		nextID:   100,
	}
}

func (f *fakeCases) FindCase(_ context.Context, _, _ int, name string) (*testmo.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.existing[strings.ToLower(name)]; ok {
		return &testmo.Case{ID: id, Name: name}, nil
	}
	return nil, nil
}

func (f *fakeCases) CreateCase(_ context.Context, _ int, in testmo.CaseInput) (*testmo.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.created = append(f.created, in)
	return &testmo.Case{ID: f.nextID, Name: in.Name}, nil
}

func (f *fakeCases) UpdateCase(_ context.Context, _ int, caseID int, in testmo.CaseInput) (*testmo.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[caseID] = in
	return &testmo.Case{ID: caseID, Name: in.Name}, nil
}

func (f *fakeCases) CaseExists(_ context.Context, caseID int) (bool, error) {
	return !f.gone[caseID], nil
}

func (f *fakeCases) AttachmentNames(context.Context, int) (map[string]bool, error) {
	return f.attached, nil
}

func (f *fakeCases) UploadAttachment(_ context.Context, _ int, filename string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	return nil
}

func (f *fakeCases) WebURL() string { return "https://acme.testmo.net" }

func (f *fakeCases) CaseURL(projectID, caseID int) string {
	return "https://acme.testmo.net/repositories/1?case_id=" + strconv.Itoa(caseID)
}

func (f *fakeCases) FaviconURL() string { return "https://acme.testmo.net/favicon.ico" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIssue() *tracker.Issue {
	return &tracker.Issue{
		ID:              "10001",
		Key:             "QA-1",
		Summary:         "Login works",
		Description:     "User can log in",
		DescriptionHTML: "<p>User can log in</p>",
		Attachments: []tracker.Attachment{
			{Filename: "a.png", MimeType: "image/png", URL: "https://jira/a.png"},
			{Filename: "b.png", MimeType: "image/png", URL: "https://jira/broken.png"},
			{Filename: "notes.txt", MimeType: "text/plain", URL: "https://jira/notes.txt"},
		},
	}
}

var target = schema.SyncTarget{ProjectID: 1, FolderID: 7}

func TestCreateImplicitCase(t *testing.T) {
	issues := &fakeIssues{
		issue: testIssue(),
		comments: []tracker.Comment{
			{RenderedBody: "<p>TC02 - Wrong password</p><p>Scenario: enter a bad password</p><p>Expected Result: error shown</p><p>Status: FAILED</p>"},
		},
	}
	cases := newFakeCases()
	p := New(issues, cases, quietLogger())

	c := schema.CandidateFromPreview(schema.TaskPreview{Key: "QA-1", Summary: "Login works"})
	res, err := p.CreateOrUpdate(context.Background(), target, c, false)
	require.NoError(t, err)

	assert.Equal(t, schema.WriteCreated, res.Status)
	assert.Equal(t, "Login works", res.CaseName)
	assert.Equal(t, 1, res.ImageCount)

	require.Len(t, cases.created, 1)
	in := cases.created[0]
	assert.Equal(t, "Login works", in.Name)
	assert.Equal(t, 7, in.FolderID)
	assert.Equal(t, "QA-1", in.Refs)
	assert.Equal(t, "<p>User can log in</p>", in.Description)
	require.Len(t, in.Steps, 2)
	assert.Contains(t, in.Steps[0].Text1, "<strong>TC01: Login works</strong>")
	assert.Contains(t, in.Steps[0].Text1, "<p>User can log in</p>")
	assert.Contains(t, in.Steps[0].Text3, "Status: NO RUN")
	assert.Contains(t, in.Steps[1].Text1, "TC02 - Wrong password")
	assert.Contains(t, in.Steps[1].Text3, "Status: FAILED")

	assert.Equal(t, []string{"a.png"}, cases.uploads)
	require.Len(t, issues.added, 1)
	assert.Equal(t, "Testmo Case: Login works", issues.added[0].Title)
	assert.Equal(t, "https://acme.testmo.net/favicon.ico", issues.added[0].IconURL)
	require.Len(t, issues.posted, 1)
	assert.Equal(t, "Testmo sync complete.\nCreated case: Login works", issues.posted[0])
}

func TestDuplicateWithoutOverwrite(t *testing.T) {
	issues := &fakeIssues{issue: testIssue()}
	cases := newFakeCases()
	cases.existing["login works"] = 55
	p := New(issues, cases, quietLogger())

	c := schema.CandidateFromPreview(schema.TaskPreview{Key: "QA-1", Summary: "Login works"})
	res, err := p.CreateOrUpdate(context.Background(), target, c, false)
	require.NoError(t, err)

	assert.Equal(t, schema.WriteDuplicate, res.Status)
	assert.Equal(t, 55, res.CaseID)
	assert.Empty(t, cases.created)
	assert.Empty(t, cases.updated)
	assert.Empty(t, issues.posted)
	assert.Zero(t, issues.issueHits)
}

func TestOverwriteUpdatesAndSkipsKnownAttachments(t *testing.T) {
	issues := &fakeIssues{issue: testIssue()}
	cases := newFakeCases()
	cases.existing["login works"] = 55
	cases.attached["a.png"] = true
	p := New(issues, cases, quietLogger())

	c := schema.CandidateFromPreview(schema.TaskPreview{Key: "QA-1", Summary: "Login works"})
	res, err := p.CreateOrUpdate(context.Background(), target, c, true)
	require.NoError(t, err)

	assert.Equal(t, schema.WriteUpdated, res.Status)
	assert.Equal(t, 55, res.CaseID)
	assert.Zero(t, res.ImageCount)
	assert.Contains(t, cases.updated, 55)
	assert.Empty(t, cases.uploads)
	assert.Equal(t, "Testmo sync complete.\nUpdated case: Login works", issues.posted[0])
}

func TestAICandidateRendersMarkdownStep(t *testing.T) {
	issues := &fakeIssues{issue: testIssue()}
	cases := newFakeCases()
	p := New(issues, cases, quietLogger())

	c := schema.TestCaseCandidate{
		TaskKey:        "QA-1",
		Name:           "TC03: Locked account",
		Scenario:       "1. Lock the account\n2. Try to log in",
		ExpectedResult: "Login is **refused**",
	}
	res, err := p.CreateOrUpdate(context.Background(), target, c, false)
	require.NoError(t, err)
	assert.Equal(t, "Locked account", res.CaseName)

	require.Len(t, cases.created, 1)
	steps := cases.created[0].Steps
	require.Len(t, steps, 1)
	assert.Contains(t, steps[0].Text1, "<ol>")
	assert.Contains(t, steps[0].Text3, "<strong>refused</strong>")
	assert.Contains(t, steps[0].Text3, "Status: NO RUN")
}

func TestTaskDataFetchedOncePerTask(t *testing.T) {
	issues := &fakeIssues{issue: testIssue()}
	cases := newFakeCases()
	p := New(issues, cases, quietLogger())

	for _, name := range []string{"TC01: One", "TC02: Two"} {
		_, err := p.CreateOrUpdate(context.Background(), target, schema.TestCaseCandidate{TaskKey: "QA-1", Name: name}, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, issues.issueHits)

	p.Reset()
	_, err := p.CreateOrUpdate(context.Background(), target, schema.TestCaseCandidate{TaskKey: "QA-1", Name: "TC03: Three"}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, issues.issueHits)
}

var _ casesync.Resetter = (*Publisher)(nil)

func TestOverwriteAfterResetUsesFreshDescription(t *testing.T) {
	issues := &fakeIssues{issue: testIssue()}
	cases := newFakeCases()
	p := New(issues, cases, quietLogger())
	ctx := context.Background()
	c := schema.TestCaseCandidate{TaskKey: "QA-1", Name: "TC01: Login", Implicit: true}

	first, err := p.CreateOrUpdate(ctx, target, c, false)
	require.NoError(t, err)
	cases.existing["login"] = first.CaseID

	edited := testIssue()
	edited.DescriptionHTML = "<p>EDITED</p>"
	edited.Attachments = nil
	issues.mu.Lock()
	issues.issue = edited
	issues.mu.Unlock()

	p.Reset()
	res, err := p.CreateOrUpdate(ctx, target, c, true)
	require.NoError(t, err)
	assert.Equal(t, schema.WriteUpdated, res.Status)
	assert.Equal(t, 2, issues.issueHits)
	assert.Equal(t, "<p>EDITED</p>", cases.updated[first.CaseID].Description)
	assert.Contains(t, cases.updated[first.CaseID].Steps[0].Text1, "EDITED")
}

func TestIssueErrorIsReturnedAndRetried(t *testing.T) {
	issues := &fakeIssues{issueErr: client.ErrNotFound}
	cases := newFakeCases()
	p := New(issues, cases, quietLogger())

	c := schema.TestCaseCandidate{TaskKey: "QA-9", Name: "TC01: Missing"}
	_, err := p.CreateOrUpdate(context.Background(), target, c, false)
	assert.ErrorIs(t, err, client.ErrNotFound)

	_, err = p.CreateOrUpdate(context.Background(), target, c, false)
	assert.ErrorIs(t, err, client.ErrNotFound)
	assert.Equal(t, 2, issues.issueHits)
	assert.Empty(t, cases.created)
}

func TestDeadLinksAndOldLinksRemoved(t *testing.T) {
	issues := &fakeIssues{
		issue: testIssue(),
		links: []tracker.RemoteLink{
			{ID: 1, Title: "Testmo Case: old", URL: "https://acme.testmo.net/repositories/1?case_id=9"},
			{ID: 2, Title: "Design doc", URL: "https://docs.example.com/x"},
		},
	}
	cases := newFakeCases()
	cases.gone[9] = true
	p := New(issues, cases, quietLogger())

	_, err := p.CreateOrUpdate(context.Background(), target, schema.TestCaseCandidate{TaskKey: "QA-1", Name: "TC01: One"}, false)
	require.NoError(t, err)

	// Dead link removed by the cleanup, then again as an old Testmo link
	assert.Equal(t, []int{1, 1}, issues.deleted)
	assert.NotContains(t, issues.deleted, 2)
}
