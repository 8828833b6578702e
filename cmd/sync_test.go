package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/schema"
)

func writeCases(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCaseFileFromAnalysis(t *testing.T) {
	path := writeCases(t, `
task_key: QA-1
summary: Login
test_cases:
  - name: "TC01: Login works"
    scenario: Open the page
    expected_result: Logged in
    mock_data:
      user: qa
  - name: "TC02: Wrong password"
    task_key: QA-2
    scenario: Enter a bad password
    expected_result: Error shown
    status: PASSED
`)
	cases, err := loadCaseFile(path, "QA-9")
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "QA-1", cases[0].TaskKey)
	assert.Equal(t, schema.DefaultCaseStatus, cases[0].Status)
	require.NotNil(t, cases[0].MockData)
	assert.Equal(t, "qa", cases[0].MockData.Fields["user"])

	assert.Equal(t, "QA-2", cases[1].TaskKey)
	assert.Equal(t, "PASSED", cases[1].Status)
}

func TestLoadCaseFileFromList(t *testing.T) {
	path := writeCases(t, `
- name: "TC01: Logout"
  scenario: Click logout
  expected_result: Signed out
`)
	cases, err := loadCaseFile(path, "QA-3")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "QA-3", cases[0].TaskKey)
}

func TestLoadCaseFileErrors(t *testing.T) {
	_, err := loadCaseFile(filepath.Join(t.TempDir(), "missing.yaml"), "QA-1")
	assert.Error(t, err)

	_, err = loadCaseFile(writeCases(t, "[]"), "QA-1")
	assert.True(t, errors.Is(err, client.ErrValidation))

	_, err = loadCaseFile(writeCases(t, "- name: orphan\n"), "")
	assert.True(t, errors.Is(err, client.ErrValidation))

	_, err = loadCaseFile(writeCases(t, "just a string"), "QA-1")
	assert.True(t, errors.Is(err, client.ErrValidation))
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := parseDuplicatePolicy("ask", true)
	require.NoError(t, err)
	assert.Equal(t, onDuplicateAsk, p)

	p, err = parseDuplicatePolicy("ask", false)
	require.NoError(t, err)
	assert.Equal(t, onDuplicateSkip, p)

	p, err = parseDuplicatePolicy("overwrite", false)
	require.NoError(t, err)
	assert.Equal(t, onDuplicateOverwrite, p)

	_, err = parseDuplicatePolicy("merge", true)
	assert.True(t, errors.Is(err, client.ErrValidation))
}

func TestDecideWithoutPrompt(t *testing.T) {
	c := &schema.DuplicateConflict{ExistingCaseName: "Login"}

	overwrite, err := decide(onDuplicateOverwrite, c)
	require.NoError(t, err)
	assert.True(t, overwrite)

	overwrite, err = decide(onDuplicateSkip, c)
	require.NoError(t, err)
	assert.False(t, overwrite)

	overwrite, err = decide(onDuplicateAsk, nil)
	require.NoError(t, err)
	assert.False(t, overwrite)
}

func TestWriteStructured(t *testing.T) {
	v := schema.TaskPreview{Key: "QA-1", Summary: "Login"}

	var buf bytes.Buffer
	done, err := writeStructured(&buf, "json", v)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Contains(t, buf.String(), `"key": "QA-1"`)

	buf.Reset()
	done, err = writeStructured(&buf, "yaml", v)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Contains(t, buf.String(), "key: QA-1")

	done, err = writeStructured(&buf, "text", v)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = writeStructured(&buf, "xml", v)
	assert.True(t, done)
	assert.Error(t, err)
}
