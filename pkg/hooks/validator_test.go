package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchema(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParseFrontmatterValid(t *testing.T) {
	content := []byte(`---
title: Test Document
author: Test User
tags: [test, example]
---

Document content here
`)

	fields, err := parseFrontmatter(content)
	require.NoError(t, err)
	require.NotNil(t, fields)
	assert.Equal(t, "Test Document", fields["title"])
	assert.Equal(t, "Test User", fields["author"])
}

func TestParseFrontmatterAbsent(t *testing.T) {
	fields, err := parseFrontmatter([]byte("Just regular content"))
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestParseFrontmatterUnterminated(t *testing.T) {
	fields, err := parseFrontmatter([]byte("---\ntitle: no closing delimiter\n"))
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestValidatorSizeThresholds(t *testing.T) {
	v, err := NewValidator("")
	require.NoError(t, err)
	v = v.WithMaxSize(1000)

	assert.Equal(t, Allow, v.checkSize(500).Verdict)
	assert.Equal(t, Warn, v.checkSize(850).Verdict)
	assert.Equal(t, Block, v.checkSize(1500).Verdict)
}

func TestValidatorRequiredFields(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "note.yaml", `
name: note
required_fields:
  - title
  - author
optional_fields:
  - tags
`)

	v, err := NewValidator(dir)
	require.NoError(t, err)
	require.Contains(t, v.Schemas(), "note")

	ctx := context.Background()

	decision, err := v.Execute(ctx, &Event{
		Op:     "write",
		Path:   "/notes/a.md",
		Schema: "note",
		Data:   []byte("---\ntitle: A\nauthor: B\n---\nbody\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, Allow, decision.Verdict)

	decision, err = v.Execute(ctx, &Event{
		Op:     "write",
		Path:   "/notes/b.md",
		Schema: "note",
		Data:   []byte("---\ntitle: A\n---\nbody\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, Block, decision.Verdict)
	assert.Contains(t, decision.Message, "author")
}

func TestValidatorUnknownSchemaWarns(t *testing.T) {
	v, err := NewValidator(t.TempDir())
	require.NoError(t, err)

	decision, err := v.Execute(context.Background(), &Event{
		Op:     "write",
		Schema: "missing",
		Data:   []byte("---\ntitle: A\n---\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, Warn, decision.Verdict)
	assert.Contains(t, decision.Message, "missing")
}

func TestValidatorNoFrontmatterAllowed(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "note.yaml", "name: note\nrequired_fields: [title]\n")

	v, err := NewValidator(dir)
	require.NoError(t, err)

	decision, err := v.Execute(context.Background(), &Event{
		Op:     "write",
		Schema: "note",
		Data:   []byte("plain content, no frontmatter"),
	})
	require.NoError(t, err)
	assert.Equal(t, Allow, decision.Verdict)
}

func TestValidatorBlockBeatsWarn(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "note.yaml", "name: note\nrequired_fields: [title]\n")

	v, err := NewValidator(dir)
	require.NoError(t, err)
	v = v.WithMaxSize(100)

	// Size only warns but the missing field blocks.
	decision, err := v.Execute(context.Background(), &Event{
		Op:     "write",
		Schema: "note",
		Size:   90,
		Data:   []byte("---\nauthor: B\n---\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, Block, decision.Verdict)
}
