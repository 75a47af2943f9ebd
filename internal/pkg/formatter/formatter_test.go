package formatter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

func sampleMessages() []*entity.Message {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return []*entity.Message{
		{Role: entity.MessageRoleUser, Content: "What is the refund policy?", CreatedAt: ts},
		{Role: entity.MessageRoleAssistant, Content: "Refunds are available within 30 days.", CreatedAt: ts.Add(time.Minute)},
	}
}

func TestForFormat(t *testing.T) {
	pdf, err := ForFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf", pdf.FileExtension())

	md, err := ForFormat("markdown")
	require.NoError(t, err)
	assert.Equal(t, "md", md.FileExtension())

	_, err = ForFormat("docx")
	assert.Error(t, err)
}

func TestMarkdownFormatter(t *testing.T) {
	out, err := NewMarkdownFormatter().Format("Refund questions", sampleMessages())
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "# Refund questions")
	assert.Contains(t, text, "## User (2026-03-14 09:30)")
	assert.Contains(t, text, "## Assistant (2026-03-14 09:31)")
	assert.Contains(t, text, "Refunds are available within 30 days.")
}

func TestPDFFormatter(t *testing.T) {
	out, err := NewPDFFormatter().Format("Refund questions", sampleMessages())
	require.NoError(t, err)

	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}
