package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/malykhin/ragchat-backend/internal/collection"
	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/settings"
)

// contextPlaceholder marks where retrieved context is interpolated into a
// RAG prompt template.
const contextPlaceholder = "{context}"

// Built-in fallback templates, used when no override is configured.
const (
	defaultGlobalRAGPrompt = `You are a knowledgeable assistant answering questions using the ` +
		`organization's curated knowledge base. Base your answers on the context below. ` +
		`If the context does not contain the answer, say so instead of guessing.

Context:
{context}`

	defaultUserRAGPrompt = `You are a helpful assistant answering questions about documents ` +
		`the user uploaded. Base your answers on the context below, which was extracted from ` +
		`their files. If the context does not contain the answer, say so instead of guessing.

Context:
{context}`

	defaultRegularPrompt = `You are a helpful assistant. Answer clearly and concisely.`
)

// PromptKind classifies which system prompt a turn uses.
type PromptKind string

const (
	PromptGlobalRAG PromptKind = "global_rag"
	PromptUserRAG   PromptKind = "user_rag"
	PromptRegular   PromptKind = "regular"
)

// PromptSelector picks the system prompt template for a turn based on which
// collection (if any) backs it.
type PromptSelector struct {
	settings SettingsProvider
}

func NewPromptSelector(settings SettingsProvider) *PromptSelector {
	return &PromptSelector{settings: settings}
}

// Classify maps a collection name onto a prompt kind. An empty name means no
// retrieval. A collection counts as global when its name matches the
// configured predefined collection in either prefixed or unprefixed form;
// call sites pass backing names both ways.
func (s *PromptSelector) Classify(ctx context.Context, collectionName string) (PromptKind, error) {
	if collectionName == "" {
		return PromptRegular, nil
	}

	predefined, err := s.settings.PredefinedCollectionName(ctx)
	if err != nil {
		return "", fmt.Errorf("read predefined collection setting: %w", err)
	}

	if predefined != "" && namesMatch(collectionName, predefined) {
		return PromptGlobalRAG, nil
	}

	return PromptUserRAG, nil
}

// Select returns the prompt template for the given collection name, applying
// any configured override and falling back to the built-in template.
func (s *PromptSelector) Select(ctx context.Context, collectionName string) (string, error) {
	kind, err := s.Classify(ctx, collectionName)
	if err != nil {
		return "", err
	}

	return s.Template(ctx, kind)
}

// Template returns the configured template for a prompt kind, or its
// built-in fallback.
func (s *PromptSelector) Template(ctx context.Context, kind PromptKind) (string, error) {
	var key, fallback string
	switch kind {
	case PromptGlobalRAG:
		key, fallback = settings.KeyPromptGlobalRAG, defaultGlobalRAGPrompt
	case PromptUserRAG:
		key, fallback = settings.KeyPromptUserRAG, defaultUserRAGPrompt
	default:
		key, fallback = settings.KeyPromptRegular, defaultRegularPrompt
	}

	return s.settings.PromptTemplate(ctx, key, fallback)
}

// InjectContext interpolates retrieved context into a template. Templates
// without a placeholder get the context appended so a misconfigured override
// still sees it.
func InjectContext(template, context string) string {
	if strings.Contains(template, contextPlaceholder) {
		return strings.ReplaceAll(template, contextPlaceholder, context)
	}

	return template + "\n\nContext:\n" + context
}

// FormatFragments concatenates fragments into the single context string fed
// to the model, each labeled with its source and separated by blank lines.
func FormatFragments(fragments []entity.Fragment) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, fmt.Sprintf("[%s]\n%s", f.SourceLabel, f.Text))
	}

	return strings.Join(parts, "\n\n")
}

// namesMatch compares two collection names, tolerating the admin storage
// prefix on either side.
func namesMatch(a, b string) bool {
	return collection.StripAdminPrefix(a) == collection.StripAdminPrefix(b)
}
