package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

type fakeSearcher struct {
	exists    bool
	existsErr error
	docs      []entity.RetrievedDocument
	searchErr error
	lastLimit int
}

func (f *fakeSearcher) CollectionExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ []float32, limit int) ([]entity.RetrievedDocument, error) {
	f.lastLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.docs, nil
}

type fakeRAGSettings struct {
	topK       int
	predefined string
	templates  map[string]string
}

func (f *fakeRAGSettings) TopK(context.Context) (int, error) {
	if f.topK == 0 {
		return 4, nil
	}
	return f.topK, nil
}

func (f *fakeRAGSettings) PredefinedCollectionName(context.Context) (string, error) {
	return f.predefined, nil
}

func (f *fakeRAGSettings) PromptTemplate(_ context.Context, key, fallback string) (string, error) {
	if v, ok := f.templates[key]; ok {
		return v, nil
	}
	return fallback, nil
}

type fakeCompleter struct {
	response string
	err      error
	lastOpts entity.CompletionOptions
	calls    int
}

func (f *fakeCompleter) Complete(_ context.Context, _ []entity.ChatMessage, opts entity.CompletionOptions) (string, error) {
	f.calls++
	f.lastOpts = opts
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestRetrieve_MissingCollectionReturnsEmpty(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &fakeSearcher{exists: false}, &fakeRAGSettings{})

	fragments, err := r.Retrieve(context.Background(), "nope", "query")
	require.NoError(t, err)
	assert.Empty(t, fragments)
}

func TestRetrieve_UsesConfiguredTopK(t *testing.T) {
	searcher := &fakeSearcher{exists: true}
	r := NewRetriever(&fakeEmbedder{}, searcher, &fakeRAGSettings{topK: 7})

	_, err := r.Retrieve(context.Background(), "docs", "query")
	require.NoError(t, err)
	assert.Equal(t, 7, searcher.lastLimit)
}

func TestRetrieve_SourceLabelFallbacks(t *testing.T) {
	searcher := &fakeSearcher{
		exists: true,
		docs: []entity.RetrievedDocument{
			{Content: "a", Filename: "report.pdf", DocumentID: "doc-1"},
			{Content: "b", DocumentID: "doc-2"},
			{Content: "c"},
		},
	}
	r := NewRetriever(&fakeEmbedder{}, searcher, &fakeRAGSettings{})

	fragments, err := r.Retrieve(context.Background(), "docs", "query")
	require.NoError(t, err)
	require.Len(t, fragments, 3)
	assert.Equal(t, "report.pdf", fragments[0].SourceLabel)
	assert.Equal(t, "doc-2", fragments[1].SourceLabel)
	assert.Equal(t, genericSourceLabel, fragments[2].SourceLabel)
}

func TestRetrieve_SearchErrorPropagates(t *testing.T) {
	searcher := &fakeSearcher{exists: true, searchErr: errors.New("grpc unavailable")}
	r := NewRetriever(&fakeEmbedder{}, searcher, &fakeRAGSettings{})

	_, err := r.Retrieve(context.Background(), "docs", "query")
	assert.Error(t, err)
}

func TestRewrite_NoHistoryPassesThrough(t *testing.T) {
	llm := &fakeCompleter{response: "should not be used"}
	c := NewContextualizer(llm)

	got := c.Rewrite(context.Background(), nil, "what is the refund policy?")
	assert.Equal(t, "what is the refund policy?", got)
	assert.Zero(t, llm.calls)
}

func TestRewrite_UsesModelWithReasoningDisabled(t *testing.T) {
	llm := &fakeCompleter{response: "what is the refund policy for annual plans?"}
	c := NewContextualizer(llm)

	history := []entity.ChatMessage{
		{Role: entity.MessageRoleUser, Content: "tell me about annual plans"},
		{Role: entity.MessageRoleAssistant, Content: "annual plans cost..."},
	}

	got := c.Rewrite(context.Background(), history, "and refunds?")
	assert.Equal(t, "what is the refund policy for annual plans?", got)
	assert.True(t, llm.lastOpts.DisableReasoning)
}

func TestRewrite_FailureFallsBackToOriginal(t *testing.T) {
	c := NewContextualizer(&fakeCompleter{err: errors.New("model down")})

	history := []entity.ChatMessage{{Role: entity.MessageRoleUser, Content: "hi"}}
	got := c.Rewrite(context.Background(), history, "and refunds?")
	assert.Equal(t, "and refunds?", got)
}

func TestRewrite_EmptyResponseFallsBackToOriginal(t *testing.T) {
	c := NewContextualizer(&fakeCompleter{response: "  \n"})

	history := []entity.ChatMessage{{Role: entity.MessageRoleUser, Content: "hi"}}
	got := c.Rewrite(context.Background(), history, "and refunds?")
	assert.Equal(t, "and refunds?", got)
}

func TestClassify_SymmetricAdminPrefixMatching(t *testing.T) {
	s := NewPromptSelector(&fakeRAGSettings{predefined: "policies"})

	tests := []struct {
		name       string
		collection string
		want       PromptKind
	}{
		{"unprefixed matches", "policies", PromptGlobalRAG},
		{"prefixed matches", "admin_policies", PromptGlobalRAG},
		{"conversation collection is user kind", "conversation_abc123", PromptUserRAG},
		{"no collection is regular", "", PromptRegular},
		{"unrelated collection is user kind", "my_docs", PromptUserRAG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Classify(context.Background(), tt.collection)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_PrefixedPredefinedName(t *testing.T) {
	// Admins sometimes store the predefined name already prefixed.
	s := NewPromptSelector(&fakeRAGSettings{predefined: "admin_policies"})

	got, err := s.Classify(context.Background(), "policies")
	require.NoError(t, err)
	assert.Equal(t, PromptGlobalRAG, got)
}

func TestSelect_ConfiguredOverrideWins(t *testing.T) {
	s := NewPromptSelector(&fakeRAGSettings{
		predefined: "policies",
		templates:  map[string]string{"global_rag": "custom: {context}"},
	})

	got, err := s.Select(context.Background(), "policies")
	require.NoError(t, err)
	assert.Equal(t, "custom: {context}", got)
}

func TestSelect_FallbackTemplates(t *testing.T) {
	s := NewPromptSelector(&fakeRAGSettings{})

	got, err := s.Select(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, defaultRegularPrompt, got)

	got, err = s.Select(context.Background(), "conversation_abc")
	require.NoError(t, err)
	assert.Equal(t, defaultUserRAGPrompt, got)
}

func TestInjectContext(t *testing.T) {
	assert.Equal(t, "before CTX after", InjectContext("before {context} after", "CTX"))
	assert.Equal(t, "no placeholder\n\nContext:\nCTX", InjectContext("no placeholder", "CTX"))
}

func TestFormatFragments(t *testing.T) {
	got := FormatFragments([]entity.Fragment{
		{Text: "first", SourceLabel: "a.pdf"},
		{Text: "second", SourceLabel: "b.pdf"},
	})
	assert.Equal(t, "[a.pdf]\nfirst\n\n[b.pdf]\nsecond", got)
}
