package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/JakeFAU/eu-innovation-monitor/internal/summarize"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{resp: textResponse("Gemini summary")}
	g := newGenerator(fake, Config{Temperature: 0.3, MaxTokens: 1100})

	out, err := g.Generate(context.Background(), summarize.Prompt{System: "sys", User: "usr"})
	require.NoError(t, err)
	assert.Equal(t, "Gemini summary", out)

	assert.Equal(t, DefaultModel, fake.model)
	require.Len(t, fake.contents, 1)
	require.Len(t, fake.contents[0].Parts, 1)
	assert.Equal(t, "usr", fake.contents[0].Parts[0].Text)
	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "sys", fake.config.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(1100), fake.config.MaxOutputTokens)
	require.NotNil(t, fake.config.Temperature)
	assert.InDelta(t, 0.3, *fake.config.Temperature, 1e-6)
}

func TestGenerateFailures(t *testing.T) {
	t.Parallel()

	_, err := newGenerator(&fakeModels{err: errors.New("quota")}, Config{}).Generate(context.Background(), summarize.Prompt{User: "u"})
	require.Error(t, err)

	_, err = newGenerator(&fakeModels{resp: textResponse("  ")}, Config{}).Generate(context.Background(), summarize.Prompt{User: "u"})
	assert.ErrorIs(t, err, summarize.ErrEmptyResponse)

	_, err = newGenerator(&fakeModels{}, Config{}).Generate(context.Background(), summarize.Prompt{User: "u"})
	assert.ErrorIs(t, err, summarize.ErrEmptyResponse)
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
