package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func TestRecommendBlankNeedsSkipsGenerator(t *testing.T) {
	gen := &mockGenerator{}
	svc := Service{Generator: gen}
	for _, needs := range []string{"", "   \n"} {
		_, err := svc.Recommend(context.Background(), needs)
		var recErr *Error
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, "Design needs cannot be empty.", recErr.Message)
		assert.True(t, recErr.Empty())
	}
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRecommendRendersPrompt(t *testing.T) {
	gen := &mockGenerator{}
	want, err := Prompt("VFD panel layout for a water plant")
	require.NoError(t, err)
	gen.On("Generate", mock.Anything, want).Return("Take the Panel Design Masterclass.", nil).Once()

	rec, err := Service{Generator: gen}.Recommend(context.Background(), "  VFD panel layout for a water plant ")
	require.NoError(t, err)
	assert.Equal(t, "Take the Panel Design Masterclass.", rec.Recommendation)
	gen.AssertExpectations(t)
}

func TestPromptText(t *testing.T) {
	p, err := Prompt("motor control centres")
	require.NoError(t, err)
	assert.Equal(t, "You are an expert in electrical design training programs and resources.\n\n"+
		"Based on the user's design needs, provide relevant training program or resource recommendations.\n\n"+
		"Design Needs: motor control centres", p)
}

func TestRecommendUpstreamFailureIsGeneric(t *testing.T) {
	gen := &mockGenerator{}
	cause := errors.New("quota exceeded for key abc123")
	gen.On("Generate", mock.Anything, mock.Anything).Return("", cause).Once()

	_, err := Service{Generator: gen}.Recommend(context.Background(), "switchgear")
	var recErr *Error
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "Failed to get recommendation. Please try again later.", recErr.Message)
	assert.NotContains(t, recErr.Message, "abc123")
	assert.ErrorIs(t, err, cause)
	assert.False(t, recErr.Empty())
}

func TestRecommendEmptyOutputIsFailure(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("  ", nil).Once()
	_, err := Service{Generator: gen}.Recommend(context.Background(), "switchgear")
	var recErr *Error
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, MessageFailed, recErr.Message)
}

func TestRecommendWithoutGenerator(t *testing.T) {
	_, err := Service{}.Recommend(context.Background(), "switchgear")
	require.ErrorIs(t, err, ErrNoGenerator)
}

func TestDecodeRecommendation(t *testing.T) {
	assert.Equal(t, "Use E-CAD Essentials.", decodeRecommendation(`{"recommendation":"Use E-CAD Essentials."}`))
	assert.Equal(t, "plain answer", decodeRecommendation("plain answer"))
	assert.Equal(t, `{"other":1}`, decodeRecommendation(`{"other":1}`))
}
