package recall

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/turn"
)

// #region mock

// mockEmbedder returns pre-configured embeddings keyed by input text.
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (m *mockEmbedder) Embed(_ context.Context, purpose string, inputs []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if purpose != EmbedPurpose {
		return nil, errors.New("unexpected purpose " + purpose)
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		v, ok := m.vectors[in]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

// #endregion mock

func user(text string) turn.Message { return turn.Message{Role: turn.RoleUser, Text: text} }

func TestIsRecallQuestion(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"さっき話した仕事のこと、なんだっけ", true},
		{"What did I say about my boss earlier?", true},
		{"以前の計画どうだった？", true},
		{"私は誰？前に聞いたけど", false},
		{"Who am I, really? I asked before", false},
		{"前世のことを考える", false},
		{"今日はいい天気", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRecallQuestion(tt.text), tt.text)
	}
}

func TestKeywords(t *testing.T) {
	kws := Keywords("さっき話した仕事と上司のこと、なんだっけ", 4)
	assert.Equal(t, []string{"仕事", "上司"}, kws[:2])
	assert.LessOrEqual(t, len(kws), 4)
	for _, k := range kws {
		assert.NotContains(t, k, "さっき")
	}

	en := Keywords("What did I say earlier about Tokyo and tokyo trip?", 4)
	assert.Equal(t, []string{"tokyo", "trip"}, en)

	assert.Len(t, Keywords("仕事 家族 夢 目標 計画 転職", 4), 4)

	assert.NotContains(t, Keywords("what did i say earlier about the network", 4), "work",
		"curated terms match whole words only")
}

func TestRecallKeywordHit(t *testing.T) {
	g := NewGate(nil, DefaultConfig())
	history := []turn.Message{
		user("上司とまた揉めてしまった"),
		{Role: turn.RoleAssistant, Text: "それは大変だったね"},
		user("週末は海に行きたいな"),
	}
	res := g.Recall(context.Background(), "さっきの上司の話なんだっけ", "", history)
	require.True(t, res.Triggered)
	require.True(t, res.Found)
	assert.Equal(t, ViaKeyword, res.Via)
	assert.Equal(t, "上司とまた揉めてしまった", res.Line)
}

func TestRecallFallbackToMostRecent(t *testing.T) {
	g := NewGate(nil, DefaultConfig())
	history := []turn.Message{
		user("週末は海に行きたいな"),
		user("晩ごはんはカレーにした"),
		user("うん"),
	}
	res := g.Recall(context.Background(), "さっき何て言ったっけ", "", history)
	require.True(t, res.Found)
	assert.Equal(t, ViaFallback, res.Via)
	assert.Equal(t, "晩ごはんはカレーにした", res.Line, "short lines never qualify")
}

func TestRecallNeverReturnsCurrentText(t *testing.T) {
	g := NewGate(nil, DefaultConfig())
	cur := "さっきの仕事の話なんだっけ"
	history := []turn.Message{
		user(cur),
		{Role: turn.RoleUser, Text: cur, TurnID: "t-now"},
	}
	res := g.Recall(context.Background(), cur, "t-now", history)
	assert.True(t, res.Triggered)
	assert.False(t, res.Found)
	assert.NotEqual(t, cur, res.Line)
}

func TestRecallSkipsEarlierAnswersAndQuestions(t *testing.T) {
	g := NewGate(nil, DefaultConfig())
	history := []turn.Message{
		user("転職を考えている"),
		user("たぶんこれ: 転職の話"),
		user("以前の転職の話、なんだっけ"),
	}
	res := g.Recall(context.Background(), "さっきの転職のこと覚えてる？", "", history)
	require.True(t, res.Found)
	assert.Equal(t, "転職を考えている", res.Line)
}

func TestRecallNotTriggered(t *testing.T) {
	g := NewGate(nil, DefaultConfig())
	res := g.Recall(context.Background(), "今日はいい天気", "", []turn.Message{user("昨日は雨だった")})
	assert.False(t, res.Triggered)
	assert.False(t, res.Found)
}

func TestRecallEmbeddingRerank(t *testing.T) {
	q := "what did i say earlier?"
	emb := &mockEmbedder{vectors: map[string][]float32{
		q:                              {1, 0, 0},
		"the lake house was beautiful": {0.95, 0.05, 0},
		"dinner was pasta tonight":     {0, 1, 0},
	}}
	g := NewGate(emb, DefaultConfig())
	history := []turn.Message{user("the lake house was beautiful"), user("dinner was pasta tonight")}

	res := g.Recall(context.Background(), q, "", history)
	require.True(t, res.Found)
	assert.Equal(t, ViaEmbedding, res.Via)
	assert.Equal(t, "the lake house was beautiful", res.Line)
}

func TestRecallEmbeddingErrorStaysLexical(t *testing.T) {
	g := NewGate(&mockEmbedder{err: errors.New("down")}, DefaultConfig())
	history := []turn.Message{user("the lake house was beautiful"), user("dinner was pasta tonight")}
	res := g.Recall(context.Background(), "what did i say earlier?", "", history)
	require.True(t, res.Found)
	assert.Equal(t, ViaFallback, res.Via)
	assert.Equal(t, "dinner was pasta tonight", res.Line)
}

func TestTokenize(t *testing.T) {
	got := tokenize("東京タワーに行った the big trip")
	assert.Equal(t, []string{"東京", "タワー", "big", "trip"}, got)
}

func TestCosine(t *testing.T) {
	assert.Zero(t, cosine([]float32{0, 0}, []float32{0, 0}))
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine(nil, nil))
	assert.InDelta(t, 1, float64(cosine([]float32{1, 2, 3}, []float32{1, 2, 3})), 1e-6)
	assert.InDelta(t, 0, float64(cosine([]float32{1, 0}, []float32{0, 1})), 1e-6)
	assert.False(t, math.IsNaN(float64(cosine([]float32{1, 1}, []float32{-1, -1}))))
}
