package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	calls  int
	cancel context.CancelFunc
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Recognize(_ context.Context, in Input) (Result, error) {
	s.calls++
	if s.cancel != nil {
		s.cancel()
	}
	return Result{InputID: in.ID, PlainText: "text " + in.ID}, nil
}

type stubBatch struct {
	stubEngine
	batches int
}

func (s *stubBatch) RecognizeBatch(_ context.Context, inputs []Input) ([]Result, error) {
	s.batches++
	out := make([]Result, len(inputs))
	for i, in := range inputs {
		out[i] = Result{InputID: in.ID}
	}
	return out, nil
}

func TestRegistry(t *testing.T) {
	Register("stub", func(cfg Config) (Provider, error) {
		assert.Equal(t, []string{"eng"}, cfg.Languages)
		return &stubEngine{}, nil
	})
	p, err := Lookup("stub", Config{Languages: []string{"eng"}})
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())
	assert.Contains(t, Names(), "stub")

	_, err = Lookup("missing", Config{})
	assert.True(t, errors.Is(err, ErrUnknownEngine))

	Register("broken", func(Config) (Provider, error) { return nil, errors.New("no binary") })
	_, err = Lookup("broken", Config{})
	assert.ErrorContains(t, err, "no binary")
}

func TestRecognizeImagesSequential(t *testing.T) {
	e := &stubEngine{}
	res, err := RecognizeImages(context.Background(), e, []Input{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "text b", res[1].PlainText)
	assert.Equal(t, 2, e.calls)
}

func TestRecognizeImagesUsesBatch(t *testing.T) {
	e := &stubBatch{}
	res, err := RecognizeImages(context.Background(), e, []Input{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.Equal(t, 1, e.batches)
	assert.Zero(t, e.calls)
}

func TestRecognizeImagesStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := &stubEngine{cancel: cancel}
	_, err := RecognizeImages(ctx, e, []Input{{ID: "a"}, {ID: "b"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, e.calls)
}

func TestResultWords(t *testing.T) {
	r := Result{Blocks: []TextBlock{
		{Lines: []TextLine{{Words: []TextWord{{Text: "a"}}}, {Words: []TextWord{{Text: "b"}}}}},
		{Lines: []TextLine{{Words: []TextWord{{Text: "c"}}}}},
	}}
	var got []string
	for _, w := range r.Words() {
		got = append(got, w.Text)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
