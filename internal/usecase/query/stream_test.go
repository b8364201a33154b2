package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexgate/internal/resilience/errdefs"
)

func TestRouteStreamDeliversChunks(t *testing.T) {
	docs := &fakeDocs{passages: docPassages()}
	cases := &fakeCases{records: caseRecords()}
	gen := &fakeGen{chunks: []StreamChunk{
		{Text: "Termination "},
		{Text: "is "},
		{Text: "lawful."},
	}}
	svc := newTestService(t, docs, cases, gen)

	result, err := svc.RouteStream(context.Background(), Request{Text: "court ruling on lease agreement termination"})
	require.NoError(t, err)
	defer result.Cancel()

	var b strings.Builder
	for chunk := range result.Chunks {
		require.NoError(t, chunk.Err)
		b.WriteString(chunk.Text)
	}

	assert.Equal(t, "Termination is lawful.", b.String())
	assert.Equal(t, []Source{SourceRetrieval, SourceCaseLaw}, result.Sources)
	assert.Equal(t, "fake", result.Provider)
	assert.Empty(t, result.Omitted)
}

func TestRouteStreamEmptyQuery(t *testing.T) {
	svc := newTestService(t, &fakeDocs{}, &fakeCases{}, &fakeGen{})

	_, err := svc.RouteStream(context.Background(), Request{Text: ""})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestRouteStreamSetupFailurePropagates(t *testing.T) {
	docs := &fakeDocs{passages: docPassages()}
	cases := &fakeCases{records: caseRecords()}
	gen := &fakeGen{streamErr: errors.New("provider rejected stream")}
	svc := newTestService(t, docs, cases, gen)

	_, err := svc.RouteStream(context.Background(), Request{Text: "court ruling on lease agreement termination"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation failed")
}

func TestRouteStreamNotCached(t *testing.T) {
	docs := &fakeDocs{passages: docPassages()}
	cases := &fakeCases{records: caseRecords()}
	gen := &fakeGen{chunks: []StreamChunk{{Text: "answer"}}}
	svc := newTestService(t, docs, cases, gen)

	req := Request{Text: "court ruling on lease agreement termination"}
	for i := 0; i < 2; i++ {
		result, err := svc.RouteStream(context.Background(), req)
		require.NoError(t, err)
		for range result.Chunks {
		}
		result.Cancel()
	}

	assert.EqualValues(t, 2, gen.streamCalls.Load(), "streamed answers must not be cached")
}

func TestRouteStreamReportsOmissions(t *testing.T) {
	docs := &fakeDocs{err: errdefs.ErrTransient}
	cases := &fakeCases{records: caseRecords()}
	gen := &fakeGen{chunks: []StreamChunk{{Text: "answer"}}}
	svc := newTestService(t, docs, cases, gen)

	result, err := svc.RouteStream(context.Background(), Request{Text: "court ruling on lease agreement termination"})
	require.NoError(t, err)
	defer result.Cancel()

	assert.Equal(t, []Source{SourceCaseLaw}, result.Sources)
	require.Len(t, result.Omitted, 1)
	assert.Equal(t, SourceRetrieval, result.Omitted[0].Source)
}

func TestRouteStreamMidStreamError(t *testing.T) {
	docs := &fakeDocs{passages: docPassages()}
	cases := &fakeCases{records: caseRecords()}
	gen := &fakeGen{chunks: []StreamChunk{
		{Text: "partial "},
		{Err: errors.New("stream interrupted")},
	}}
	svc := newTestService(t, docs, cases, gen)

	result, err := svc.RouteStream(context.Background(), Request{Text: "court ruling on lease agreement termination"})
	require.NoError(t, err)
	defer result.Cancel()

	var text string
	var streamErr error
	for chunk := range result.Chunks {
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		text += chunk.Text
	}

	assert.Equal(t, "partial ", text)
	require.Error(t, streamErr)
}
