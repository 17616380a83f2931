package plugin

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteStrings(t *testing.T) {
	for kind, name := range noteNames {
		n := NoteOf(kind)
		assert.Equal(t, name, n.String())
		assert.Equal(t, n, ParseNote(name))

		n.Waitlist = true
		assert.Equal(t, name+"-waitlist", n.String())
		assert.Equal(t, n, ParseNote(name+"-waitlist"))
	}
}

func TestNoteHTTPAndFetchError(t *testing.T) {
	n := HTTPStatusNote(503)
	assert.Equal(t, "http 503", n.String())
	assert.Equal(t, n, ParseNote("http 503"))
	assert.True(t, n.IsFailure())

	e := FetchErrorNote(errors.New("context deadline exceeded"))
	assert.Equal(t, "context deadline exceeded", e.String())
	assert.Equal(t, e, ParseNote("context deadline exceeded"))
	assert.True(t, e.IsFailure())
}

func TestNoteClassification(t *testing.T) {
	assert.True(t, NoteOf(NoteTjingJSON).IsTjing())
	assert.True(t, NoteOf(NoteTjingDataAttr).IsTjing())
	assert.False(t, NoteOf(NoteMetrixHeader).IsTjing())
	assert.False(t, NoteOf(NoteRenderState).IsTjing())

	assert.True(t, NoteOf(NoteMetrixMentionsTjing).IsFailure())
	assert.False(t, NoteOf(NoteRegistrationNotOpen).IsFailure())
}

func TestCounts(t *testing.T) {
	r := Counts(24, 30, NoteOf(NoteMetrixHeader))
	assert.Equal(t, 6, *r.Remaining)
	assert.True(t, r.HasData())

	r = Counts(-1, 30, NoteOf(NoteMetrixHeader))
	assert.Nil(t, r.Registered)
	assert.Nil(t, r.Remaining)
	assert.Equal(t, 30, *r.Limit)

	assert.False(t, Empty(NoteOf(NoteNoData)).HasData())
	assert.True(t, CapacityResult{Start: "2099-12-31T00:00:00"}.HasData())
}

func TestCapacityResultJSON(t *testing.T) {
	b, err := json.Marshal(Counts(24, 30, NoteOf(NoteMetrixHeader)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"registered":24,"limit":30,"remaining":6,"note":"platform-a-header"}`, string(b))

	b, err = json.Marshal(Empty(HTTPStatusNote(404)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"registered":null,"limit":null,"remaining":null,"note":"http 404"}`, string(b))

	var back CapacityResult
	require.NoError(t, json.Unmarshal([]byte(`{"registered":30,"limit":24,"remaining":0,"queued":6,"note":"platform-b-json-waitlist"}`), &back))
	assert.Equal(t, 6, *back.Queued)
	assert.Equal(t, Note{Kind: NoteTjingJSON, Waitlist: true}, back.Note)
}
