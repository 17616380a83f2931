package plugin

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NoteKind identifies where a CapacityResult came from. The set is closed:
// callers can switch over it exhaustively.
type NoteKind int

const (
	NoteNoData NoteKind = iota
	NoteHTTPStatus
	NoteFetchError
	NoteRegistrationNotOpen
	NoteMetrixMentionsTjing
	NoteNotTjingURL

	NoteMetrixHeader
	NoteMetrixHeaderNoLimit
	NoteMetrixLabelled
	NoteMetrixTable
	NoteMetrixGeneric
	NoteMetrixEmbedded

	NoteTjingJSON
	NoteTjingLabelled
	NoteTjingText
	NoteTjingEmbedded
	NoteTjingRemainingText
	NoteTjingDataAttr

	NoteRenderState
	NoteRenderText
	NoteRenderTable
)

var noteNames = map[NoteKind]string{
	NoteNoData:              "no-data",
	NoteRegistrationNotOpen: "registration-not-open",
	NoteMetrixMentionsTjing: "platform-a-mentions-b",
	NoteNotTjingURL:         "not-tjing-url",
	NoteMetrixHeader:        "platform-a-header",
	NoteMetrixHeaderNoLimit: "platform-a-header-no-limit",
	NoteMetrixLabelled:      "platform-a-labelled",
	NoteMetrixTable:         "platform-a-table",
	NoteMetrixGeneric:       "platform-a-generic",
	NoteMetrixEmbedded:      "platform-a-embedded",
	NoteTjingJSON:           "platform-b-json",
	NoteTjingLabelled:       "platform-b-labelled",
	NoteTjingText:           "platform-b-text",
	NoteTjingEmbedded:       "platform-b-embedded",
	NoteTjingRemainingText:  "platform-b-remaining-text",
	NoteTjingDataAttr:       "platform-b-data-attr",
	NoteRenderState:         "render-state",
	NoteRenderText:          "render-text",
	NoteRenderTable:         "render-table",
}

const waitlistSuffix = "-waitlist"

// Note is the provenance tag attached to every CapacityResult.
type Note struct {
	Kind NoteKind
	// Status is set for NoteHTTPStatus.
	Status int
	// Err is set for NoteFetchError.
	Err string
	// Waitlist is set by the sanitizer when the event is over capacity.
	Waitlist bool
}

// NoteOf returns a plain note of the given kind.
func NoteOf(kind NoteKind) Note { return Note{Kind: kind} }

// HTTPStatusNote returns the note for a non-2xx response.
func HTTPStatusNote(status int) Note { return Note{Kind: NoteHTTPStatus, Status: status} }

// FetchErrorNote returns the note for a transport failure.
func FetchErrorNote(err error) Note { return Note{Kind: NoteFetchError, Err: err.Error()} }

// IsTjing reports whether the note was produced by the Tjing chain.
func (n Note) IsTjing() bool {
	return n.Kind >= NoteTjingJSON && n.Kind <= NoteTjingDataAttr
}

// IsFailure reports whether the note describes a fetch failure or a page
// nothing could be read from.
func (n Note) IsFailure() bool {
	switch n.Kind {
	case NoteNoData, NoteHTTPStatus, NoteFetchError, NoteNotTjingURL, NoteMetrixMentionsTjing:
		return true
	}
	return false
}

func (n Note) String() string {
	var s string
	switch n.Kind {
	case NoteHTTPStatus:
		s = "http " + strconv.Itoa(n.Status)
	case NoteFetchError:
		s = n.Err
	default:
		name, ok := noteNames[n.Kind]
		if !ok {
			name = fmt.Sprintf("note(%d)", int(n.Kind))
		}
		s = name
	}
	if n.Waitlist {
		s += waitlistSuffix
	}
	return s
}

// ParseNote is the inverse of String. Unknown strings are treated as fetch errors.
func ParseNote(s string) Note {
	var n Note
	if strings.HasSuffix(s, waitlistSuffix) {
		n.Waitlist = true
		s = strings.TrimSuffix(s, waitlistSuffix)
	}
	if rest, ok := strings.CutPrefix(s, "http "); ok {
		if code, err := strconv.Atoi(rest); err == nil {
			n.Kind = NoteHTTPStatus
			n.Status = code
			return n
		}
	}
	for kind, name := range noteNames {
		if name == s {
			n.Kind = kind
			return n
		}
	}
	n.Kind = NoteFetchError
	n.Err = s
	return n
}

func (n Note) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

func (n *Note) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*n = ParseNote(s)
	return nil
}
