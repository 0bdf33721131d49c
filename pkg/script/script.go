// Package script parses streamed reply text that interleaves speakable
// sentences with sound cues.
//
// A cue is a JSON object on its own line, e.g.
//
//	{"cue":"chime","vol":0.8}
//
// Replies arrive in arbitrary stream fragments, so the parser buffers
// until a newline completes each line. Cue lines that were split across
// fragments, or cut off at end of stream, are run through jsonrepair
// before field extraction; anything that still fails to yield a cue is
// surfaced as plain text, so no part of the reply is ever dropped.
package script

import (
	"encoding/json"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/kaptinlin/jsonrepair"
)

// EventKind discriminates parsed reply pieces.
type EventKind int

const (
	KindText EventKind = iota + 1
	KindCue
)

// Event is one parsed piece of a reply, in reply order.
type Event struct {
	Kind EventKind
	Text string // speakable text, KindText only
	Cue  *Cue   // sound cue, KindCue only
}

// Cue names a sound asset and its playback volume in [0,1].
type Cue struct {
	Name   string
	Volume float64
}

// cueQuery pulls the asset name and volume out of a cue object,
// accepting the key aliases producers actually emit.
var cueQuery = mustParseQuery(`[.cue // .name // "", .vol // .volume // 1]`)

func mustParseQuery(expr string) *gojq.Query {
	q, err := gojq.Parse(expr)
	if err != nil {
		panic("script: parse cue query: " + err.Error())
	}
	return q
}

// Parser splits a streamed reply into text and cue events. Feed may be
// called with any fragmentation; events are returned once their line is
// complete. Not safe for concurrent use.
type Parser struct {
	pending strings.Builder
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed appends a reply fragment and returns the events completed by it.
func (p *Parser) Feed(text string) []Event {
	var events []Event
	for {
		nl := strings.IndexByte(text, '\n')
		if nl < 0 {
			p.pending.WriteString(text)
			return events
		}
		p.pending.WriteString(text[:nl])
		line := p.pending.String()
		p.pending.Reset()
		text = text[nl+1:]
		if ev, ok := parseLine(line); ok {
			events = append(events, ev)
		}
	}
}

// Flush finishes the reply, returning the event for a trailing
// unterminated line, if any.
func (p *Parser) Flush() []Event {
	line := p.pending.String()
	p.pending.Reset()
	if ev, ok := parseLine(line); ok {
		return []Event{ev}
	}
	return nil
}

func parseLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}
	if strings.HasPrefix(trimmed, "{") {
		if cue, ok := parseCue(trimmed); ok {
			return Event{Kind: KindCue, Cue: cue}, true
		}
	}
	return Event{Kind: KindText, Text: line}, true
}

func parseCue(line string) (*Cue, bool) {
	var obj any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		if _, ok := err.(*json.SyntaxError); !ok {
			return nil, false
		}
		fixed, err := jsonrepair.JSONRepair(line)
		if err != nil {
			return nil, false
		}
		if err := json.Unmarshal([]byte(fixed), &obj); err != nil {
			return nil, false
		}
	}
	if _, ok := obj.(map[string]any); !ok {
		return nil, false
	}

	iter := cueQuery.Run(obj)
	v, ok := iter.Next()
	if !ok {
		return nil, false
	}
	if _, isErr := v.(error); isErr {
		return nil, false
	}
	fields, ok := v.([]any)
	if !ok || len(fields) != 2 {
		return nil, false
	}
	name, _ := fields[0].(string)
	if name == "" {
		return nil, false
	}
	return &Cue{Name: name, Volume: clampVolume(toFloat(fields[1]))}, true
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 1
	}
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
