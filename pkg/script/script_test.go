package script

import (
	"testing"
)

func TestFeedPlainText(t *testing.T) {
	p := NewParser()

	events := p.Feed("Hello there.\nNice to meet you.\n")
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for i, want := range []string{"Hello there.", "Nice to meet you."} {
		if events[i].Kind != KindText {
			t.Fatalf("event %d kind = %v, want KindText", i, events[i].Kind)
		}
		if events[i].Text != want {
			t.Fatalf("event %d text = %q, want %q", i, events[i].Text, want)
		}
	}
}

func TestFeedCueLine(t *testing.T) {
	p := NewParser()

	events := p.Feed("{\"cue\":\"chime\",\"vol\":0.8}\n")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != KindCue {
		t.Fatalf("kind = %v, want KindCue", ev.Kind)
	}
	if ev.Cue.Name != "chime" {
		t.Fatalf("cue name = %q, want %q", ev.Cue.Name, "chime")
	}
	if ev.Cue.Volume != 0.8 {
		t.Fatalf("cue volume = %v, want 0.8", ev.Cue.Volume)
	}
}

func TestFeedSplitAcrossFragments(t *testing.T) {
	p := NewParser()

	if events := p.Feed("{\"cue\":\"chi"); len(events) != 0 {
		t.Fatalf("got %d events before line complete, want 0", len(events))
	}
	events := p.Feed("me\"}\n")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != KindCue || events[0].Cue.Name != "chime" {
		t.Fatalf("got %+v, want chime cue", events[0])
	}
	if events[0].Cue.Volume != 1 {
		t.Fatalf("cue volume = %v, want default 1", events[0].Cue.Volume)
	}
}

func TestFeedInterleaved(t *testing.T) {
	p := NewParser()

	events := p.Feed("Listen to this!\n{\"cue\":\"drum\"}\nWasn't that fun?\n")
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	kinds := []EventKind{KindText, KindCue, KindText}
	for i, want := range kinds {
		if events[i].Kind != want {
			t.Fatalf("event %d kind = %v, want %v", i, events[i].Kind, want)
		}
	}
	if events[1].Cue.Name != "drum" {
		t.Fatalf("cue name = %q, want %q", events[1].Cue.Name, "drum")
	}
}

func TestFeedSkipsBlankLines(t *testing.T) {
	p := NewParser()

	events := p.Feed("One.\n\n  \nTwo.\n")
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
}

func TestFeedTrimsCarriageReturn(t *testing.T) {
	p := NewParser()

	events := p.Feed("Hello.\r\n{\"cue\":\"pop\"}\r\n")
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Text != "Hello." {
		t.Fatalf("text = %q, want %q", events[0].Text, "Hello.")
	}
	if events[1].Kind != KindCue || events[1].Cue.Name != "pop" {
		t.Fatalf("got %+v, want pop cue", events[1])
	}
}

func TestMalformedCueDegradesToText(t *testing.T) {
	p := NewParser()

	// No name field survives extraction, so the line must come back
	// verbatim as text rather than vanish.
	line := "{\"volume\":0.5}"
	events := p.Feed(line + "\n")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != KindText {
		t.Fatalf("kind = %v, want KindText", events[0].Kind)
	}
	if events[0].Text != line {
		t.Fatalf("text = %q, want %q", events[0].Text, line)
	}
}

func TestNonObjectJSONIsText(t *testing.T) {
	p := NewParser()

	events := p.Feed("[1,2,3]\n")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != KindText || events[0].Text != "[1,2,3]" {
		t.Fatalf("got %+v, want text event", events[0])
	}
}

func TestFlushPartialCue(t *testing.T) {
	p := NewParser()

	if events := p.Feed("{\"cue\":\"drum\",\"vol\":0.5"); len(events) != 0 {
		t.Fatalf("got %d events before flush, want 0", len(events))
	}
	events := p.Flush()
	if len(events) != 1 {
		t.Fatalf("flush got %d events, want 1", len(events))
	}
	if events[0].Kind != KindCue {
		t.Fatalf("kind = %v, want KindCue", events[0].Kind)
	}
	if events[0].Cue.Name != "drum" || events[0].Cue.Volume != 0.5 {
		t.Fatalf("got cue %+v, want drum at 0.5", events[0].Cue)
	}
}

func TestFlushPartialText(t *testing.T) {
	p := NewParser()

	p.Feed("and that is all")
	events := p.Flush()
	if len(events) != 1 {
		t.Fatalf("flush got %d events, want 1", len(events))
	}
	if events[0].Kind != KindText || events[0].Text != "and that is all" {
		t.Fatalf("got %+v, want trailing text", events[0])
	}
	if again := p.Flush(); len(again) != 0 {
		t.Fatalf("second flush got %d events, want 0", len(again))
	}
}

func TestCueFieldAliases(t *testing.T) {
	tests := []struct {
		name string
		line string
		cue  string
		vol  float64
	}{
		{"name key", "{\"name\":\"bell\"}", "bell", 1},
		{"volume key", "{\"cue\":\"bell\",\"volume\":0.3}", "bell", 0.3},
		{"clamped high", "{\"cue\":\"bell\",\"vol\":2.5}", "bell", 1},
		{"clamped low", "{\"cue\":\"bell\",\"vol\":-1}", "bell", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := NewParser().Feed(tt.line + "\n")
			if len(events) != 1 || events[0].Kind != KindCue {
				t.Fatalf("got %+v, want one cue event", events)
			}
			if events[0].Cue.Name != tt.cue {
				t.Fatalf("cue name = %q, want %q", events[0].Cue.Name, tt.cue)
			}
			if events[0].Cue.Volume != tt.vol {
				t.Fatalf("cue volume = %v, want %v", events[0].Cue.Volume, tt.vol)
			}
		})
	}
}

func TestFeedByteAtATime(t *testing.T) {
	p := NewParser()

	reply := "Welcome back!\n{\"cue\":\"chime\",\"vol\":0.8}\nReady?\n"
	var events []Event
	for _, r := range reply {
		events = append(events, p.Feed(string(r))...)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[1].Kind != KindCue || events[1].Cue.Name != "chime" {
		t.Fatalf("middle event = %+v, want chime cue", events[1])
	}
}
