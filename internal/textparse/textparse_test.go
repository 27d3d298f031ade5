package textparse

import (
	"reflect"
	"testing"
)

var researchLabels = []string{"FACTS", "IMAGE_PROMPT"}

func TestSections_BothPresent(t *testing.T) {
	text := "preamble to ignore\n" +
		"FACTS:\n- one\n- two\n\n" +
		"IMAGE_PROMPT: a lighthouse at dusk\nwith heavy fog"

	got := Sections(text, researchLabels)

	if got["FACTS"] != "- one\n- two" {
		t.Errorf("FACTS section = %q", got["FACTS"])
	}
	if got["IMAGE_PROMPT"] != "a lighthouse at dusk\nwith heavy fog" {
		t.Errorf("IMAGE_PROMPT section = %q", got["IMAGE_PROMPT"])
	}
}

func TestSections_MissingLabelYieldsAbsent(t *testing.T) {
	got := Sections("IMAGE_PROMPT: just a prompt", researchLabels)

	if _, ok := got["FACTS"]; ok {
		t.Error("FACTS should be absent when label not found")
	}
	if got["IMAGE_PROMPT"] != "just a prompt" {
		t.Errorf("IMAGE_PROMPT = %q", got["IMAGE_PROMPT"])
	}
}

func TestSections_CaseInsensitiveLabel(t *testing.T) {
	got := Sections("facts:\n- solo", researchLabels)
	if got["FACTS"] != "- solo" {
		t.Errorf("lowercase label not matched, got %q", got["FACTS"])
	}
}

func TestSections_NeverPanicsOnGarbage(t *testing.T) {
	for _, text := range []string{"", "\n\n\n", ":::", "FACTS", "random prose with no labels at all"} {
		got := Sections(text, researchLabels)
		if len(got["FACTS"]) != 0 && text != "FACTS" {
			t.Errorf("unexpected FACTS for %q: %q", text, got["FACTS"])
		}
	}
}

func TestItems_CapBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		section string
		want    int
	}{
		{"exactly three", "- a\n- b\n- c", 3},
		{"two", "- a\n- b", 2},
		{"five capped to three", "- a\n- b\n- c\n- d\n- e", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Items(tc.section, 3)
			if len(got) != tc.want {
				t.Fatalf("got %d items, want %d", len(got), tc.want)
			}
		})
	}
}

func TestItems_OriginalOrderAndMarkers(t *testing.T) {
	section := "1. first\n\n* second\n• third\n4) fourth"
	got := Items(section, 3)
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestItems_EmptySection(t *testing.T) {
	if got := Items("", 3); len(got) != 0 {
		t.Errorf("expected no items, got %v", got)
	}
}

func TestTitledBody_FullHeader(t *testing.T) {
	text := "TITLE: Standup notes\nKEYWORDS: planning, retro\n\nFirst line of the body.\nSecond line."
	title, keywords, body := TitledBody(text)

	if title != "Standup notes" {
		t.Errorf("title = %q", title)
	}
	if !reflect.DeepEqual(keywords, []string{"planning", "retro"}) {
		t.Errorf("keywords = %v", keywords)
	}
	if body != "First line of the body.\nSecond line." {
		t.Errorf("body = %q", body)
	}
}

func TestTitledBody_NoHeader(t *testing.T) {
	title, keywords, body := TitledBody("plain transcription text without headers")
	if title != "" || len(keywords) != 0 {
		t.Errorf("expected empty header, got title=%q keywords=%v", title, keywords)
	}
	if body != "plain transcription text without headers" {
		t.Errorf("body = %q", body)
	}
}
