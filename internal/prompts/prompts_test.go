package prompts

import (
	"strings"
	"testing"
)

func TestLookup_AllTemplates(t *testing.T) {
	for _, id := range []TemplateID{Planner, Allocator, Monitor, Reviewer} {
		tmpl, err := Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", id, err)
		}
		if tmpl.System() == "" {
			t.Errorf("template %s has empty system prompt", id)
		}
		if tmpl.Operation == "" {
			t.Errorf("template %s has empty operation name", id)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, err := Lookup("architect"); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestRender_SubstitutesFields(t *testing.T) {
	tmpl, _ := Lookup(Planner)
	out, err := tmpl.Render(map[string]string{
		FieldDescription: "Build a todo app",
		FieldTeam:        "2 developers",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "Build a todo app") {
		t.Errorf("rendered prompt missing description: %q", out)
	}
	if !strings.Contains(out, "2 developers") {
		t.Errorf("rendered prompt missing team: %q", out)
	}
	if strings.Contains(out, "{") {
		t.Errorf("rendered prompt has unsubstituted placeholder: %q", out)
	}
}

func TestRender_MissingField(t *testing.T) {
	tmpl, _ := Lookup(Planner)
	if _, err := tmpl.Render(map[string]string{FieldDescription: "Build a todo app"}); err == nil {
		t.Fatal("expected error for missing team field")
	}
}

func TestRender_WhitespaceOnlyField(t *testing.T) {
	tmpl, _ := Lookup(Monitor)
	if _, err := tmpl.Render(map[string]string{FieldStatus: "   "}); err == nil {
		t.Fatal("expected error for whitespace-only field")
	}
}

func TestRender_ReviewerIncludesAnalysis(t *testing.T) {
	tmpl, _ := Lookup(Reviewer)
	out, err := tmpl.Render(map[string]string{
		FieldDeliverables: "API docs",
		FieldAnalysis:     "MONITOR_OUT",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "MONITOR_OUT") {
		t.Errorf("reviewer prompt missing monitor output: %q", out)
	}
}
