// Package prompts holds the fixed instruction templates for each agent role.
//
// A template is a role system prompt plus a user-prompt body with named
// {placeholders}. Rendering substitutes caller-supplied fields into the
// body; every required field must be present and non-empty before any
// external call is made.
package prompts

import (
	"fmt"
	"strings"
)

// TemplateID identifies one of the fixed templates.
type TemplateID string

const (
	Planner   TemplateID = "planner"
	Allocator TemplateID = "allocator"
	Monitor   TemplateID = "monitor"
	Reviewer  TemplateID = "reviewer"
)

// Field names accepted by the templates.
const (
	FieldDescription  = "description"
	FieldTeam         = "team"
	FieldPlan         = "plan"
	FieldStatus       = "status"
	FieldDeliverables = "deliverables"
	FieldAnalysis     = "analysis"
)

const plannerSystemPrompt = `You are an experienced project planner with 10+ years of experience
in breaking down complex projects into manageable tasks. You excel at
identifying dependencies and creating realistic timelines. Your goal is
to create comprehensive project plans with clear objectives and milestones.`

const allocatorSystemPrompt = `You are a resource management specialist who understands team
dynamics and can match tasks with the right team members based on their
skills and workload. Your goal is to efficiently allocate tasks based on
team capabilities and availability.`

const monitorSystemPrompt = `You are a detail-oriented project monitor who tracks progress,
identifies bottlenecks, and suggests corrective actions to keep projects
on schedule. Your goal is to track project progress and identify
potential risks or delays.`

const reviewerSystemPrompt = `You are a quality assurance expert who reviews project outputs and
ensures they meet the defined standards and requirements. Your goal is
to ensure project deliverables meet quality standards.`

const plannerBody = `Create a detailed project plan for: {description}

Team available: {team}

Your plan should include:
1. Project objectives and scope
2. Key milestones and deliverables
3. Timeline with phases
4. Required resources
5. Success criteria
6. Potential risks and mitigation strategies`

const allocatorBody = `Based on the project plan and team information, allocate tasks:

Project Plan: {plan}
Team Information: {team}

Create task assignments that consider:
1. Team member skills and expertise
2. Current workload and availability
3. Task dependencies
4. Priority levels
5. Estimated effort for each task`

const monitorBody = `Analyze the current project status and provide insights:

Current Status: {status}

Your analysis should include:
1. Overall progress assessment
2. Completed vs pending tasks
3. Identified bottlenecks or delays
4. Risk assessment
5. Recommended actions to stay on track`

const reviewerBody = `Review the project deliverables for quality:

Deliverables: {deliverables}

Progress analysis from the monitoring step:
{analysis}

Your review should assess:
1. Completeness of deliverables
2. Compliance with requirements
3. Quality standards met
4. Areas for improvement
5. Final recommendations`

// Template is one fixed instruction template.
type Template struct {
	ID        TemplateID
	Operation string // Display name used in the usage ledger.
	system    string
	body      string
	required  []string
}

var templates = map[TemplateID]*Template{
	Planner: {
		ID:        Planner,
		Operation: "Project Planning",
		system:    plannerSystemPrompt,
		body:      plannerBody,
		required:  []string{FieldDescription, FieldTeam},
	},
	Allocator: {
		ID:        Allocator,
		Operation: "Task Allocation",
		system:    allocatorSystemPrompt,
		body:      allocatorBody,
		required:  []string{FieldPlan, FieldTeam},
	},
	Monitor: {
		ID:        Monitor,
		Operation: "Progress Monitoring",
		system:    monitorSystemPrompt,
		body:      monitorBody,
		required:  []string{FieldStatus},
	},
	Reviewer: {
		ID:        Reviewer,
		Operation: "Quality Review",
		system:    reviewerSystemPrompt,
		body:      reviewerBody,
		required:  []string{FieldDeliverables, FieldAnalysis},
	},
}

// Lookup returns the template for the given ID.
func Lookup(id TemplateID) (*Template, error) {
	t, ok := templates[id]
	if !ok {
		return nil, fmt.Errorf("unknown template: %q", id)
	}
	return t, nil
}

// System returns the role system prompt.
func (t *Template) System() string { return t.system }

// Required returns the field names the template needs.
func (t *Template) Required() []string { return append([]string(nil), t.required...) }

// Render substitutes fields into the template body. It returns an error
// naming the first missing or empty required field; no placeholder is
// left unsubstituted on success.
func (t *Template) Render(fields map[string]string) (string, error) {
	for _, name := range t.required {
		if strings.TrimSpace(fields[name]) == "" {
			return "", fmt.Errorf("template %s: required field %q is empty", t.ID, name)
		}
	}
	out := t.body
	for _, name := range t.required {
		out = strings.ReplaceAll(out, "{"+name+"}", fields[name])
	}
	return out, nil
}
