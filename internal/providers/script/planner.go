// Package script turns a topic or character brief into a structured scene
// script via the Gemini planning model, with a deterministic local fallback
// so the pipeline stays runnable without credentials.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shortform/internal/domain"
	"shortform/internal/generation"
	"shortform/internal/providers/genai"
)

// Planner implements generation.Planner on top of the genai client.
type Planner struct {
	client *genai.Client
	logger zerolog.Logger
}

// NewPlanner builds a planner.
func NewPlanner(client *genai.Client, logger zerolog.Logger) *Planner {
	return &Planner{client: client, logger: logger}
}

// PlanScript produces a scene script for either pipeline variant. Planner
// output that cannot be parsed falls back to the deterministic local script
// rather than failing the stage; planning is not the expensive part of the
// pipeline and a usable script always exists.
func (p *Planner) PlanScript(ctx context.Context, req generation.PlanRequest) (*domain.Script, error) {
	if p.client.Synthetic() {
		return p.staticScript(req), nil
	}

	text, err := p.client.GenerateText(ctx, buildPlanPrompt(req))
	if err != nil {
		return nil, err
	}
	script, err := parseScript(text)
	if err != nil {
		p.logger.Warn().Err(err).Msg("script: unparseable planner output, using local fallback")
		return p.staticScript(req), nil
	}
	normalize(script, req)
	return script, nil
}

var _ generation.Planner = (*Planner)(nil)

func buildPlanPrompt(req generation.PlanRequest) string {
	var b strings.Builder
	if req.GameName != "" {
		fmt.Fprintf(&b, "Plan %d scenes of %d seconds each for a short-form video of a character inside the world of %s.\n", req.SceneCount, req.SceneSeconds, req.GameName)
		if req.UserPrompt != "" {
			fmt.Fprintf(&b, "Creative direction: %s\n", req.UserPrompt)
		}
		b.WriteString("Each scene places the character in a distinct in-game location with its own shot type and camera movement.\n")
	} else {
		fmt.Fprintf(&b, "Plan %d scenes of %d seconds each for a short-form product video about: %s\n", req.SceneCount, req.SceneSeconds, req.Topic)
		if req.Draft != "" {
			fmt.Fprintf(&b, "Storyline to follow: %s\n", req.Draft)
		}
		if req.Brand != "" {
			fmt.Fprintf(&b, "Brand: %s\n", req.Brand)
		}
		if req.Description != "" {
			fmt.Fprintf(&b, "Product: %s\n", req.Description)
		}
		b.WriteString("Scene 1 is the hook, the final scene lands on the product.\n")
	}
	b.WriteString(`Output ONLY valid JSON (no markdown, no backticks) with this shape:
{"title": "...", "characters": [{"name": "...", "description": "..."}],
 "scenes": [{"index": 0, "title": "...", "seconds": 0, "prompt": "...",
             "setting": "...", "location": "...", "shot_type": "...", "camera": "..."}]}`)
	return b.String()
}

// parseScript extracts the first JSON object from the model output. Models
// occasionally wrap JSON in prose despite instructions.
func parseScript(text string) (*domain.Script, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in planner output")
	}
	var script domain.Script
	if err := json.Unmarshal([]byte(text[start:end+1]), &script); err != nil {
		return nil, fmt.Errorf("decode planner output: %w", err)
	}
	if len(script.Scenes) == 0 {
		return nil, fmt.Errorf("planner output has no scenes")
	}
	return &script, nil
}

func normalize(script *domain.Script, req generation.PlanRequest) {
	for i := range script.Scenes {
		scene := &script.Scenes[i]
		scene.Index = i
		if scene.Seconds <= 0 {
			scene.Seconds = req.SceneSeconds
		}
	}
	if len(script.Scenes) > req.SceneCount && req.SceneCount > 0 {
		script.Scenes = script.Scenes[:req.SceneCount]
	}
}

// staticScript is the credential-free fallback: deterministic scenes derived
// from the request, enough to exercise every downstream stage.
func (p *Planner) staticScript(req generation.PlanRequest) *domain.Script {
	titleCase := cases.Title(language.Und)
	subject := req.Topic
	if subject == "" {
		subject = req.GameName
	}
	if subject == "" {
		subject = "short-form video"
	}

	count := req.SceneCount
	if count <= 0 {
		count = 2
	}
	script := &domain.Script{
		Title: fmt.Sprintf("%s Short", titleCase.String(subject)),
		Characters: []domain.Character{
			{Name: "lead", Description: fmt.Sprintf("the lead figure of a video about %s", subject)},
		},
		Scenes: make([]domain.Scene, 0, count),
	}
	for i := 0; i < count; i++ {
		script.Scenes = append(script.Scenes, domain.Scene{
			Index:   i,
			Title:   fmt.Sprintf("Scene %d", i+1),
			Seconds: req.SceneSeconds,
			Prompt:  fmt.Sprintf("Scene %d of %d about %s. %s", i+1, count, subject, req.UserPrompt),
			Setting: fmt.Sprintf("setting %d for %s", i+1, subject),
		})
	}
	return script
}
