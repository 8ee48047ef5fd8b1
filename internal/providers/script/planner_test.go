package script

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortform/internal/generation"
	"shortform/internal/providers/genai"
)

func TestParseScriptExtractsJSONFromProse(t *testing.T) {
	text := "Sure! Here is the script you asked for:\n" +
		`{"title":"Earbuds Short","scenes":[{"index":0,"title":"Hook","seconds":8,"prompt":"open on the earbuds"}]}` +
		"\nLet me know if you want changes."

	script, err := parseScript(text)
	require.NoError(t, err)
	assert.Equal(t, "Earbuds Short", script.Title)
	require.Len(t, script.Scenes, 1)
	assert.Equal(t, "open on the earbuds", script.Scenes[0].Prompt)
}

func TestParseScriptRejectsNonJSON(t *testing.T) {
	_, err := parseScript("I could not produce a script.")
	require.Error(t, err)

	_, err = parseScript(`{"title":"empty","scenes":[]}`)
	require.Error(t, err)
}

func TestNormalizeReindexesAndClampsScenes(t *testing.T) {
	script, err := parseScript(`{"title":"t","scenes":[
		{"index":7,"title":"a","seconds":0,"prompt":"p1"},
		{"index":3,"title":"b","seconds":5,"prompt":"p2"},
		{"index":1,"title":"c","seconds":4,"prompt":"p3"}]}`)
	require.NoError(t, err)

	normalize(script, generation.PlanRequest{SceneCount: 2, SceneSeconds: 8})
	require.Len(t, script.Scenes, 2)
	assert.Equal(t, 0, script.Scenes[0].Index)
	assert.Equal(t, 8, script.Scenes[0].Seconds)
	assert.Equal(t, 1, script.Scenes[1].Index)
	assert.Equal(t, 5, script.Scenes[1].Seconds)
}

func TestPlanScriptSyntheticProducesRequestedScenes(t *testing.T) {
	client, err := genai.NewClient(genai.Options{})
	require.NoError(t, err)
	planner := NewPlanner(client, zerolog.Nop())

	script, err := planner.PlanScript(context.Background(), generation.PlanRequest{
		Topic:        "wireless earbuds",
		SceneCount:   2,
		SceneSeconds: 8,
	})
	require.NoError(t, err)
	require.Len(t, script.Scenes, 2)
	assert.Contains(t, script.Title, "Wireless Earbuds")
	for i, scene := range script.Scenes {
		assert.Equal(t, i, scene.Index)
		assert.Equal(t, 8, scene.Seconds)
		assert.Contains(t, scene.Prompt, "wireless earbuds")
	}
}

func TestPlanScriptFallsBackOnUnparseableOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"no json here"}]}}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := genai.NewClient(genai.Options{APIKey: "k", BaseURL: server.URL, HTTPClient: server.Client()})
	require.NoError(t, err)
	planner := NewPlanner(client, zerolog.Nop())

	script, err := planner.PlanScript(context.Background(), generation.PlanRequest{
		GameName:     "Starfall Arena",
		SceneCount:   5,
		SceneSeconds: 4,
	})
	require.NoError(t, err)
	assert.Len(t, script.Scenes, 5)
}

func TestBuildPlanPromptSelectsVariantBrief(t *testing.T) {
	product := buildPlanPrompt(generation.PlanRequest{Topic: "earbuds", Brand: "Acme", SceneCount: 2, SceneSeconds: 8})
	assert.Contains(t, product, "product video about: earbuds")
	assert.Contains(t, product, "Brand: Acme")

	character := buildPlanPrompt(generation.PlanRequest{GameName: "Starfall Arena", UserPrompt: "make it moody", SceneCount: 5, SceneSeconds: 4})
	assert.Contains(t, character, "world of Starfall Arena")
	assert.Contains(t, character, "make it moody")
}
