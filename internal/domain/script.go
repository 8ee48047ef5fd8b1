package domain

import "encoding/json"

// Character is a recurring figure in a planned script. The description is
// injected verbatim into downstream synthesis prompts to keep appearance
// consistent across scenes.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Scene is one planned unit of the final video. The product variant plans two
// scenes; the character variant plans one per fan-out segment.
type Scene struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Seconds  int    `json:"seconds"`
	Prompt   string `json:"prompt"`
	Setting  string `json:"setting,omitempty"`
	Location string `json:"location,omitempty"`
	ShotType string `json:"shot_type,omitempty"`
	Camera   string `json:"camera,omitempty"`
}

// Script is the structured planning output. It is persisted as the "script"
// artifact and every later stage reads it from there rather than from the
// planner directly.
type Script struct {
	Title      string      `json:"title"`
	Characters []Character `json:"characters,omitempty"`
	Scenes     []Scene     `json:"scenes"`
}

// EncodeScript serializes a script for the artifact store.
func EncodeScript(s *Script) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeScript parses a persisted script artifact.
func DecodeScript(data []byte) (*Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
