package control

// Step labels shown to end users while a job is in flight, keyed by the
// executor's step marker. Korean is the primary audience; English is the
// negotiation fallback.
var stepLabels = map[string]map[string]string{
	"en": {
		"pending":             "Waiting to start",
		"plan_script":         "Planning script",
		"prepare_first_frame": "Preparing opening frame",
		"generate_scene1":     "Generating scene 1",
		"prepare_cta_frame":   "Preparing closing frame",
		"generate_scene2":     "Generating scene 2",
		"concatenate_videos":  "Assembling final video",
		"plan_segments":       "Planning segments",
		"render_segments":     "Rendering segments",
		"merge_segments":      "Merging clips",
		"done":                "Done",
	},
	"ko": {
		"pending":             "대기 중",
		"plan_script":         "스크립트 기획 중",
		"prepare_first_frame": "첫 프레임 준비 중",
		"generate_scene1":     "장면 1 생성 중",
		"prepare_cta_frame":   "마지막 프레임 준비 중",
		"generate_scene2":     "장면 2 생성 중",
		"concatenate_videos":  "최종 영상 합치는 중",
		"plan_segments":       "장면 기획 중",
		"render_segments":     "장면 렌더링 중",
		"merge_segments":      "클립 합치는 중",
		"done":                "완료",
	},
}

// StepLabel localizes an executor step marker. Unknown steps fall back to the
// raw marker so new stages degrade gracefully.
func StepLabel(step, locale string) string {
	if step == "" {
		step = "pending"
	}
	table, ok := stepLabels[locale]
	if !ok {
		table = stepLabels["en"]
	}
	if label, ok := table[step]; ok {
		return label
	}
	if label, ok := stepLabels["en"][step]; ok {
		return label
	}
	return step
}
