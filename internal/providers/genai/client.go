package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shortform/internal/generation"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client provides a facade over the Gemini generateContent API. Without an
// API key it produces deterministic synthetic assets, which keeps every
// pipeline stage (persistence, resume, rework) exercisable in local and CI
// environments. With a key configured, failures come back classified per the
// generation contract: safety blocks as moderation rejections, network and
// 5xx conditions as transient, everything else as fatal.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = zerolog.New(io.Discard)
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Synthetic reports whether the client runs without a real API key.
func (c *Client) Synthetic() bool { return c.apiKey == "" }

// GenerateText runs a plain text-to-text call, used for script planning and
// prompt rewriting.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", generation.Transient("genai.text", err)
	}
	if c.Synthetic() {
		return "", generation.Fatal("genai.text", fmt.Errorf("no api key: synthetic mode has no text capability"))
	}
	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	var resp generateContentResponse
	if err := c.invoke(ctx, payload, &resp); err != nil {
		return "", err
	}
	for _, cand := range resp.Candidates {
		if blocked(cand.FinishReason) {
			return "", generation.Moderationf("text candidate finished with %s", cand.FinishReason)
		}
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", generation.Fatal("genai.text", fmt.Errorf("no text content returned"))
}

// GenerateImage synthesizes one frame image.
func (c *Client) GenerateImage(ctx context.Context, prompt string, referenceImages [][]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, generation.Transient("genai.image", err)
	}
	if c.Synthetic() {
		seed := deterministicSeed(c.model, prompt, len(referenceImages))
		c.logger.Debug().Str("model", c.model).Msg("genai: synthetic image asset")
		return renderSyntheticImage(1080, 1920, seed), nil
	}

	parts := []part{{Text: prompt}}
	for _, ref := range referenceImages {
		parts = append(parts, part{InlineData: &inlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(ref)}})
	}
	payload := generateContentRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"IMAGE"}},
	}
	var resp generateContentResponse
	if err := c.invoke(ctx, payload, &resp); err != nil {
		return nil, err
	}
	data, err := firstInlineAsset(resp)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// GenerateVideo synthesizes one clip. With endFrame set the model
// interpolates between the two stills.
func (c *Client) GenerateVideo(ctx context.Context, prompt string, startFrame, endFrame []byte, seconds int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, generation.Transient("genai.video", err)
	}
	if c.Synthetic() {
		seed := deterministicSeed(c.model, prompt, len(startFrame), len(endFrame), seconds)
		c.logger.Debug().Str("model", c.model).Int("seconds", seconds).Msg("genai: synthetic video asset")
		return renderSyntheticVideo(seed, prompt, seconds), nil
	}

	parts := []part{{Text: fmt.Sprintf("%s\nDuration: %ds", prompt, seconds)}}
	if len(startFrame) > 0 {
		parts = append(parts, part{InlineData: &inlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(startFrame)}})
	}
	if len(endFrame) > 0 {
		parts = append(parts, part{InlineData: &inlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(endFrame)}})
	}
	payload := generateContentRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"VIDEO"}},
	}
	var resp generateContentResponse
	if err := c.invoke(ctx, payload, &resp); err != nil {
		return nil, err
	}
	return firstInlineAsset(resp)
}

var nameLikePattern = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)+\b`)

// RewritePrompt asks the model to rephrase a prompt so it passes content
// filters while preserving the story. In synthetic mode the rewrite is a
// local deterministic redaction of name-like token runs.
func (c *Client) RewritePrompt(ctx context.Context, prompt string) (string, error) {
	if c.Synthetic() {
		return nameLikePattern.ReplaceAllString(prompt, "an unnamed person"), nil
	}
	instruction := "Rewrite the following video generation prompt so it passes content filters. " +
		"Replace real person names with generic role descriptions, keep the story structure, dialogue " +
		"and camera directions intact, and output only the rewritten prompt.\n\n" + prompt
	rewritten, err := c.GenerateText(ctx, instruction)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(rewritten), nil
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type generateContentResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Status  string `json:"status,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// invoke posts a generateContent request and maps failures onto the
// classified error taxonomy. Callers never inspect message text.
func (c *Client) invoke(ctx context.Context, payload any, out *generateContentResponse) error {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	body, err := json.Marshal(payload)
	if err != nil {
		return generation.Fatal("genai.invoke", fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return generation.Fatal("genai.invoke", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return generation.Transient("genai.invoke", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		raw, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(raw, &apiErr)
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return generation.Transient("genai.invoke", fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error.Message))
		case apiErr.Error.Status == "BLOCKED" || apiErr.Error.Status == "SAFETY":
			return generation.Moderationf("request blocked: %s", apiErr.Error.Message)
		default:
			return generation.Fatal("genai.invoke", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return generation.Transient("genai.invoke", fmt.Errorf("decode response: %w", err))
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return generation.Moderationf("prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	return nil
}

func blocked(finishReason string) bool {
	switch finishReason {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return true
	}
	return false
}

func firstInlineAsset(resp generateContentResponse) ([]byte, error) {
	for _, cand := range resp.Candidates {
		if blocked(cand.FinishReason) {
			return nil, generation.Moderationf("candidate finished with %s", cand.FinishReason)
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, generation.Transient("genai.asset", fmt.Errorf("decode inline data: %w", err))
			}
			if len(data) > 0 {
				return data, nil
			}
		}
	}
	return nil, generation.Fatal("genai.asset", fmt.Errorf("no inline asset returned"))
}

func renderSyntheticImage(width, height int, seed string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)
	stripeHeight := height / 12
	if stripeHeight < 32 {
		stripeHeight = 32
	}
	for y := 0; y < height; y += stripeHeight * 2 {
		bottom := y + stripeHeight
		if bottom > height {
			bottom = height
		}
		draw.Draw(img, image.Rect(0, y, width, bottom), &image.Uniform{accent}, image.Point{}, draw.Over)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func renderSyntheticVideo(seed, prompt string, seconds int) []byte {
	lines := []string{
		"Synthetic video placeholder",
		fmt.Sprintf("Seed: %s", seed),
		fmt.Sprintf("Seconds: %d", seconds),
		fmt.Sprintf("Prompt: %s", strings.TrimSpace(prompt)),
	}
	return []byte(strings.Join(lines, "\n"))
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "0c0c0c0c0c0c"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	decoded, err := hex.DecodeString(segment)
	if err != nil || len(decoded) < 3 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: decoded[0], G: decoded[1], B: decoded[2], A: 255}
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(hasher, "%v|", p)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
