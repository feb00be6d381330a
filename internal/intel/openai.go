package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jumperz11/Linkdinscrap/internal/bot"
	"github.com/jumperz11/Linkdinscrap/internal/models"
)

// OpenAIScorer calls an OpenAI-compatible chat completions endpoint. Any
// transport, status or parse problem comes back as an IntelligenceError.
type OpenAIScorer struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
}

func NewOpenAIScorer(baseURL, model string) *OpenAIScorer {
	return &OpenAIScorer{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Model:   model,
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *OpenAIScorer) Score(ctx context.Context, snap *models.ProfileSnapshot, target *models.TargetProfile, keywords string) (Evaluation, error) {
	prompt := scorePrompt(snap, target, keywords)
	content, err := s.complete(ctx, "score", prompt, true)
	if err != nil {
		return Evaluation{}, err
	}
	var ev Evaluation
	if err := json.Unmarshal([]byte(content), &ev); err != nil {
		return Evaluation{}, &bot.IntelligenceError{Op: "score", Err: fmt.Errorf("parse verdict: %w", err)}
	}
	if ev.Score < 0 {
		ev.Score = 0
	}
	if ev.Score > 100 {
		ev.Score = 100
	}
	return ev, nil
}

func (s *OpenAIScorer) ComposeMessage(ctx context.Context, snap *models.ProfileSnapshot, target *models.TargetProfile, maxLen int) (string, error) {
	prompt := messagePrompt(snap, target, maxLen)
	content, err := s.complete(ctx, "compose", prompt, false)
	if err != nil {
		return "", err
	}
	msg := strings.TrimSpace(strings.Trim(content, `"`))
	if msg == "" {
		return "", &bot.IntelligenceError{Op: "compose", Err: fmt.Errorf("empty message")}
	}
	if maxLen > 0 && len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg, nil
}

func (s *OpenAIScorer) complete(ctx context.Context, op, prompt string, wantJSON bool) (string, error) {
	reqBody := chatRequest{
		Model:       s.Model,
		Temperature: 0.4,
		Messages: []chatMessage{
			{Role: "system", Content: "You evaluate professional networking fit. Answer exactly as instructed."},
			{Role: "user", Content: prompt},
		},
	}
	if wantJSON {
		reqBody.ResponseFormat = &respFormat{Type: "json_object"}
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", &bot.IntelligenceError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", &bot.IntelligenceError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", &bot.IntelligenceError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &bot.IntelligenceError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &bot.IntelligenceError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))}
	}
	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &bot.IntelligenceError{Op: op, Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &bot.IntelligenceError{Op: op, Err: fmt.Errorf("no choices in response")}
	}
	return out.Choices[0].Message.Content, nil
}

func scorePrompt(snap *models.ProfileSnapshot, target *models.TargetProfile, keywords string) string {
	var b strings.Builder
	b.WriteString("Score 0-100 how valuable this profile is as a networking contact.\n")
	b.WriteString("Respond with JSON: {\"score\": <int>, \"reason\": \"<one sentence>\"}\n\n")
	fmt.Fprintf(&b, "Search keywords: %s\n\n", keywords)
	fmt.Fprintf(&b, "Candidate:\nName: %s\nHeadline: %s\nCompany: %s\nLocation: %s\nAbout: %s\nMutual connections: %d\nTotal connections: %d\n",
		snap.Name, snap.Headline, snap.Company, snap.Location, truncate(snap.About, 800),
		snap.MutualConnections, snap.TotalConnections)
	if target != nil {
		fmt.Fprintf(&b, "\nMy profile:\nName: %s\nHeadline: %s\nIndustry: %s\nExpertise: %s\n",
			target.Name, target.Headline, target.Industry, strings.Join(target.Expertise, ", "))
	}
	return b.String()
}

func messagePrompt(snap *models.ProfileSnapshot, target *models.TargetProfile, maxLen int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a personalized LinkedIn connection note to %s (%s at %s). ", snap.Name, snap.Headline, snap.Company)
	if target != nil {
		fmt.Fprintf(&b, "I am %s, %s. ", target.Name, target.Headline)
	}
	fmt.Fprintf(&b, "Max %d characters, warm but professional, no hashtags, reply with the note only.", maxLen)
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
