package intel

import (
	"fmt"
	"strings"

	"github.com/jumperz11/Linkdinscrap/internal/models"
)

// FallbackScore is the deterministic keyword-overlap heuristic used when the
// scorer fails. Base 50, +15 per matching keyword term in the profile text,
// +10 when mutual connections exceed 5, +5 when total connections exceed
// 500, capped at 100.
func FallbackScore(snap *models.ProfileSnapshot, keywords string) Evaluation {
	text := strings.ToLower(snap.Text())
	score := 50
	var matched []string
	for _, term := range strings.Fields(strings.ToLower(keywords)) {
		if strings.Contains(text, term) {
			score += 15
			matched = append(matched, term)
		}
	}
	if snap.MutualConnections > 5 {
		score += 10
	}
	if snap.TotalConnections > 500 {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	reason := "keyword heuristic: no keyword matches"
	if len(matched) > 0 {
		reason = "keyword heuristic: matched " + strings.Join(matched, ", ")
	}
	return Evaluation{Score: score, Reason: reason}
}

// FallbackMessage is the templated connection note used when message
// generation fails.
func FallbackMessage(snap *models.ProfileSnapshot, template, keywords string, maxLen int) string {
	name := snap.FirstName()
	if name == "" {
		name = "there"
	}
	msg := template
	if msg == "" {
		msg = "Hi {{Name}}, I came across your profile and would love to connect."
	}
	r := strings.NewReplacer("{{Name}}", name, "{{Company}}", snap.Company, "{{Keywords}}", strings.TrimSpace(keywords))
	msg = strings.TrimSpace(r.Replace(msg))
	msg = strings.Join(strings.Fields(msg), " ")
	if maxLen > 0 && len(msg) > maxLen {
		msg = msg[:maxLen]
		if i := strings.LastIndexByte(msg, ' '); i > maxLen/2 {
			msg = msg[:i]
		}
	}
	return msg
}

// Describe renders a one-line summary of an evaluation for logs.
func (e Evaluation) Describe() string {
	return fmt.Sprintf("%d (%s)", e.Score, e.Reason)
}
