// Package intel scores candidate profiles against the operator's target
// profile and composes outreach messages. The HTTP-backed scorer may fail;
// the engine then substitutes the deterministic fallbacks in fallback.go.
package intel

import (
	"context"

	"github.com/jumperz11/Linkdinscrap/internal/models"
)

// Evaluation is the scoring verdict for one candidate.
type Evaluation struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Scorer is the intelligence service contract. Both methods must accept a
// nil target (no prior analysis).
type Scorer interface {
	Score(ctx context.Context, snap *models.ProfileSnapshot, target *models.TargetProfile, keywords string) (Evaluation, error)
	ComposeMessage(ctx context.Context, snap *models.ProfileSnapshot, target *models.TargetProfile, maxLen int) (string, error)
}
