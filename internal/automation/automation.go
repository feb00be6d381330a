// Package automation owns the browser session. The engine and discovery see
// only the Session contract; selector fallbacks and stealth behaviors stay
// behind it. Transient failures surface as bot.AutomationError.
package automation

import (
	"context"

	"github.com/jumperz11/Linkdinscrap/internal/models"
)

// Session is the page automation capability the engine consumes. One session
// (one browser context) exists process-wide; callers are never concurrent.
type Session interface {
	// IsAuthenticated reports whether the browser holds a valid logged-in
	// session.
	IsAuthenticated(ctx context.Context) (bool, error)

	// Search issues a people search for the keyword query and returns the
	// raw entries extracted from the first results page.
	Search(ctx context.Context, keywords string) ([]models.SearchResult, error)

	// NextPage advances to the next results page of the current query and
	// returns its entries. An empty slice means no further pages exist.
	NextPage(ctx context.Context) ([]models.SearchResult, error)

	// Visit navigates to the candidate's profile and extracts a best-effort
	// snapshot; optional fields may be empty.
	Visit(ctx context.Context, c models.Candidate) (*models.ProfileSnapshot, error)

	// Connect sends a connection request on the currently visited profile,
	// attaching message when the UI allows a note.
	Connect(ctx context.Context, message string) error

	// Follow follows the currently visited profile.
	Follow(ctx context.Context) error

	// CurrentUserProfile extracts the operator's own profile summary, used
	// as the scoring anchor.
	CurrentUserProfile(ctx context.Context) (*models.TargetProfile, error)

	Close()
}
