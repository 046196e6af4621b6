package brackets

import (
	"context"

	"github.com/Dosada05/tournament-divisions/models"
)

type GenerateBracketParams struct {
	DivisionID   int
	Participants []models.Participant
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]models.Match, error)

	GetName() string
}
