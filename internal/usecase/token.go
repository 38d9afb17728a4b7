package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sci2zero/cris-exchange/internal/domain"
)

// tokenSeparator joins the five cursor fields plus the random suffix into
// the token value: from!until!set!nextPage!format!uuid.
const tokenSeparator = "!"

// TokenState is the cursor embedded in a resumption-token value.
type TokenState struct {
	From     string
	Until    string
	Set      string
	NextPage int
	Format   string
}

func encodeTokenValue(state TokenState) string {
	return strings.Join([]string{
		state.From, state.Until, state.Set,
		strconv.Itoa(state.NextPage), state.Format,
		uuid.NewString(),
	}, tokenSeparator)
}

func decodeTokenValue(value string) (TokenState, error) {
	parts := strings.Split(value, tokenSeparator)
	if len(parts) != 6 {
		return TokenState{}, fmt.Errorf("token has %d segments, want 6", len(parts))
	}
	page, err := strconv.Atoi(parts[3])
	if err != nil || page < 0 {
		return TokenState{}, fmt.Errorf("token page %q is not a valid page index", parts[3])
	}
	return TokenState{
		From:     parts[0],
		Until:    parts[1],
		Set:      parts[2],
		NextPage: page,
		Format:   parts[4],
	}, nil
}

// mintToken generates, persists and returns a fresh token for the next
// page of a non-terminal ListRecords response. One token is minted per
// page transition; tokens are never reused.
func mintToken(ctx context.Context, store domain.ResumptionTokenStore, state TokenState, ttl time.Duration, cursor, completeListSize int) (*domain.ResumptionToken, error) {
	token := &domain.ResumptionToken{
		Value:            encodeTokenValue(state),
		ExpirationDate:   time.Now().Add(ttl).UTC(),
		CursorOffset:     cursor,
		CompleteListSize: completeListSize,
	}
	if err := store.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("persist resumption token: %w", err)
	}
	return token, nil
}
