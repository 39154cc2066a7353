package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlacklistRepository(t *testing.T) {
	req := require.New(t)
	repository := NewBlacklistRepository(openTestDB(t))
	ctx := context.Background()

	// Given words added with noise and duplicates
	req.NoError(repository.AddWords(ctx, " Spam ", "scam", "", "spam"))

	// Then they are listed once each, lower-cased and sorted
	words, err := repository.ListWords(ctx)
	req.NoError(err)
	req.Equal([]string{"scam", "spam"}, words)

	// When one is removed
	req.NoError(repository.RemoveWord(ctx, "SPAM"))
	words, err = repository.ListWords(ctx)
	req.NoError(err)
	req.Equal([]string{"scam"}, words)
}
