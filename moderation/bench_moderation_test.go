package moderation

import (
	"chat-realtime/repositories"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// A large blacklist loaded from Badger still builds a usable automaton.
func Test_Moderation_From_Stored_Blacklist(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	ctx := context.Background()
	blacklist := repositories.NewBlacklistRepository(db)

	// Given ten thousand stored words
	words := make([]string, 0, 10_000)
	for i := range 10_000 {
		words = append(words, fmt.Sprintf("forbidden%dword", i))
	}
	req.NoError(blacklist.AddWords(ctx, words...))

	// When the moderator is built from the stored list
	stored, err := blacklist.ListWords(ctx)
	req.NoError(err)
	req.Len(stored, len(words))
	mod, err := NewModerator(stored, replacementChar, logs.GetLoggerFromLevel(slog.LevelError))
	req.NoError(err)

	// Then any of them is censored
	content, found := mod.Censor("say forbidden4242word twice")
	req.Equal("say ***************** twice", content)
	req.Equal([]string{"forbidden4242word"}, found)
}

func BenchmarkModerator_Censor(b *testing.B) {
	words := make([]string, 0, 1_000)
	for i := range 1_000 {
		words = append(words, fmt.Sprintf("word%dx", i))
	}
	mod, err := NewModerator(words, replacementChar, logs.GetLoggerFromLevel(slog.LevelError))
	if err != nil {
		b.Fatal(err)
	}
	input := "a fairly ordinary chat message with word42x hidden in the middle of it"

	b.ResetTimer()
	for range b.N {
		_, _ = mod.Censor(input)
	}
}
