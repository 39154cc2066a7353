package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndDotEnv(t *testing.T) {
	req := require.New(t)

	// Given a .env file with only the required keys
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	content := "PORT=8080\nBADGER_FILEPATH=/tmp/badger\nBLUGE_FILEPATH=/tmp/bluge\n" +
		"JWT_SECRET=0123456789abcdef0123456789abcdef\nCENSORED_WORDS= spam, ,scam\n"
	req.NoError(os.WriteFile(file, []byte(content), 0o600))
	for _, key := range []string{"PORT", "BADGER_FILEPATH", "BLUGE_FILEPATH", "JWT_SECRET", "CENSORED_WORDS"} {
		t.Setenv(key, "")
		req.NoError(os.Unsetenv(key))
	}

	// When loading
	config, err := LoadConfig(file)

	// Then defaults complete the configuration
	req.NoError(err)
	req.Equal("0.0.0.0:8080", config.Address())
	req.Equal(24*time.Hour, config.AuthTokenDuration)
	req.Equal(0, config.MaxConnections)
	req.Equal(60*time.Second, config.PongWait)
	req.Equal([]string{"spam", "scam"}, config.Words())
}

func TestLoadConfig_RejectsShortSecret(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("BADGER_FILEPATH", "/tmp/badger")
	t.Setenv("BLUGE_FILEPATH", "/tmp/bluge")
	t.Setenv("JWT_SECRET", "short")

	_, err := LoadConfig()

	require.Error(t, err)
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("**")
	req.Error(err)
}
