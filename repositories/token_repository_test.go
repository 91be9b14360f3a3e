package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rescuelink/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseRepository(t *testing.T, repo TokenRepository) {
	ctx := context.Background()

	_, err := repo.Get(ctx, models.AccessTokenKey)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, repo.Set(ctx, models.AccessTokenKey, "access"))
	require.NoError(t, repo.Set(ctx, models.RefreshTokenKey, "refresh"))

	value, err := repo.Get(ctx, models.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "access", value)

	require.NoError(t, repo.Delete(ctx, models.AccessTokenKey, models.RefreshTokenKey))

	_, err = repo.Get(ctx, models.RefreshTokenKey)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestMemoryTokenRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryTokenRepository())
}

func TestFileTokenRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")
	exerciseRepository(t, NewFileTokenRepository(path))

	// A second instance sees what the first wrote.
	first := NewFileTokenRepository(path)
	require.NoError(t, first.Set(context.Background(), models.AccessTokenKey, "persisted"))
	value, err := NewFileTokenRepository(path).Get(context.Background(), models.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "persisted", value)
}

func TestRedisTokenRepository(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	exerciseRepository(t, NewRedisTokenRepository(client, "session-a"))

	a := NewRedisTokenRepository(client, "session-a")
	b := NewRedisTokenRepository(client, "session-b")
	require.NoError(t, a.Set(context.Background(), models.AccessTokenKey, "a-token"))

	_, err := b.Get(context.Background(), models.AccessTokenKey)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.True(t, server.Exists("rescuelink:tokens:session-a:accessToken"))
}

func TestTokenScopesIsolateSessions(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	for name, scopes := range map[string]TokenScopes{
		"memory": NewMemoryTokenScopes(time.Minute),
		"redis":  NewRedisTokenScopes(client, "gateway"),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exerciseRepository(t, scopes.Scope("fresh"))

			require.NoError(t, scopes.Scope("sid-1").Set(ctx, models.AccessTokenKey, "one"))
			_, err := scopes.Scope("sid-2").Get(ctx, models.AccessTokenKey)
			assert.ErrorIs(t, err, ErrTokenNotFound)

			value, err := scopes.Scope("sid-1").Get(ctx, models.AccessTokenKey)
			require.NoError(t, err)
			assert.Equal(t, "one", value)
		})
	}
}
