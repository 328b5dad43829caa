package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/aretw0/phasewise/pkg/adapters/memory"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/persistence/middleware"
	"github.com/aretw0/phasewise/pkg/ports"
	"github.com/aretw0/phasewise/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func sessionWith(fields map[string]any) *domain.Session {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	sess := domain.NewSession("s1", "stages", now)
	sess.CurrentPhase = "stage_1"
	for name, v := range fields {
		vt := schema.TypeString
		if _, ok := v.(int64); ok {
			vt = schema.TypeInteger
		}
		sess.Fields[name] = domain.SessionFieldValue{PhaseID: "stage_1", Name: name, Value: v, ValueType: vt, UpdatedAt: now}
	}
	return sess
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore())
	ports.RunSessionStoreContract(t, store)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	original := sessionWith(map[string]any{"selected_issue": "grief", "issue_intensity": int64(8)})
	require.NoError(t, secure.Save(ctx, "s1", original))

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, stored.Fields, "selected_issue", "fields must be sealed")
	require.Contains(t, stored.Fields, middleware.EnvelopeField)
	assert.Equal(t, "stage_1", stored.CurrentPhase, "position stays readable")

	loaded, err := secure.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "grief", loaded.Fields["selected_issue"].Value)
	assert.Equal(t, int64(8), loaded.Fields["issue_intensity"].Value)

	assert.Contains(t, original.Fields, "selected_issue", "caller's session must not be modified")
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, oldStore.Save(ctx, "s1", sessionWith(map[string]any{"notes": "old"})))

	newStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := newStore.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "old", loaded.Fields["notes"].Value)

	// Saving again re-seals with the active key.
	require.NoError(t, newStore.Save(ctx, "s1", sessionWith(map[string]any{"notes": "new"})))
	_, err = oldStore.Load(ctx, "s1")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainSession(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "s1", sessionWith(map[string]any{"notes": "plain"})))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(ctx, "s1")
	assert.ErrorContains(t, err, "missing encrypted field envelope")
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
