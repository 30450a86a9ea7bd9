package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mutableSource struct {
	mu  sync.Mutex
	f   Features
	err error
}

func (m *mutableSource) LoadFeatures(context.Context) (Features, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.f, m.err
}

func (m *mutableSource) set(f Features, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.f, m.err = f, err
}

func TestFeatures_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Features{}.Validate())
	assert.NoError(t, Features{ChatEnabled: true, VoiceEnabled: true, TranslationEnabled: true}.Validate())
	assert.ErrorIs(t, Features{VoiceEnabled: true}.Validate(), domain.ErrValidation)
	assert.ErrorIs(t, Features{TranslationEnabled: true}.Validate(), domain.ErrValidation)
	assert.ErrorIs(t, Features{AIAssistantEnabled: true}.Validate(), domain.ErrValidation)
}

func TestService_Reload(t *testing.T) {
	t.Parallel()

	src := &mutableSource{f: Features{ChatEnabled: true}}
	svc, err := NewService(context.Background(), src, testLogger())
	require.NoError(t, err)
	assert.True(t, svc.Current().ChatEnabled)

	src.set(Features{ChatEnabled: true, WhatsAppEnabled: true}, nil)
	snap, err := svc.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Features.WhatsAppEnabled)
	assert.True(t, svc.Current().WhatsAppEnabled)

	// Invalid flags keep the previous snapshot.
	src.set(Features{VoiceEnabled: true}, nil)
	_, err = svc.Reload(context.Background())
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.True(t, svc.Current().ChatEnabled)
	assert.True(t, svc.Current().WhatsAppEnabled)

	// Source failures too.
	src.set(Features{}, errors.New("config file unreadable"))
	_, err = svc.Reload(context.Background())
	assert.Error(t, err)
	assert.True(t, svc.Current().ChatEnabled)
}

func TestNewService_RejectsInvalidInitialFlags(t *testing.T) {
	t.Parallel()

	_, err := NewService(context.Background(), StaticSource(Features{VoiceEnabled: true}), testLogger())
	assert.Error(t, err)

	_, err = NewService(context.Background(), nil, testLogger())
	assert.Error(t, err)
}

func TestService_ConcurrentReadsDuringReload(t *testing.T) {
	t.Parallel()

	src := &mutableSource{f: Features{ChatEnabled: true}}
	svc, err := NewService(context.Background(), src, testLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					src.set(Features{ChatEnabled: true, VoiceEnabled: j%2 == 0}, nil)
					_, _ = svc.Reload(context.Background())
				} else {
					f := svc.Current()
					assert.NoError(t, f.Validate())
				}
			}
		}(i)
	}
	wg.Wait()
}
