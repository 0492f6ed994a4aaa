package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "preferences.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Preference{}, s.Current())
}

func TestUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Update(func(p *Preference) {
		p.SelectedCarID = "car-1"
		p.Language = "fr"
	}))
	assert.Equal(t, Preference{SelectedCarID: "car-1", Language: "fr"}, s.Current())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, s.Current(), reopened.Current())

	require.NoError(t, s.SelectCar(""))
	assert.Equal(t, Preference{Language: "fr"}, s.Current())
}

func TestOpenRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.yaml")
	require.NoError(t, os.WriteFile(path, []byte("selectedCarId: [unterminated"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestPreferencesStreamIsDistinct(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := Open(filepath.Join(t.TempDir(), "preferences.yaml"))
	require.NoError(t, err)
	ch := s.Preferences(ctx)
	assert.Equal(t, Preference{}, <-ch)

	require.NoError(t, s.SetLanguage("de"))
	require.NoError(t, s.SetLanguage("de"))
	require.NoError(t, s.SelectCar("car-2"))

	assert.Equal(t, Preference{Language: "de"}, <-ch)
	assert.Equal(t, Preference{Language: "de", SelectedCarID: "car-2"}, <-ch)
}

func TestRunPicksUpExternalEdits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "preferences.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("selectedCarId: car-9\nlanguageCode: es\n"), 0o600)
		return s.Current() == Preference{SelectedCarID: "car-9", Language: "es"}
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
