package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperr "citspace/internal/error"
	"citspace/internal/models"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m := NewManager(path)
	require.NoError(t, m.Load())

	_, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, DefaultAPIURL, m.Config().APIURL)
	require.Equal(t, DefaultMarkers, m.Config().Markers)
	require.Equal(t, 2*time.Second, m.ScrollQuiet())
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"api_url": "https://panel.example.com",
		"servers": [{"id": 4, "name": "db-1", "host": "10.1.0.4"}]
	}`), 0600))

	m := NewManager(path)
	require.NoError(t, m.Load())
	require.Equal(t, "https://panel.example.com", m.Config().APIURL)
	require.Equal(t, DefaultRelayPath, m.Config().RelayPath)
	require.Equal(t, []int{1000}, m.Config().ClosePolicy.NormalCodes)

	s, err := m.FindServer("db-1")
	require.NoError(t, err)
	require.Equal(t, 4, s.ID)
	s, err = m.FindServer("4")
	require.NoError(t, err)
	require.Equal(t, "db-1", s.Name)
	_, err = m.FindServer("nope")
	require.True(t, apperr.Is(err, apperr.ValidationError))
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"servers":[{"id":1,"host":"a"},{"id":1,"host":"b"}]}`), 0600))
	err := NewManager(path).Load()
	require.True(t, apperr.Is(err, apperr.ValidationError))

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0600))
	err = NewManager(path).Load()
	require.True(t, apperr.Is(err, apperr.ConfigError))
}

func TestApplyEnv(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, m.Load())
	t.Setenv(EnvAPIURL, "https://override.example.com")
	m.ApplyEnv()
	require.Equal(t, "https://override.example.com", m.Config().APIURL)
}

func TestAddServerSaveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManager(path)
	require.NoError(t, m.Load())
	require.NoError(t, m.AddServer(models.Server{ID: 9, Name: "api-1", Host: "10.0.0.9"}))
	require.Error(t, m.AddServer(models.Server{ID: 9, Host: "x"}))
	require.Error(t, m.AddServer(models.Server{ID: 10}))
	require.NoError(t, m.Save())

	again := NewManager(path)
	require.NoError(t, again.Load())
	require.Len(t, again.GetServers(), 1)
}

func TestRelayConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.json")
	cfg, err := LoadRelay(path)
	require.NoError(t, err)
	require.Equal(t, DefaultRelayPath, cfg.Path)

	require.NoError(t, PutKey(cfg, models.Key{ServerID: 2, Path: "/keys/a"}))
	require.NoError(t, PutKey(cfg, models.Key{ServerID: 2, Path: "/keys/b"}))
	require.Error(t, PutKey(cfg, models.Key{ServerID: 3}))
	require.NoError(t, SaveRelay(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadRelay(path)
	require.NoError(t, err)
	require.Len(t, loaded.Keys, 1)
	require.Equal(t, "/keys/b", loaded.Keys[0].Path)
}
