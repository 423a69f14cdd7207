package app

import (
	"testing"

	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
)

func TestModule_ValidatesForEachBackend(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		backend string
	}{
		{"file stories, file ledger", "file", "file"},
		{"file stories, pebble ledger", "file", "pebble"},
		{"file stories, memory ledger", "file", "memory"},
		{"postgres stories, postgres ledger", "postgres", "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Stories.Source = tt.source
			cfg.Ledger.Backend = tt.backend
			cfg.Ledger.Path = t.TempDir()

			assert.NoError(t, fx.ValidateApp(Module(cfg)))
		})
	}
}

func TestNeedsPostgres(t *testing.T) {
	cfg := &config.Config{}
	cfg.Stories.Source = "file"
	cfg.Ledger.Backend = "pebble"
	assert.False(t, cfg.NeedsPostgres())

	cfg.Ledger.Backend = "postgres"
	assert.True(t, cfg.NeedsPostgres())
}
