package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sveljko/pgmedian/internal/config"
)

// writeConfig writes a temp config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".pgmedian.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "bigint", cfg.Type)
	assert.Equal(t, 0, cfg.Window)
	assert.Equal(t, config.FormatTable, cfg.Format)
	assert.False(t, cfg.Compress)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "type: text\ncollation: en\nwindow: 5\nformat: yaml\ncompress: true\n")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Type)
	assert.Equal(t, "en", cfg.Collation)
	assert.Equal(t, 5, cfg.Window)
	assert.Equal(t, config.FormatYAML, cfg.Format)
	assert.True(t, cfg.Compress)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "bigint", cfg.Type)
}

func TestLoadConfig_SchemaRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "tpye: bigint\n")

	_, err := config.LoadConfig(path)
	assert.ErrorIs(t, err, config.ErrSchemaViolation)
}

func TestLoadConfig_SchemaRejectsWrongType(t *testing.T) {
	path := writeConfig(t, "window: lots\n")

	_, err := config.LoadConfig(path)
	assert.ErrorIs(t, err, config.ErrSchemaViolation)
}

func TestLoadConfig_NegativeWindowRejected(t *testing.T) {
	path := writeConfig(t, "window: -1\n")

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*config.Config) {}, wantErr: nil},
		{name: "empty_type", mutate: func(c *config.Config) { c.Type = "" }, wantErr: config.ErrMissingType},
		{name: "negative_window", mutate: func(c *config.Config) { c.Window = -2 }, wantErr: config.ErrInvalidWindow},
		{name: "bad_format", mutate: func(c *config.Config) { c.Format = "csv" }, wantErr: config.ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{Type: "bigint", Format: config.FormatTable}
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
