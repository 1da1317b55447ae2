package flintconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, "hashes", cfg.HashDir)
	require.Equal(t, ".", cfg.WorkspaceDir)
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flint.toml")
	toml := `hash_dir = "custom-hashes"

[repath]
creator_name = "SirDexal"
project_name = "Cozy"
champion = "Kayn"
target_skin_id = 20
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom-hashes", cfg.HashDir)
	require.Equal(t, ".", cfg.WorkspaceDir, "unset field keeps its default")
	require.Equal(t, "SirDexal", cfg.Repath.CreatorName)
	require.Equal(t, uint32(20), cfg.Repath.TargetSkinID)
}
