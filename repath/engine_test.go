package repath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flint-toolkit/flintcore/bin"
)

const (
	voPath   = "assets/sounds/wwise2016/vo/en_us/characters/kayn/kayn_vo.wpk"
	sfxPath  = "assets/sounds/wwise2016/sfx/characters/kayn/skins/skin20/kayn_skin20_sfx_audio.bnk"
	skinPath = "assets/characters/kayn/skins/skin20/kayn_skin20_base.skn"
)

func writeFixtureSkinBin(t *testing.T, path string) {
	t.Helper()
	tree := bin.NewTree(1)
	tree.Objects[1] = bin.Object{
		ClassHash: 100,
		Properties: map[uint32]bin.Value{
			1: bin.StringValue(voPath),
			2: bin.StringValue(sfxPath),
			3: bin.StringValue(skinPath),
		},
	}
	out, err := bin.Write(tree)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, out, 0o644))
}

func writeFixtureAsset(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("fixture-content:"+rel), 0o644))
}

func newFixtureProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	mainBin := filepath.Join(root, "data", "characters", "kayn", "skins", "skin20.bin")
	writeFixtureSkinBin(t, mainBin)

	writeFixtureAsset(t, root, voPath)
	writeFixtureAsset(t, root, sfxPath)
	writeFixtureAsset(t, root, skinPath)

	return root
}

func testConfig() RepathConfig {
	return RepathConfig{
		CreatorName:  "SirDexal",
		ProjectName:  "Cozy",
		Champion:     "Kayn",
		TargetSkinID: 20,
	}
}

func TestRepathProjectRelocatesAndRewrites(t *testing.T) {
	root := newFixtureProject(t)
	cfg := testConfig()

	result, collisions, err := RepathProject(root, cfg, nil, false)
	require.NoError(t, err)
	require.Empty(t, collisions)
	require.Empty(t, result.MissingPaths)

	require.Equal(t, 1, result.BinsProcessed)
	require.Equal(t, 2, result.PathsModified)  // VO path is unchanged, sfx+skin paths rewritten
	require.Equal(t, 2, result.FilesRelocated) // VO file never moves

	// VO stays exactly where it was.
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(voPath)))
	require.NoError(t, err)

	// SFX relocated to filename-only under ASSETS/<creator>/<project>/audio/sfx/.
	sfxDest := filepath.Join(root, "ASSETS", "SirDexal", "Cozy", "audio", "sfx", "kayn_skin20_sfx_audio.bnk")
	_, err = os.Stat(sfxDest)
	require.NoError(t, err)

	// Skin file relocated with skin folder dropped and renamed to the target skin.
	skinDest := filepath.Join(root, "ASSETS", "SirDexal", "Cozy", "skin20", "kayn_skin20_base.skn")
	_, err = os.Stat(skinDest)
	require.NoError(t, err)

	// The rewritten skin BIN's string leaves now read the new destinations.
	data, err := os.ReadFile(mainBinPath(root))
	require.NoError(t, err)
	tree, err := bin.Read(data)
	require.NoError(t, err)
	leaves := bin.CollectStringLeaves(tree)
	require.Contains(t, leaves, voPath)
	require.Contains(t, leaves, "ASSETS/SirDexal/Cozy/audio/sfx/kayn_skin20_sfx_audio.bnk")
	require.Contains(t, leaves, "ASSETS/SirDexal/Cozy/skin20/kayn_skin20_base.skn")
}

func TestRepathProjectIsIdempotent(t *testing.T) {
	root := newFixtureProject(t)
	cfg := testConfig()

	_, _, err := RepathProject(root, cfg, nil, false)
	require.NoError(t, err)

	second, collisions, err := RepathProject(root, cfg, nil, false)
	require.NoError(t, err)
	require.Empty(t, collisions)
	require.Equal(t, 0, second.PathsModified)
	require.Equal(t, 0, second.FilesRelocated)
}

func TestRepathProjectDryRunLeavesFilesystemUntouched(t *testing.T) {
	root := newFixtureProject(t)
	cfg := testConfig()

	result, _, err := RepathProject(root, cfg, nil, true)
	require.NoError(t, err)
	require.Equal(t, 2, result.PathsModified)
	require.Equal(t, 2, result.FilesRelocated)

	// Nothing actually moved.
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(sfxPath)))
	require.NoError(t, err, "dry run must not relocate the sfx file")

	sfxDest := filepath.Join(root, "ASSETS", "SirDexal", "Cozy", "audio", "sfx", "kayn_skin20_sfx_audio.bnk")
	_, err = os.Stat(sfxDest)
	require.True(t, os.IsNotExist(err), "dry run must not create the destination file")

	// BIN string leaves unchanged on disk.
	data, err := os.ReadFile(mainBinPath(root))
	require.NoError(t, err)
	tree, err := bin.Read(data)
	require.NoError(t, err)
	require.Contains(t, bin.CollectStringLeaves(tree), sfxPath)
}

func TestRepathProjectReportsMissingReferences(t *testing.T) {
	root := t.TempDir()
	mainBin := filepath.Join(root, "data", "characters", "kayn", "skins", "skin20.bin")
	writeFixtureSkinBin(t, mainBin)
	// Only the VO asset exists on disk; sfx and skin paths are missing.
	writeFixtureAsset(t, root, voPath)

	cfg := testConfig()
	result, _, err := RepathProject(root, cfg, nil, false)
	require.NoError(t, err)
	require.Len(t, result.MissingPaths, 2)
}

func mainBinPath(root string) string {
	return filepath.Join(root, "data", "characters", "kayn", "skins", "skin20.bin")
}

func TestRepathProjectReportsCollisions(t *testing.T) {
	root := t.TempDir()

	// Two distinct sfx sources that both reduce to the same destination
	// filename once classified (spec.md §4.4 step 7 collision handling).
	sfxA := "assets/sounds/wwise2016/sfx/characters/kayn/skins/skin20/shared_hit.bnk"
	sfxB := "assets/sounds/wwise2016/sfx/characters/kayn/other/shared_hit.bnk"

	mainBin := mainBinPath(root)
	tree := bin.NewTree(1)
	tree.Objects[1] = bin.Object{
		ClassHash: 100,
		Properties: map[uint32]bin.Value{
			1: bin.StringValue(sfxA),
			2: bin.StringValue(sfxB),
		},
	}
	out, err := bin.Write(tree)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(mainBin), 0o755))
	require.NoError(t, os.WriteFile(mainBin, out, 0o644))

	writeFixtureAsset(t, root, sfxA)
	writeFixtureAsset(t, root, sfxB)

	cfg := testConfig()
	result, collisions, err := RepathProject(root, cfg, nil, false)
	require.NoError(t, err)
	require.Len(t, collisions, 1)
	require.Equal(t, "ASSETS/SirDexal/Cozy/audio/sfx/shared_hit.bnk", collisions[0].Destination)
	require.Len(t, collisions[0].Skipped, 1)
	// Only the winner actually relocates.
	require.Equal(t, 1, result.FilesRelocated)
}
