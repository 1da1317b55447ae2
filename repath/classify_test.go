package repath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySoundVoPreservesExactCase(t *testing.T) {
	path := "assets/sounds/wwise2016/vo/en_us/characters/kayn/kayn_vo.wpk"
	cfg := RepathConfig{CreatorName: "SirDexal", ProjectName: "Cozy", Champion: "Kayn", TargetSkinID: 20}

	p := Classify(path, cfg.Champion)
	assert.Equal(t, KindSoundVo, p.Kind)
	assert.Equal(t, path, p.Destination(cfg))
}

func TestClassifySoundSfxRewritesToFilenameOnly(t *testing.T) {
	path := "assets/sounds/wwise2016/sfx/characters/kayn/skins/skin20/kayn_skin20_sfx_audio.bnk"
	cfg := RepathConfig{CreatorName: "SirDexal", ProjectName: "Cozy", Champion: "Kayn", TargetSkinID: 20}

	p := Classify(path, cfg.Champion)
	assert.Equal(t, KindSoundSfx, p.Kind)
	assert.Equal(t, "ASSETS/SirDexal/Cozy/audio/sfx/kayn_skin20_sfx_audio.bnk", p.Destination(cfg))
}

func TestClassifySkinFolderRemapPreservesFilename(t *testing.T) {
	path := "assets/characters/renekton/skins/skin17/renekton_skin17_base.skn"
	cfg := RepathConfig{CreatorName: "SirDexal", ProjectName: "Renny", Champion: "Renekton", TargetSkinID: 42}

	p := Classify(path, cfg.Champion)
	assert.Equal(t, KindTargetChampionSkin, p.Kind)
	assert.Equal(t, "ASSETS/SirDexal/Renny/skin42/renekton_skin17_base.skn", p.Destination(cfg))
}

func TestClassifyOtherChampionSharedChampionBucket(t *testing.T) {
	path := "assets/characters/ahri/vfx/foo.vfx"
	cfg := RepathConfig{CreatorName: "SirDexal", ProjectName: "Cozy", Champion: "Kayn", TargetSkinID: 20}

	p := Classify(path, cfg.Champion)
	assert.Equal(t, KindOtherChampion, p.Kind)
	assert.Equal(t, "ASSETS/SirDexal/shared-champion/vfx/foo.vfx", p.Destination(cfg))
}

func TestClassifyChampionHud(t *testing.T) {
	path := "assets/characters/kayn/hud/kayn_square.png"
	cfg := RepathConfig{CreatorName: "SirDexal", ProjectName: "Cozy", Champion: "Kayn", TargetSkinID: 20}

	p := Classify(path, cfg.Champion)
	assert.Equal(t, KindChampionHud, p.Kind)
	assert.Equal(t, "ASSETS/SirDexal/hud/kayn_square.png", p.Destination(cfg))
}

func TestClassifySharedFallback(t *testing.T) {
	path := "data/shaders/common.fx"
	cfg := RepathConfig{CreatorName: "SirDexal", ProjectName: "Cozy", Champion: "Kayn", TargetSkinID: 20}

	p := Classify(path, cfg.Champion)
	assert.Equal(t, KindShared, p.Kind)
	assert.Equal(t, "ASSETS/SirDexal/shared/shaders/common.fx", p.Destination(cfg))
}
