package repath

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// AssetPathKind is the classifier's fixed set of outcomes (spec.md §3,
// §4.4 step 5).
type AssetPathKind int

const (
	KindSoundVo AssetPathKind = iota
	KindSoundSfx
	KindChampionHud
	KindTargetChampionSkin
	KindOtherChampion
	KindShared
)

// ParsedAssetPath is the classifier's output: one variant carrying exactly
// the fields its destination form needs (spec.md §3).
type ParsedAssetPath struct {
	Kind     AssetPathKind
	Original string // exact-case input path; only SoundVo uses this verbatim
	Filename string // SoundSfx, ChampionHud
	Subpath  string // TargetChampionSkin, OtherChampion, Shared
}

var skinFolderRe = regexp.MustCompile(`(^|/)skin\d+/`)

// IsAssetPath reports whether a normalized (lowercase, forward-slash)
// path is a candidate asset reference (spec.md §4.4 step 3).
func IsAssetPath(normalized string) bool {
	return strings.HasPrefix(normalized, "assets/") || strings.HasPrefix(normalized, "data/")
}

// Classify parses p (in its original case) into exactly one
// ParsedAssetPath variant, given the champion this project targets
// (spec.md §4.4 step 5). Matching decisions are case-insensitive; the
// original case is preserved in the fields carried forward, except
// SoundVo's Original which preserves the input byte-for-byte.
func Classify(p, champion string) ParsedAssetPath {
	original := p
	slashed := strings.ReplaceAll(p, `\`, "/")
	lower := strings.ToLower(slashed)

	rel := slashed
	relLower := lower
	switch {
	case strings.HasPrefix(relLower, "assets/"):
		rel = slashed[len("assets/"):]
		relLower = lower[len("assets/"):]
	case strings.HasPrefix(relLower, "data/"):
		rel = slashed[len("data/"):]
		relLower = lower[len("data/"):]
	}

	segsLower := strings.Split(relLower, "/")
	segs := strings.Split(rel, "/")

	if containsSegment(segsLower, "sounds") {
		if containsSegment(segsLower, "vo") {
			return ParsedAssetPath{Kind: KindSoundVo, Original: original}
		}
		if containsSegment(segsLower, "sfx") {
			return ParsedAssetPath{Kind: KindSoundSfx, Filename: path.Base(rel)}
		}
	}

	championLower := strings.ToLower(champion)
	if len(segsLower) >= 2 && segsLower[0] == "characters" {
		champSeg := segs[1]
		isTarget := segsLower[1] == championLower

		if isTarget && len(segsLower) >= 3 && segsLower[2] == "hud" {
			return ParsedAssetPath{Kind: KindChampionHud, Filename: path.Base(rel)}
		}

		rest := strings.Join(segs[2:], "/")
		sub := remapSubpath(rest)
		if isTarget {
			return ParsedAssetPath{Kind: KindTargetChampionSkin, Subpath: sub}
		}
		_ = champSeg
		return ParsedAssetPath{Kind: KindOtherChampion, Subpath: sub}
	}

	return ParsedAssetPath{Kind: KindShared, Subpath: rel}
}

func containsSegment(segs []string, name string) bool {
	for _, s := range segs {
		if s == name {
			return true
		}
	}
	return false
}

// remapSubpath drops the first literal "skins/" folder segment. It does not
// rename "skin<N>/" segments; Destination does that through RemapSkinIDs,
// whose pattern requires a trailing slash so filename occurrences of
// "skinN" are untouched (spec.md §4.4 step 5, §9 "filenames embedding
// skin<N> are not rewritten").
func remapSubpath(rest string) string {
	rest = strings.Replace(rest, "skins/", "", 1)
	return rest
}

// RemapSkinIDs rewrites every "skin<N>/" directory segment in path to
// "skin<target>/".
func RemapSkinIDs(p string, target uint32) string {
	return skinFolderRe.ReplaceAllString(p, fmt.Sprintf("${1}skin%d/", target))
}

// Destination computes p's repathed output path under cfg (spec.md §4.4
// step 5's output-form column). For target-champion-skin and
// other-champion paths it applies RemapSkinIDs to Subpath; Classify leaves
// Subpath un-remapped so tests can inspect it before remap.
func (p ParsedAssetPath) Destination(cfg RepathConfig) string {
	switch p.Kind {
	case KindSoundVo:
		return p.Original
	case KindSoundSfx:
		return "ASSETS/" + cfg.Prefix() + "/audio/sfx/" + p.Filename
	case KindChampionHud:
		return "ASSETS/" + cfg.CreatorSlug() + "/hud/" + p.Filename
	case KindTargetChampionSkin:
		return "ASSETS/" + cfg.Prefix() + "/" + RemapSkinIDs(p.Subpath, cfg.TargetSkinID)
	case KindOtherChampion:
		return "ASSETS/" + cfg.CreatorSlug() + "/shared-champion/" + RemapSkinIDs(p.Subpath, cfg.TargetSkinID)
	default: // KindShared
		return "ASSETS/" + cfg.CreatorSlug() + "/shared/" + p.Subpath
	}
}

// parseSkinID reads back a skin number from a folder segment like
// "skin42". Nothing in the repository calls it at present.
func parseSkinID(seg string) (uint32, bool) {
	if !strings.HasPrefix(seg, "skin") {
		return 0, false
	}
	n, err := strconv.ParseUint(seg[len("skin"):], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
