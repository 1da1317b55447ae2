package repath

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/flint-toolkit/flintcore/bin"
	"github.com/flint-toolkit/flintcore/internal/flog"
	"github.com/flint-toolkit/flintcore/internal/fsutil"
)

const concatBinSuffix = "__concat.bin"

// RepathProject runs the full repathing algorithm over contentRoot
// (spec.md §4.4). pathMappings is a normalized→actual lookup used to
// resolve a main skin BIN's declared dependencies onto real files. When
// dryRun is true, no BIN is rewritten and no file is moved or deleted;
// the returned result and collision reports describe what would happen.
func RepathProject(contentRoot string, cfg RepathConfig, pathMappings map[string]string, dryRun bool) (*RepathResult, []CollisionReport, error) {
	log := flog.Default("repath")

	info, err := os.Stat(contentRoot)
	if err != nil || !info.IsDir() {
		return nil, nil, errors.Errorf("repath: invalid content root %s", contentRoot)
	}

	// Step 1: locate file root.
	fileBase := contentRoot
	wadFolder := filepath.Join(contentRoot, strings.ToLower(cfg.Champion)+".wad.client")
	if st, err := os.Stat(wadFolder); err == nil && st.IsDir() {
		fileBase = wadFolder
	}

	// Step 2: discover BINs.
	binFiles, err := discoverBins(fileBase, cfg.Champion, cfg.TargetSkinID, pathMappings)
	if err != nil {
		return nil, nil, err
	}

	result := &RepathResult{}

	// Step 3: collect referenced asset paths, in parallel across BINs.
	var mu sync.Mutex
	existing := make(map[string]struct{})
	var missing []string
	missingSeen := make(map[string]struct{})

	// A path already living under this project's ASSETS/<creator>/
	// namespace is the output of a prior run, not a reference to migrate;
	// excluding it here is what makes a second run over already-repathed
	// output a no-op (spec.md §8 idempotence property).
	alreadyRepathed := "assets/" + strings.ToLower(cfg.CreatorSlug()) + "/"

	var g errgroup.Group
	for _, binPath := range binFiles {
		binPath := binPath
		g.Go(func() error {
			leaves, err := readLeaves(binPath)
			if err != nil {
				log.WithError(err).Warnf("skipping unreadable BIN %s", binPath)
				return nil
			}
			for _, leaf := range leaves {
				norm := fsutil.NormalizeAssetPath(leaf)
				if !IsAssetPath(norm) || strings.HasPrefix(norm, alreadyRepathed) {
					continue
				}
				// Step 4: existence filter.
				rel, ok := fsutil.ExistsCaseInsensitive(fileBase, norm)
				mu.Lock()
				if ok {
					existing[rel] = struct{}{}
				} else if _, seen := missingSeen[norm]; !seen {
					missingSeen[norm] = struct{}{}
					missing = append(missing, norm)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Strings(missing)
	result.MissingPaths = missing

	// Step 5: classify every existing reference once, shared by the BIN
	// rewrite pass and the relocation pass.
	destinations := make(map[string]string, len(existing))
	for ref := range existing {
		destinations[ref] = Classify(ref, cfg.Champion).Destination(cfg)
	}

	// Step 6: rewrite BIN strings in parallel.
	var bins int32
	var pathsModified int32
	g = errgroup.Group{}
	for _, binPath := range binFiles {
		binPath := binPath
		g.Go(func() error {
			n, err := rewriteBinFile(binPath, destinations, dryRun)
			if err != nil {
				log.WithError(err).Warnf("failed to repath %s", binPath)
				return nil
			}
			mu.Lock()
			bins++
			pathsModified += int32(n)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	result.BinsProcessed = int(bins)
	result.PathsModified = int(pathsModified)

	// Step 7: relocate files.
	relocated, collisions, err := relocateAssets(fileBase, destinations, dryRun)
	if err != nil {
		return nil, nil, err
	}
	result.FilesRelocated = relocated
	for _, c := range collisions {
		log.Warnf("destination collision at %s: kept %s, skipped %v", c.Destination, c.Winner, c.Skipped)
	}

	// Step 8: optional cleanup of unused files.
	if cfg.CleanupUnused && !dryRun {
		removed, err := cleanupUnused(fileBase, destinations, cfg.CreatorSlug())
		if err != nil {
			return nil, nil, err
		}
		result.FilesRemoved = removed
	}

	// Step 9: BIN residue cleanup.
	if !dryRun {
		if err := cleanupBinResidue(fileBase, cfg.Champion, cfg.TargetSkinID); err != nil {
			log.WithError(err).Warn("bin residue cleanup failed")
		}
		// Step 10: empty-directory sweep.
		if err := fsutil.SweepEmptyDirs(fileBase); err != nil {
			log.WithError(err).Warn("empty directory sweep failed")
		}
	}

	return result, collisions, nil
}

func discoverBins(fileBase, champion string, targetSkinID uint32, pathMappings map[string]string) ([]string, error) {
	if champion == "" {
		return walkAllBins(fileBase)
	}

	mainBin := findMainSkinBin(fileBase, champion, targetSkinID)
	if mainBin == "" {
		return walkAllBins(fileBase)
	}

	binFiles := []string{mainBin}
	data, err := os.ReadFile(mainBin)
	if err != nil {
		return binFiles, nil
	}
	tree, err := bin.Read(data)
	if err != nil {
		return binFiles, nil
	}
	for _, dep := range tree.Dependencies {
		norm := fsutil.NormalizeAssetPath(dep)
		actual, ok := pathMappings[norm]
		if !ok {
			actual = norm
		}
		full := filepath.Join(fileBase, filepath.FromSlash(actual))
		if _, err := os.Stat(full); err == nil {
			binFiles = append(binFiles, full)
		}
	}
	return binFiles, nil
}

func findMainSkinBin(fileBase, champion string, targetSkinID uint32) string {
	champLower := strings.ToLower(champion)
	candidates := []string{
		filepath.Join(fileBase, "data", "characters", champLower, "skins", skinFileName(targetSkinID, false)),
		filepath.Join(fileBase, "data", "characters", champLower, "skins", skinFileName(targetSkinID, true)),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func skinFileName(id uint32, padded bool) string {
	if padded {
		return "skin" + zeroPad(id) + ".bin"
	}
	return "skin" + strconv.FormatUint(uint64(id), 10) + ".bin"
}

func walkAllBins(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".bin") {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func readLeaves(binPath string) ([]string, error) {
	data, err := os.ReadFile(binPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", binPath)
	}
	tree, err := bin.Read(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", binPath)
	}
	return bin.CollectStringLeaves(tree), nil
}

// rewriteBinFile rewrites every String leaf whose normalized form is a key
// of destinations, writing the BIN back only if anything changed
// (spec.md §4.4 step 6).
func rewriteBinFile(binPath string, destinations map[string]string, dryRun bool) (int, error) {
	data, err := os.ReadFile(binPath)
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", binPath)
	}
	tree, err := bin.Read(data)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", binPath)
	}

	n := bin.WalkStrings(tree, func(s string) (string, bool) {
		norm := fsutil.NormalizeAssetPath(s)
		if dest, ok := destinations[norm]; ok && dest != s {
			return dest, true
		}
		return s, false
	})
	if n == 0 || dryRun {
		return n, nil
	}

	out, err := bin.Write(tree)
	if err != nil {
		return n, errors.Wrapf(err, "serializing %s", binPath)
	}
	if err := os.WriteFile(binPath, out, 0o644); err != nil {
		return n, errors.Wrapf(err, "writing %s", binPath)
	}
	return n, nil
}

// relocateAssets moves each existing reference to its classified
// destination, detecting collisions deterministically in lexicographic
// source-path order (spec.md §4.4 step 7, §5). A source that fails to move
// is logged and left out of the relocated count; the loop goes on.
func relocateAssets(fileBase string, destinations map[string]string, dryRun bool) (int, []CollisionReport, error) {
	srcs := make([]string, 0, len(destinations))
	for src := range destinations {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)

	destTaken := make(map[string]string)
	var collisions []CollisionReport
	relocated := 0

	for _, src := range srcs {
		dest := destinations[src]
		if winner, taken := destTaken[dest]; taken {
			found := false
			for i := range collisions {
				if collisions[i].Destination == dest {
					collisions[i].Skipped = append(collisions[i].Skipped, src)
					found = true
					break
				}
			}
			if !found {
				collisions = append(collisions, CollisionReport{Destination: dest, Winner: winner, Skipped: []string{src}})
			}
			continue
		}
		destTaken[dest] = src

		if src == dest {
			continue // already in place (e.g. VO paths, which never move)
		}
		if dryRun {
			relocated++
			continue
		}
		if err := relocateOne(fileBase, src, dest); err != nil {
			flog.Default("repath").WithError(err).Warnf("failed to relocate %s", src)
			continue
		}
		relocated++
	}
	return relocated, collisions, nil
}

func relocateOne(fileBase, src, dest string) error {
	srcFull := filepath.Join(fileBase, filepath.FromSlash(src))
	destFull := filepath.Join(fileBase, filepath.FromSlash(dest))
	if srcFull == destFull {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(destFull), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent for %s", dest)
	}
	if err := os.Rename(srcFull, destFull); err != nil {
		// Cross-device rename fails with a platform-specific error; fall
		// back to copy-then-remove (spec.md §4.4 step 7).
		if copyErr := copyThenRemove(srcFull, destFull); copyErr != nil {
			return errors.Wrapf(copyErr, "relocating %s", src)
		}
	}
	return nil
}

func copyThenRemove(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}

// cleanupUnused removes non-BIN files under root whose relative path is
// neither an expected destination nor inside creatorSlug's ASSETS subtree
// (spec.md §4.4 step 8).
func cleanupUnused(root string, destinations map[string]string, creatorSlug string) (int, error) {
	expected := make(map[string]struct{}, len(destinations))
	for _, dest := range destinations {
		expected[dest] = struct{}{}
	}
	assetsPrefix := "ASSETS/" + creatorSlug + "/"

	removed := 0
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), ".bin") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, ok := expected[rel]; ok {
			return nil
		}
		if strings.HasPrefix(rel, assetsPrefix) {
			return nil
		}
		if err := os.Remove(p); err == nil {
			removed++
		}
		return nil
	})
	return removed, err
}

// cleanupBinResidue deletes every BIN except the retained whitelist: the
// main skin BIN, its animation BIN, and any concatenated BIN (spec.md
// §4.4 step 9).
func cleanupBinResidue(fileBase, champion string, targetSkinID uint32) error {
	champLower := strings.ToLower(champion)
	keep := map[string]struct{}{
		filepath.Join(fileBase, "data", "characters", champLower, "skins", skinFileName(targetSkinID, false)):      {},
		filepath.Join(fileBase, "data", "characters", champLower, "skins", skinFileName(targetSkinID, true)):       {},
		filepath.Join(fileBase, "data", "characters", champLower, "animations", skinFileName(targetSkinID, false)): {},
		filepath.Join(fileBase, "data", "characters", champLower, "animations", skinFileName(targetSkinID, true)):  {},
	}

	return filepath.WalkDir(fileBase, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), ".bin") {
			return nil
		}
		if _, ok := keep[p]; ok {
			return nil
		}
		if strings.HasSuffix(p, concatBinSuffix) {
			return nil
		}
		return os.Remove(p)
	})
}

func zeroPad(id uint32) string {
	s := strconv.FormatUint(uint64(id), 10)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}
