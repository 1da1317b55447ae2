// Command flintctl is a thin smoke-test harness over the flintcore
// packages. It exercises each core operation from a terminal; it is not a
// replacement for the source tool's UI, and its flag parsing is
// deliberately minimal (command dispatch and UI are out of scope for this
// repo — see SPEC_FULL.md).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/flint-toolkit/flintcore/checkpoint"
	"github.com/flint-toolkit/flintcore/hashcat"
	"github.com/flint-toolkit/flintcore/internal/flintconfig"
	"github.com/flint-toolkit/flintcore/repath"
	"github.com/flint-toolkit/flintcore/wad"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "resolve":
		err = runResolve(os.Args[2:])
	case "extract":
		err = runExtract(os.Args[2:])
	case "repath":
		err = runRepath(os.Args[2:])
	case "checkpoint":
		err = runCheckpoint(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "flintctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: flintctl <command> [args]

commands:
  resolve    -hashdir DIR -hash HEX
  extract    -hashdir DIR -out DIR WAD [WAD...]
  repath     -creator NAME -project NAME -champion NAME -skin N ROOT
  checkpoint create|list|restore|diff [args]`)
}

func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	hashDir := fs.String("hashdir", "", "hash manifest directory")
	hexHash := fs.String("hash", "", "hash to resolve, hex")
	if err := fs.Parse(args); err != nil {
		return err
	}
	idx, err := hashcat.OpenOrBuildPersistent(*hashDir)
	if err != nil {
		return err
	}
	defer idx.Close()

	var h uint64
	if _, err := fmt.Sscanf(*hexHash, "%x", &h); err != nil {
		return fmt.Errorf("invalid hash %q: %w", *hexHash, err)
	}
	resolver := hashcat.AsResolver(idx)
	fmt.Println(resolver.Resolve(h))
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	hashDir := fs.String("hashdir", "", "hash manifest directory")
	outDir := fs.String("out", "", "output directory")
	replace := fs.Bool("replace", false, "overwrite existing output files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, wadPath := range fs.Args() {
		result, err := wad.ExtractWAD(wadPath, *outDir, *hashDir, *replace)
		if err != nil {
			return err
		}
		fmt.Printf("%s: extracted %d, skipped %d, unresolved %d\n",
			wadPath, result.Extracted, result.Skipped, len(result.UnresolvedHash))
	}
	return nil
}

func runRepath(args []string) error {
	fs := flag.NewFlagSet("repath", flag.ExitOnError)
	configPath := fs.String("config", "flint.toml", "optional flint.toml path; flags below override its [repath] section")
	creator := fs.String("creator", "", "creator name")
	project := fs.String("project", "", "project name")
	champion := fs.String("champion", "", "champion name")
	skin := fs.Uint("skin", 0, "target skin id")
	cleanup := fs.Bool("cleanup", false, "remove files no longer referenced")
	dryRun := fs.Bool("dry-run", false, "report without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	root := fs.Arg(0)
	if root == "" {
		return fmt.Errorf("missing content root argument")
	}

	fileCfg, err := flintconfig.Load(*configPath)
	if err != nil {
		return err
	}
	cfg := fileCfg.Repath
	// Flags always win over the file, which always wins over struct
	// defaults (SPEC_FULL.md §3 "Configuration").
	if *creator != "" {
		cfg.CreatorName = *creator
	}
	if *project != "" {
		cfg.ProjectName = *project
	}
	if *champion != "" {
		cfg.Champion = *champion
	}
	if *skin != 0 {
		cfg.TargetSkinID = uint32(*skin)
	}
	if *cleanup {
		cfg.CleanupUnused = true
	}
	result, collisions, err := repath.RepathProject(root, cfg, nil, *dryRun)
	if err != nil {
		return err
	}
	fmt.Printf("bins=%d paths_modified=%d relocated=%d removed=%d missing=%d collisions=%d\n",
		result.BinsProcessed, result.PathsModified, result.FilesRelocated,
		result.FilesRemoved, len(result.MissingPaths), len(collisions))
	return nil
}

func runCheckpoint(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("checkpoint requires a subcommand: create|list|restore|diff")
	}
	fs := flag.NewFlagSet("checkpoint", flag.ExitOnError)
	root := fs.String("root", ".", "project root")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	store := checkpoint.New(*root)

	switch args[0] {
	case "create":
		return checkpointCreate(store, fs.Args())
	case "list":
		return checkpointList(store)
	case "restore":
		if fs.NArg() < 1 {
			return fmt.Errorf("restore requires a checkpoint id")
		}
		return store.Restore(fs.Arg(0))
	case "diff":
		if fs.NArg() < 2 {
			return fmt.Errorf("diff requires two checkpoint ids")
		}
		d, err := store.Diff(fs.Arg(0), fs.Arg(1))
		if err != nil {
			return err
		}
		fmt.Printf("added=%d modified=%d deleted=%d\n", len(d.Added), len(d.Modified), len(d.Deleted))
		return nil
	default:
		return fmt.Errorf("unknown checkpoint subcommand %q", args[0])
	}
}

func checkpointCreate(store *checkpoint.Store, rest []string) error {
	message := "checkpoint"
	if len(rest) > 0 {
		message = rest[0]
	}

	p := mpb.New()
	var bar *mpb.Bar
	cp, err := store.CreateWithProgress(message, nil, func(phase string, current, total int) {
		if bar == nil && total > 0 {
			bar = p.AddBar(int64(total), mpb.PrependDecorators(decor.Name(phase)))
		}
		if bar != nil {
			bar.SetCurrent(int64(current))
		}
	})
	p.Wait()
	if err != nil {
		return err
	}
	fmt.Printf("checkpoint %s created (%d files)\n", cp.ID, len(cp.Manifest))
	return nil
}

func checkpointList(store *checkpoint.Store) error {
	all, err := store.List()
	if err != nil {
		return err
	}
	for _, cp := range all {
		fmt.Printf("%s  %s  %s\n", cp.ID, cp.Message, cp.Tags)
	}
	return nil
}
