package main

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/omen/internal/progress"
	"github.com/panbanda/omen/internal/tokencache"
	"github.com/panbanda/omen/pkg/analyzer/clones"
	"github.com/panbanda/omen/pkg/config"
	"github.com/panbanda/omen/pkg/output"
	"github.com/panbanda/omen/pkg/source"
)

func runScan(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	paths, err := discoverFiles(getPaths(c))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		color.Yellow("No source files found")
		return nil
	}

	files := source.NewFilesystem()
	spinner := progress.NewSpinner(fmt.Sprintf("Scanning %d files...", len(paths)))

	var result *clones.Result
	if c.Bool("no-cache") || cfg.CacheDirectory == "" {
		result, err = clones.DetectClones(context.Background(), cfg, paths, files)
	} else {
		cache := tokencache.Load(cfg.CacheDirectory)
		var incr *clones.IncrementalResult
		incr, err = clones.DetectClonesIncremental(context.Background(), cfg, paths, files, cache)
		if err == nil {
			result = &incr.Result
			if saveErr := cache.Save(); saveErr != nil {
				color.Yellow("warning: could not persist token cache: %v", saveErr)
			}
		}
	}
	spinner.FinishSuccess()
	if err != nil {
		return fmt.Errorf("clone detection failed: %w", err)
	}

	formatter, err := output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), true)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(newReport(result))
}

// discoverFiles expands each root into every regular file beneath it
// (or itself, if root is already a file).
func discoverFiles(roots []string) ([]string, error) {
	var files []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadOrDefault()
}
