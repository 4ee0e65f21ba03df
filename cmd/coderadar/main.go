// Command coderadar is a thin demo CLI over internal/engine.Core: every
// subcommand does nothing but parse flags, build one Core, and call one of
// its five operations.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/coderadar-dev/coderadar/internal/config"
	"github.com/coderadar-dev/coderadar/internal/debug"
	"github.com/coderadar-dev/coderadar/internal/engine"
	"github.com/coderadar-dev/coderadar/internal/querybuilder"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadKDL(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if c.Bool("debug") {
		debug.Enable()
		debug.SetOutput(os.Stderr)
	}
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:  "coderadar",
		Usage: "incremental full-text code search for AI coding agents",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "workspace root (defaults to cwd)"},
			&cli.BoolFlag{Name: "debug", Usage: "enable diagnostic logging"},
		},
		Commands: []*cli.Command{
			indexCommand(),
			searchCommand(),
			grepCommand(),
			watchCommand(),
			statusCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "index (or re-index) a workspace",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "discard the existing index and rebuild from scratch"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			root := workspaceArg(c)

			core := engine.New(cfg)
			defer core.Close()

			res, err := core.IndexWorkspace(context.Background(), root, engine.IndexOptions{
				ForceRebuild: c.Bool("force"),
			})
			if err != nil {
				return err
			}

			fmt.Printf("workspace %s: indexed %d files, skipped %d, deleted %d, %d errors (%s)\n",
				res.WorkspaceID, res.Stats.FilesIndexed, res.Stats.FilesSkipped,
				res.Stats.FilesDeleted, len(res.Stats.Errors), res.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "document-level search",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "standard", Usage: "literal|code|standard|wildcard|regex|fuzzy|phrase"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
			&cli.BoolFlag{Name: "context", Value: true, Usage: "include matched-line context"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			root := workspaceArg(c)
			query := c.Args().First()
			if query == "" {
				return fmt.Errorf("search requires a query argument")
			}

			core := engine.New(cfg)
			defer core.Close()

			res, err := core.Search(context.Background(), root, querybuilder.Request{
				Text: query,
				Mode: querybuilder.Mode(c.String("mode")),
			}, c.Int("limit"), c.Bool("context"))
			if err != nil {
				return err
			}

			for _, h := range res.Hits {
				fmt.Printf("%.3f  %s:%d  %s\n", h.Score, h.RelativePath, h.Line, h.LineText)
			}
			if res.Truncated {
				fmt.Fprintln(os.Stderr, "(results truncated: search deadline exceeded)")
			}
			return nil
		},
	}
}

func grepCommand() *cli.Command {
	return &cli.Command{
		Name:      "grep",
		Usage:     "line-level search across every matching line",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "standard"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 200},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			root := workspaceArg(c)
			query := c.Args().First()
			if query == "" {
				return fmt.Errorf("grep requires a query argument")
			}

			core := engine.New(cfg)
			defer core.Close()

			res, err := core.SearchLines(context.Background(), root, querybuilder.Request{
				Text: query,
				Mode: querybuilder.Mode(c.String("mode")),
			}, c.Int("limit"))
			if err != nil {
				return err
			}

			for _, h := range res.Hits {
				fmt.Printf("%s:%d: %s\n", h.RelativePath, h.Line, h.LineText)
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "index the workspace, then keep it updated on file changes until interrupted",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			cfg.Watch.Enabled = true
			root := workspaceArg(c)

			core := engine.New(cfg)
			defer core.Close()

			res, err := core.IndexWorkspace(context.Background(), root, engine.IndexOptions{})
			if err != nil {
				return err
			}
			fmt.Printf("workspace %s: indexed %d files, watching %s for changes (ctrl-c to stop)\n",
				res.WorkspaceID, res.Stats.FilesIndexed, root)

			select {}
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "index a workspace and report the run's indexed/skipped/deleted file counts",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			root := workspaceArg(c)

			core := engine.New(cfg)
			defer core.Close()

			res, err := core.IndexWorkspace(context.Background(), root, engine.IndexOptions{})
			if err != nil {
				return err
			}
			fmt.Printf("workspace %s: %d files indexed, %d skipped, %d deleted\n",
				res.WorkspaceID, res.Stats.FilesIndexed, res.Stats.FilesSkipped, res.Stats.FilesDeleted)
			return nil
		},
	}
}

func workspaceArg(c *cli.Context) string {
	if root := c.String("root"); root != "" {
		return root
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}
