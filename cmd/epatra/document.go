package main

import (
	"context"
	"fmt"

	"epatra/internal/db"
	"epatra/internal/store"
	"epatra/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var documentCommand = &cli.Command{
	Name:  "document",
	Usage: "Inspect stored documents",
	Subcommands: []*cli.Command{
		{
			Name:      "show",
			Usage:     "Print a document and its audit trail",
			ArgsUsage: "<id>",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "text",
					Usage: "Include the full OCR text",
				},
			},
			Action: showDocument,
		},
	},
}

func showDocument(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("usage: epatra document show <id>")
	}

	cfg, err := loadConfig(c.String("env-file"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	repos := store.NewRepositories(pool)

	doc, err := repos.Document(ctx, id)
	if err != nil {
		return err
	}

	if !c.Bool("text") && doc.OCRText != nil && len([]rune(*doc.OCRText)) > 200 {
		short := string([]rune(*doc.OCRText)[:200]) + "..."
		doc.OCRText = &short
	}

	entries, err := repos.Entries(ctx, types.AuditFilter{EntityID: id, Limit: 50})
	if err != nil {
		return err
	}

	pp.Println(doc)
	pp.Println(entries)

	return nil
}
