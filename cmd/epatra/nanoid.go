package main

import (
	"fmt"

	"epatra/internal/utils"

	"github.com/urfave/cli/v2"
)

var nanoidCommand = &cli.Command{
	Name:  "nanoid",
	Usage: "Generate fixed ids for new entries in the role and field seeds",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Usage:   "Number of ids to generate",
			Value:   1,
		},
		&cli.BoolFlag{
			Name:  "literal",
			Usage: "Print each id as an ID field ready to paste into internal/seed",
		},
	},
	Action: func(c *cli.Context) error {
		for range c.Int("count") {
			id := utils.NanoID()
			if c.Bool("literal") {
				fmt.Printf("ID: %q,\n", id)
				continue
			}
			fmt.Println(id)
		}
		return nil
	},
}
