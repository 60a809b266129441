package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "epatra",
		Usage: "Bilingual police document management backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "Dotenv file loaded before the environment is read",
				Value:   ".env",
				EnvVars: []string{"EPATRA_ENV_FILE"},
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			migrateCommand,
			seedCommand,
			documentCommand,
			nanoidCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).WithField("command", os.Args[1:]).Fatal("epatra exited with an error")
	}
}
