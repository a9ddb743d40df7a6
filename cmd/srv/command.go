package main

import "github.com/urfave/cli/v2"

func (s *srv) loadApp() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path of the toml config file, the environment overrides it",
		EnvVars: []string{"CONFIG_FILE"},
	}

	s.app = cli.NewApp()
	s.app.Action = cli.ShowAppHelp
	s.app.Name = "lottery"
	s.app.Usage = "Ticket allocation service of the on-chain lottery"
	s.app.Flags = []cli.Flag{configFlag}
	s.app.Before = s.loadConfig
	s.app.Commands = []*cli.Command{
		{
			Action:      s.startApi,
			Name:        "api",
			Usage:       "Start service api",
			Category:    "Api",
			Description: `Serves the lottery api and reconciles every network in background.`,
		},
		{
			Action:      s.startSweep,
			Name:        "sweep",
			Usage:       "Reconcile every network once",
			Category:    "Worker",
			Description: `Brings the local tickets of the current rounds in line with the ledgers and exits.`,
		},
		{
			Action:      s.startMigrate,
			Name:        "migrate",
			Usage:       "Migrate the database",
			Category:    "Database",
			Description: `Creates or updates the tables of rounds, tickets, transactions and users.`,
		},
	}
}
