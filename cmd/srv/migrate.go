package main

import (
	"github.com/scailotto/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startMigrate(*cli.Context) error {
	if err := s.loadDatabase(); err != nil {
		return err
	}

	xcontext.Logger(s.ctx).Infof("Database is migrated")
	return nil
}
