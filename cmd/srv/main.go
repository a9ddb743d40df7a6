package main

import (
	"context"
	"os"

	"github.com/scailotto/backend/pkg/logger"
)

func main() {
	s := &srv{ctx: context.Background()}
	s.loadApp()

	if err := s.app.Run(os.Args); err != nil {
		logger.NewLogger("ERROR").Errorf("%v", err)
		os.Exit(1)
	}
}
