package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func (s *srv) startSweep(cctx *cli.Context) error {
	if err := s.loadAll(); err != nil {
		return err
	}

	var failed int
	for _, network := range s.engine.Networks() {
		report, err := s.engine.Reconcile(s.ctx, network)
		if err != nil {
			failed++
			fmt.Fprintf(cctx.App.Writer, "%s: %v\n", network, err)
			continue
		}

		fmt.Fprintln(cctx.App.Writer, report)
	}

	s.engine.Wait()
	if failed > 0 {
		return fmt.Errorf("%d network(s) failed to reconcile", failed)
	}

	return nil
}
