package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/scailotto/backend/internal/domain/cron"
	"github.com/scailotto/backend/internal/middleware"
	"github.com/scailotto/backend/pkg/prometheus"
	"github.com/scailotto/backend/pkg/router"
	"github.com/scailotto/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func (s *srv) startApi(*cli.Context) error {
	if err := s.loadAll(); err != nil {
		return err
	}
	s.loadRouter()

	// The engine keeps s.ctx, finality waits must survive the signal.
	ctx, stop := signal.NotifyContext(s.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := xcontext.Configs(s.ctx)
	apiServer := &http.Server{
		Addr: cfg.ApiServer.Address(),
		Handler: cors.New(cors.Options{
			AllowedOrigins: cfg.ApiServer.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding"},
		}).Handler(s.router.Handler()),
	}
	promServer := &http.Server{
		Addr:    cfg.PrometheusServer.Address(),
		Handler: prometheus.NewHandler(),
	}

	cronJobManager := cron.NewCronJobManager()
	cronJobManager.Register(cron.NewReconcileCronJob(s.engine, cfg.Lottery.SweepInterval.Duration))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		xcontext.Logger(s.ctx).Infof("Starting server on port: %s", cfg.ApiServer.Port)
		return listen(apiServer)
	})
	g.Go(func() error {
		xcontext.Logger(s.ctx).Infof("Starting prometheus on port: %s", cfg.PrometheusServer.Port)
		return listen(promServer)
	})
	g.Go(func() error {
		cronJobManager.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		apiErr := apiServer.Shutdown(shutdownCtx)
		promErr := promServer.Shutdown(shutdownCtx)
		return errors.Join(apiErr, promErr)
	})

	err := g.Wait()

	// Purchases which already reached the ledger settle before exit.
	xcontext.Logger(s.ctx).Infof("Waiting for pending purchases")
	s.engine.Wait()
	xcontext.Logger(s.ctx).Infof("Server stopped")
	return err
}

func listen(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *srv) loadRouter() {
	if xcontext.Configs(s.ctx).Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = router.New(s.ctx)
	s.router.Before(middleware.WithStartTime())
	s.router.AddCloser(middleware.Logger())
	s.router.AddCloser(middleware.Prometheus())

	// Lottery API
	lotteryRouter := s.router.Group("/lottery")
	{
		router.GET(lotteryRouter, "/current/:network", s.lotteryDomain.GetCurrentRound)
		router.GET(lotteryRouter, "/purchased/:network", s.lotteryDomain.GetPurchasedTickets)
		router.GET(lotteryRouter, "/tickets/:network", s.lotteryDomain.GetRoundTickets)
		router.GET(lotteryRouter, "/history/:network", s.lotteryDomain.GetHistory)
		router.GET(lotteryRouter, "/fee/:network/:ticket", s.lotteryDomain.EstimateFee)
		router.POST(lotteryRouter, "/purchase", s.lotteryDomain.PurchaseTicket)
	}

	// User API
	userRouter := s.router.Group("/user")
	{
		router.GET(userRouter, "/:address", s.userDomain.GetUser)
		router.GET(userRouter, "/:address/tickets", s.userDomain.GetTickets)
		router.GET(userRouter, "/:address/transactions", s.userDomain.GetTransactions)
	}
}
