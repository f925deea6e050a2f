// Package server assembles the reminder pipeline: roster, parser,
// validator, clarification coordinator, scheduler, and the HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/fieldops/remindd/internal/profile"
	"github.com/fieldops/remindd/plugin/delivery"
	"github.com/fieldops/remindd/plugin/parser"
	"github.com/fieldops/remindd/server/clarify"
	"github.com/fieldops/remindd/server/roster"
	apiv1 "github.com/fieldops/remindd/server/router/api/v1"
	"github.com/fieldops/remindd/server/scheduler"
	"github.com/fieldops/remindd/server/service/intake"
	"github.com/fieldops/remindd/server/stats"
	"github.com/fieldops/remindd/server/validate"
	"github.com/fieldops/remindd/store"
)

// conversationTTL is how long an idle finished conversation is kept before
// the cleanup sweep drops it.
const conversationTTL = 24 * time.Hour

// Server is the assembled remindd process.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	Roster      *roster.Roster
	Scheduler   *scheduler.Scheduler
	Coordinator *clarify.Coordinator
	Intake      *intake.Service
	Stats       *stats.Collector

	echoServer *echo.Echo
	logger     *slog.Logger
}

// Option overrides a collaborator before assembly, used by tests and by
// deployments with custom delivery channels.
type Option func(*options)

type options struct {
	parserClient parser.Client
	deliverer    delivery.Deliverer
}

// WithParserClient replaces the OpenAI-backed parser.
func WithParserClient(client parser.Client) Option {
	return func(o *options) { o.parserClient = client }
}

// WithDeliverer replaces the delivery channel.
func WithDeliverer(d delivery.Deliverer) Option {
	return func(o *options) { o.deliverer = d }
}

// NewServer wires the full pipeline from a profile and an opened store.
func NewServer(ctx context.Context, p *profile.Profile, st *store.Store, opts ...Option) (*Server, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	r, err := roster.Load(p.RosterPath)
	if err != nil {
		return nil, err
	}

	parserClient := o.parserClient
	if parserClient == nil {
		parserClient = parser.NewOpenAIClient(parser.OpenAIConfig{
			APIKey:  p.ParserAPIKey,
			BaseURL: p.ParserBaseURL,
			Model:   p.ParserModel,
			Timeout: p.ParserTimeout,
		})
	}

	deliverer := o.deliverer
	if deliverer == nil {
		if p.WebhookURL != "" {
			deliverer = delivery.NewWebhookDeliverer(delivery.WebhookConfig{
				URL:    p.WebhookURL,
				Secret: p.WebhookSecret,
			})
		} else {
			deliverer = delivery.NewConsoleDeliverer(slog.Default())
		}
	}

	logger := slog.Default()
	sched := scheduler.New(st, deliverer, r, scheduler.Config{
		MaxDeliveryRetries: p.DeliveryRetries,
		EscalationWindow:   p.EscalationWindow,
		OperatorRecipient:  p.OperatorRecipient,
	}, logger)

	intakeService := intake.NewService(st, sched, logger)
	validator := validate.NewValidator(r, p.ConfidenceThreshold)
	coordinator := clarify.NewCoordinator(parserClient, validator, r, intakeService.ConfirmHook(),
		clarify.WithMaxRounds(p.ClarificationRounds))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	collector := stats.NewCollector(st)

	apiService := apiv1.NewAPIV1Service(p, st, coordinator, sched, r, collector)
	apiService.Register(e)

	return &Server{
		Profile:     p,
		Store:       st,
		Roster:      r,
		Scheduler:   sched,
		Coordinator: coordinator,
		Intake:      intakeService,
		Stats:       collector,
		echoServer:  e,
		logger:      logger,
	}, nil
}

// Start recovers persisted schedule state and begins serving HTTP. It
// blocks until the context is canceled or a component fails.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Scheduler.Start(ctx); err != nil {
		return err
	}
	s.Stats.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
		s.logger.Info("remindd listening", slog.String("address", address))
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if dropped := s.Coordinator.Cleanup(conversationTTL); dropped > 0 {
					s.logger.Info("swept idle conversations", slog.Int("dropped", dropped))
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		s.Shutdown()
		return nil
	})

	return g.Wait()
}

// Shutdown stops HTTP, the scheduler, and the store, in that order so
// in-flight requests drain before firing stops.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shut down http server", slog.String("error", err.Error()))
	}

	s.Scheduler.Stop()
	s.Stats.Stop()

	if err := s.Store.Close(); err != nil {
		s.logger.Error("failed to close store", slog.String("error", err.Error()))
	}

	s.logger.Info("remindd stopped")
}
