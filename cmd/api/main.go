package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"rifa/api/internal/config"
	"rifa/api/internal/db"
	"rifa/api/internal/draw"
	"rifa/api/internal/handlers"
	"rifa/api/internal/mercadopago"
	"rifa/api/internal/middleware"
	"rifa/api/internal/notify"
	"rifa/api/internal/purchase"
	"rifa/api/internal/reconcile"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("could not load configuration")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.WithError(err).Fatal("could not create data directory")
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("could not open database")
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.WithError(err).Fatal("could not apply migrations")
	}
	log.Info("database ready")

	// Notification dispatchers; each one is optional
	var dispatchers notify.Multi
	if cfg.SMTPHost != "" {
		dispatchers = append(dispatchers,
			notify.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, database))
		log.Info("email notifications enabled")
	} else {
		log.Warn("SMTP_HOST not set, email notifications disabled")
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken)
		if err != nil {
			log.WithError(err).Warn("telegram notifier disabled")
		} else {
			dispatchers = append(dispatchers, tg)
			log.Info("telegram notifications enabled")
		}
	}

	if cfg.MPAccessToken == "" {
		log.Fatal("MP_ACCESS_TOKEN must be set")
	}
	gateway := mercadopago.NewClient(cfg.MPAccessToken, cfg.MPBaseURL)

	purchases := purchase.NewService(database, gateway, dispatchers, cfg.CustomerMatchFields)
	draws := draw.NewService(database, dispatchers)
	reconciler := reconcile.New(database, gateway, dispatchers, cfg.PaymentPollInterval)

	h := handlers.New(database, cfg, purchases, draws, reconciler)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Public
	r.Get("/raffles", h.ListRaffles)
	r.Post("/raffles/{id}/purchases", h.CreatePurchase)
	r.Get("/payments/{id}", h.GetPaymentStatus)
	r.Post("/webhooks/mercadopago", h.HandleMercadoPagoWebhook)
	r.Post("/admin/login", h.Login)

	// Admin (JWT protected)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(cfg.JWTSecret))
		r.Post("/admin/raffles", h.CreateRaffle)
		r.Delete("/admin/raffles/{id}", h.DeleteRaffle)
		r.Post("/admin/raffles/{id}/draw", h.ExecuteDraw)
		r.Post("/admin/raffles/{id}/draw/cancel", h.CancelDraw)
		r.Post("/admin/raffles/{id}/draw/schedule", h.ScheduleDraw)
		r.Get("/admin/raffles/{id}/draw/preview", h.DrawPreview)
	})

	// Background sweeps
	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(bgCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.ReminderPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-bgCtx.Done():
				return
			case <-ticker.C:
				if err := draws.RemindUpcoming(bgCtx, 24*time.Hour); err != nil {
					log.WithError(err).Error("draw reminder sweep failed")
				}
			}
		}
	}()

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}

	// stop sweeps; an in-flight iteration finishes first
	stopBackground()
	wg.Wait()
	log.Info("stopped")
}
