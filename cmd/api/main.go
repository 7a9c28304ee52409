package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"cargolink/api"
	"cargolink/auth"
	"cargolink/booking"
	"cargolink/config"
	"cargolink/db"
	"cargolink/notify"
	"cargolink/shipment"
)

func main() {
	cfg, err := config.Load(os.Getenv("CARGOLINK_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.Auth.JWTSecret)
	resolver := auth.NewResolver(authRepo, cfg.Auth.SuperAdminEmail)

	shipmentRepo := shipment.NewRepository(pool)
	shipmentSvc := shipment.NewService(shipmentRepo)
	statusSvc := shipment.NewStatusService(pool)

	outbox := notify.NewPGOutbox(pool)
	bookingSvc := booking.NewService(booking.NewRepository(pool))

	mailer := notify.NewHTTPMailer(cfg.Mail.Endpoint, cfg.Mail.APIKey, cfg.Mail.FromAddress)
	recipient := func(ctx context.Context, userID string) (string, error) {
		user, err := authSvc.GetUserByID(ctx, userID)
		if err != nil {
			return "", err
		}
		return user.Email, nil
	}
	drainer := notify.NewDrainer(outbox, mailer, recipient, logger, cfg.Mail.PollInterval)
	go drainer.Run(ctx)

	var serverOpts []api.Option
	if cfg.Carrier.WebhookToken != "" {
		webhookSvc := shipment.NewWebhookService(pool, nil)
		serverOpts = append(serverOpts, api.WithCarrierWebhook(webhookSvc, cfg.Carrier.WebhookToken))
	}

	server := api.NewServer(authSvc, resolver, shipmentSvc, statusSvc, bookingSvc, logger, serverOpts...)

	logger.Info("api listening", zap.String("addr", cfg.HTTP.Addr))
	if err := http.ListenAndServe(cfg.HTTP.Addr, server.Routes()); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
