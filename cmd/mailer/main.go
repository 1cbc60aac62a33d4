// Command mailer drains the outbound mail queue and delivers each message
// over SMTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cogi/internal/config"
	"cogi/internal/logger"
	"cogi/internal/mail"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Mailer error: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	consumer := mail.NewConsumer(cfg.Mail.AMQPURL, cfg.Mail.Queue, mail.NewSMTPMailer(cfg.Mail))
	logger.Get().Infof("Consuming %s", cfg.Mail.Queue)
	return consumer.Run(ctx)
}
