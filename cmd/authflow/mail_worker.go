package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/mail"
)

// NewMailWorkerCmd creates the mail-worker subcommand.
func NewMailWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mail-worker",
		Short: "Deliver queued emails from kafka over SMTP",
		Long: `Consume email jobs published by "serve" with mail.transport=kafka,
render them and deliver them through the configured SMTP server.`,
		RunE: runMailWorker,
	}
}

func runMailWorker(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	renderer, err := auth.NewTemplateRenderer(cfg.Mail.From)
	if err != nil {
		return err
	}

	reader := mail.NewKafkaReader(cfg.Mail.Kafka.Brokers, cfg.Mail.Kafka.Topic, cfg.Mail.Kafka.GroupID)
	worker := mail.NewWorker(reader, mail.NewSMTPSender(smtpConfig(cfg), renderer), logger)
	defer worker.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("mail worker started", "topic", cfg.Mail.Kafka.Topic, "group", cfg.Mail.Kafka.GroupID)
	return worker.Run(ctx)
}
