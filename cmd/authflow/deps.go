package main

import (
	"context"
	"log/slog"

	goerrors "github.com/goliatone/go-errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	auth "github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/config"
	"github.com/goliatone/go-authflow/mail"
	"github.com/goliatone/go-authflow/repository"
)

// closer releases a resource opened during startup
type closer func(ctx context.Context) error

// openStore connects the configured account store. Bun backed stores are
// migrated, mongo gets its indexes.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.AccountStore, closer, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory account store, data is lost on exit")
		return auth.NewMemoryAccountStore(), func(context.Context) error { return nil }, nil

	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Store.MongoURI))
		if err != nil {
			return nil, nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to connect to mongo")
		}
		store := repository.NewMongoAccountStore(
			client.Database(cfg.Store.MongoDatabase).Collection(repository.AccountsCollection),
		)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return store, client.Disconnect, nil

	default:
		db, err := auth.OpenDatabase(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		repo := auth.NewRepositoryManager(db)
		if err := repo.Validate(); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		if err := auth.Migrate(ctx, db); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		return repo.Accounts(), func(context.Context) error { return repo.Close() }, nil
	}
}

func smtpConfig(cfg *config.Config) mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     cfg.Mail.SMTP.Host,
		Port:     cfg.Mail.SMTP.Port,
		Username: cfg.Mail.SMTP.Username,
		Password: cfg.Mail.SMTP.Password,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
		Timeout:  cfg.Mail.SendTimeout,
	}
}

// newSender builds the email transport selected by mail.transport
func newSender(cfg *config.Config, logger *slog.Logger) (auth.EmailSender, closer, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Mail.Transport {
	case config.TransportSMTP:
		renderer, err := auth.NewTemplateRenderer(cfg.Mail.From)
		if err != nil {
			return nil, nil, err
		}
		return mail.NewSMTPSender(smtpConfig(cfg), renderer), noop, nil

	case config.TransportKafka:
		sender := mail.NewKafkaSender(mail.NewKafkaWriter(cfg.Mail.Kafka.Brokers, cfg.Mail.Kafka.Topic))
		return sender, func(context.Context) error { return sender.Close() }, nil

	default:
		return auth.LogEmailSender{Logger: logger}, noop, nil
	}
}
