// Package main is the entry point for the account service.
//
// Its job is limited to reading configuration, constructing the external
// collaborators (identity provider client, mail sender), and handing them
// to the server. All wiring of internal components happens in
// internal/server; all logic lives below that.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dmejias/account-service/internal/config"
	"github.com/dmejias/account-service/internal/identity"
	"github.com/dmejias/account-service/internal/identity/rest"
	"github.com/dmejias/account-service/internal/mail"
	"github.com/dmejias/account-service/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ensure the database directory exists before sqlite opens the file.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(cfg.DBPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Bearer tokens from the provider are verified locally against the
	// shared secret; no network round trip per verification.
	verifier, err := identity.NewTokenVerifier(cfg.IDPTokenSecret, cfg.IDPTokenIssuer)
	if err != nil {
		logger.Error("failed to configure token verification", slog.String("error", err.Error()))
		os.Exit(1)
	}

	provider := rest.New(rest.Config{
		BaseURL:      cfg.IDPBaseURL,
		TokenURL:     cfg.IDPTokenURL,
		ClientID:     cfg.IDPClientID,
		ClientSecret: cfg.IDPClientSecret,
		Timeout:      cfg.IDPTimeout,
	}, verifier)

	// Without an SMTP host the outbox still fills normally; the dispatcher
	// just logs deliveries instead of sending them.
	var sender mail.Sender
	if cfg.SMTPHost != "" {
		sender, err = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			logger.Error("failed to configure SMTP", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		logger.Warn("SMTP_HOST not set — verification emails will be logged, not sent")
		sender = mail.NewLogSender(logger)
	}

	srv, err := server.New(cfg, logger, provider, sender)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
