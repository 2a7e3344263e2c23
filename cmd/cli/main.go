package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/seqsubmit/internal/cli"
	"github.com/dmitrijs2005/seqsubmit/internal/logging"
	"github.com/dmitrijs2005/seqsubmit/internal/server"
	"github.com/dmitrijs2005/seqsubmit/internal/server/config"
	"github.com/dmitrijs2005/seqsubmit/internal/server/mail"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/seqsubmit/internal/server/services"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, slog.LevelWarn)

	m := repomanager.NewPostgresRepositoryManager()
	db, err := server.OpenDB(ctx, cfg, m)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	mailer, err := mail.NewSMTPSender(mail.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	users := services.NewUserService(db, m, mailer, nil, logger, cfg)
	app := cli.NewApp(users, os.Stdin, os.Stdout)

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Printf("%v", err)
		db.Close()
		os.Exit(1)
	}

}
