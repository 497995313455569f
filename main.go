package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/mailtrack/config"
	"github.com/customeros/mailtrack/internal/cron"
	"github.com/customeros/mailtrack/internal/database"
	"github.com/customeros/mailtrack/internal/repository"
	"github.com/customeros/mailtrack/server"
)

func main() {
	app := &cli.App{
		Name:  "mailtrack",
		Usage: "email engagement tracking and analytics",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(c *cli.Context) error {
					_, db, err := setup()
					if err != nil {
						return err
					}
					if err := repository.MigrateDB(db); err != nil {
						return cli.Exit("Database migration failed: "+err.Error(), 1)
					}
					log.Println("Database migration completed successfully")
					return nil
				},
			},
			{
				Name:  "server",
				Usage: "Start the application server",
				Action: func(c *cli.Context) error {
					cfg, db, err := setup()
					if err != nil {
						return err
					}

					log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
					log.Println("Mailtrack starting up...")

					srv, err := server.NewServer(cfg, db)
					if err != nil {
						return cli.Exit("Server setup failed: "+err.Error(), 1)
					}
					if err := srv.Run(); err != nil {
						return cli.Exit("Server startup failed: "+err.Error(), 1)
					}

					log.Println("Shutdown complete")
					return nil
				},
			},
			{
				Name:  "prune",
				Usage: "Delete processed message records older than DEDUP_RETENTION",
				Action: func(c *cli.Context) error {
					cfg, db, err := setup()
					if err != nil {
						return err
					}
					repos := repository.InitRepositories(db)
					deleted, err := cron.PruneProcessedMessages(context.Background(), repos.ProcessedMessageRepository, cfg.DedupConfig.Retention)
					if err != nil {
						return cli.Exit("Prune failed: "+err.Error(), 1)
					}
					log.Printf("Pruned %d processed messages", deleted)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, cli.Exit("Config initialization failed: "+err.Error(), 1)
	}

	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return nil, nil, cli.Exit("Database initialization failed: "+err.Error(), 1)
	}
	return cfg, db, nil
}
