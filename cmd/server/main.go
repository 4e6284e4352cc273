package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"todoTracker/internal/auth"
	"todoTracker/internal/config"
	"todoTracker/internal/db"
	"todoTracker/internal/export"
	grpcserver "todoTracker/internal/grpc"
	"todoTracker/internal/httpapi"
	"todoTracker/repository"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.LoadForEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("Configuration loaded: %v", cfg)

	d, err := db.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Printf("close db: %v", err)
		}
	}()

	users := repository.NewUserRepository(d)
	tasks := repository.NewTaskRepository(d)

	sessions, err := auth.NewSessionStore(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	defer sessions.Close()

	srv := &httpapi.Server{
		Config:      cfg,
		Credentials: auth.NewCredentials(users),
		Sessions:    sessions,
		Tasks:       tasks,
		Exporter:    export.NewExporter(tasks),
		DB:          d,
	}
	shutdownHTTP, err := srv.Start(cfg.HTTP.Address)
	if err != nil {
		log.Fatalf("start http: %v", err)
	}
	log.Printf("HTTP server listening on %s", cfg.HTTP.Address)

	var health *grpcserver.HealthServer
	if cfg.GRPC.Address != "" {
		health, err = grpcserver.StartGRPC(cfg.GRPC.Address)
		if err != nil {
			log.Fatalf("start grpc: %v", err)
		}
		log.Printf("gRPC health server listening on %s", health.Addr())
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if health != nil {
		health.SetServing(false)
	}
	if err := shutdownHTTP(ctx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if health != nil {
		if err := health.Shutdown(ctx); err != nil {
			log.Printf("grpc shutdown error: %v", err)
		}
	}
}
