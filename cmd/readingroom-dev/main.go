package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"readingroom/config"
	"readingroom/devserver"
	"readingroom/domain"
)

func main() {
	cfgPath := flag.String("config", "", "path to readingroom.yaml")
	seed := flag.Bool("seed", true, "load sample students and resources")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	srv := devserver.New(devserver.Options{
		Secret:    []byte(cfg.Dev.JWTSecret),
		AccessTTL: time.Duration(cfg.Dev.AccessTTLMins) * time.Minute,
		Logger:    logger,
	})
	if _, err := srv.AddAccount(cfg.Dev.AdminUsername, cfg.Dev.AdminPassword, "admin"); err != nil {
		log.Fatalf("Failed to create admin account: %v", err)
	}
	if *seed {
		if err := srv.Seed(sampleStudents, sampleResources); err != nil {
			log.Fatalf("Failed to seed: %v", err)
		}
	}

	addr := ":" + cfg.Dev.Port
	go func() {
		logger.Info("Development API listening",
			zap.String("addr", addr),
			zap.String("admin", cfg.Dev.AdminUsername),
		)
		fmt.Printf("Reading room dev API on http://localhost%s/api/ (login %s)\n", addr, cfg.Dev.AdminUsername)
		if err := srv.Listen(addr); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Shutdown failed", zap.Error(err))
	}
}

var sampleStudents = []domain.Student{
	{StudentID: "2021-00001", FirstName: "Maria", LastName: "Santos", Phone: "09171234567", Email: "maria.santos@example.com"},
	{StudentID: "2021-00002", FirstName: "Jose", LastName: "Reyes", Phone: "09181234567", Email: "jose.reyes@example.com"},
	{StudentID: "2022-00003", FirstName: "Ana", LastName: "Cruz", Phone: "09191234567", Email: "ana.cruz@example.com"},
}

var sampleResources = []domain.Resource{
	{ResourceID: "BK-001", Title: "Noli Me Tangere", Author: "Jose Rizal", ResourceType: domain.ResourceBook, PublicationYear: 1987},
	{ResourceID: "BK-002", Title: "The Go Programming Language", Author: "Donovan & Kernighan", ResourceType: domain.ResourceBook, PublicationYear: 2015},
	{ResourceID: "MG-001", Title: "National Geographic", Author: "Various", ResourceType: domain.ResourceMagazine, PublicationYear: 2023},
	{ResourceID: "NP-001", Title: "Daily Inquirer", Author: "Various", ResourceType: domain.ResourceNewspaper, PublicationYear: 2024},
}
