package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Vrajp222/Donation-Tracker/config"
	"github.com/Vrajp222/Donation-Tracker/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		fmt.Println("Error reading config file", err)
		os.Exit(1)
	}

	myApp := &app.App{}
	myApp.Initialize(ctx, cfg)

	go myApp.Run()

	<-ctx.Done()

	log.Println("Donation tracker stopped")
}
