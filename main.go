package main

import (
	"context"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/shandysiswandi/inboxed/internal/app"
)

func main() {
	application := app.New()    // Initialize the application
	wait := application.Start() // Start the application and wait for the termination signal
	<-wait                      // Wait for the application to receive a termination signal
	ctx, cancel := context.WithTimeout(context.Background(), application.ShutdownTimeout())
	defer cancel()
	application.Stop(ctx) // Stop the application gracefully
	if application.Err() != nil {
		os.Exit(1)
	}
}
