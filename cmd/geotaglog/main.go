package main

import (
	"log"

	"github.com/mpetrenko/geotaglog/internal/app"
	"github.com/mpetrenko/geotaglog/internal/logger"
)

func main() {
	application, err := app.New()
	if err != nil {
		// The logger may not be initialized yet at this point.
		log.Fatalf("application init error: %v", err)
	}
	defer application.Close()

	if err := application.Run(); err != nil {
		logger.Log.Fatalln("application stopped with error:", err)
	}
}
