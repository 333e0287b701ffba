package main

import (
	"log"

	"github.com/MrSnakeDoc/schluessel/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ schluessel failed to initialize: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ schluessel failed to start: %v", err)
	}
}
