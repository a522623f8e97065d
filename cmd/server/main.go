package main

import (
	"log"
	"os"

	"longform-transcriber/internal/bootstrap"
)

func main() {
	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Printf("Server started on %s", addr)
	if err := app.Serve(addr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
