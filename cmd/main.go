package main

import (
	"log"

	"github.com/rajurautt/happybus/server"
)

func main() {
	if err := server.Run(); err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
}
