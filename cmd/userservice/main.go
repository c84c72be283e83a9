package main

import (
	"log"

	"github.com/Lerniqo/user-service/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
