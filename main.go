package main

import (
	"log"

	"github.com/joho/godotenv"

	"partsledger/cmd"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env file not found, using environment variables")
	}
	cmd.Execute()
}
