package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	LogLevel         string
	ServerRunAddress string
	DatabaseURI      string
	OfferDebounce    time.Duration
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	LogLevel = os.Getenv("LOG_LEVEL")
	if LogLevel == "" {
		LogLevel = "info"
	}

	ServerRunAddress = os.Getenv("SERVER_RUN_ADDRESS")
	if ServerRunAddress == "" {
		ServerRunAddress = "0.0.0.0:8080"
	}

	DatabaseURI = os.Getenv("DATABASE_URI")
	if DatabaseURI == "" {
		DatabaseURI = "host=db user=postgres password=password dbname=campaign sslmode=disable"
	}

	OfferDebounce = 300 * time.Millisecond
	if raw := os.Getenv("OFFER_DEBOUNCE_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			log.Println("Invalid OFFER_DEBOUNCE_MS, using default value")
		} else {
			OfferDebounce = time.Duration(ms) * time.Millisecond
		}
	}
}
