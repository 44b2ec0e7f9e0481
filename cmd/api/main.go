package main

import (
	"os"

	"github.com/selin/pulseform/internal/pkg/logger"
	"github.com/selin/pulseform/internal/server"
)

// @title PulseForm Access API
// @version 1.0
// @description Participant identity resolution and activity access token lifecycle for PulseForm surveys

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token minted on access link validation

func main() {
	srv, err := server.NewServer()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	// Run blocks until a shutdown signal arrives
	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
	os.Exit(0)
}
