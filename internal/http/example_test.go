package http_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pacer/internal/extraction"
	httpserver "github.com/fyrsmithlabs/pacer/internal/http"
	"github.com/fyrsmithlabs/pacer/internal/logging"
	"github.com/fyrsmithlabs/pacer/internal/prediction"
)

// ExampleServer demonstrates how to create and start the HTTP server.
func ExampleServer() {
	logger := logging.NewNop()

	// Quick pass only; pass a ModelExtractor to enable the model tier.
	coordinator := extraction.NewCoordinator(extraction.NewPatternExtractor(), nil)
	engine := prediction.NewEngine(prediction.EmptyHandle())

	server, err := httpserver.NewServer(httpserver.Deps{
		Coordinator: coordinator,
		Engine:      engine,
		Logger:      logger,
	}, &httpserver.Config{Host: "localhost", Port: 0})
	if err != nil {
		panic(err)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Debug(context.Background(), "server stopped", zap.Error(err))
		}
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error(ctx, "shutdown error", zap.Error(err))
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
