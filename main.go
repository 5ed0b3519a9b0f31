package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lguibr/bollywood"
	"go.uber.org/zap"

	"github.com/lguibr/quizcast/game"
	"github.com/lguibr/quizcast/quiz"
	"github.com/lguibr/quizcast/server"
	"github.com/lguibr/quizcast/utils"
)

func main() {
	cfg, err := utils.LoadConfig(os.Getenv("QUIZCAST_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	engine := bollywood.NewEngine()
	directoryPID := engine.Spawn(bollywood.NewProps(
		game.NewRoomDirectoryProducer(engine, cfg, logger, game.RealClock{})))
	if directoryPID == nil {
		logger.Fatal("could not spawn room directory")
	}

	quizzes := quiz.NewStore(cfg.MaxQuizzes)
	srv := server.NewServer(cfg, logger, engine, directoryPID, quizzes)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.Int("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	engine.Shutdown(5 * time.Second)
	logger.Info("goodbye")
}
