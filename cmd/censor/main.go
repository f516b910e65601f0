package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"linkshare/pkg/censor"
)

type Config struct {
	WordsPath string `toml:"wordsPath"`
	HTTPAddr  string `toml:"httpAddr"`
	LogLevel  string `toml:"logLevel"`
}

func main() {
	var (
		configPath string
		wordsPath  string
		httpAddr   string
		logLevel   string
	)

	flag.StringVar(&configPath, "config", "cmd/censor/config.toml", "Path to TOML config file")
	flag.StringVar(&wordsPath, "words", "", "Path to JSON file with banned words")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.Parse()

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Fatalf("[censor] failed to load config file %s: %v", configPath, err)
	}

	// Override config with flags if set
	if wordsPath != "" {
		cfg.WordsPath = wordsPath
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if !strings.Contains(cfg.HTTPAddr, ":") {
		log.Warn("[censor] use ':' before port number, e.g. ':8080'")
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	}

	c := censor.New()
	if err := c.LoadFromJSON(cfg.WordsPath); err != nil {
		log.Fatalf("[censor] failed to load censor config file %s: %v", cfg.WordsPath, err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           censor.NewService(c).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("[censor] starting on port %v", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[censor] failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[censor] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[censor] HTTP server shut down gracefully")
	}
}
