package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"mockmate/internal/audio"
	"mockmate/internal/cache"
	"mockmate/internal/config"
	"mockmate/internal/gateway"
	"mockmate/internal/keybox"
	"mockmate/internal/mutate"
	"mockmate/internal/util"
)

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	configPath := config.ConfigPath
	if v := os.Getenv("MOCKMATE_CONFIG"); v != "" {
		configPath = v
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("failed to load config", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	box, err := keybox.Open(cfg.DataDir)
	if err != nil {
		fatal("failed to open data dir", err)
	}
	userID, err := box.UserID()
	if err != nil {
		fatal("failed to establish user id", err)
	}

	client := gateway.NewClient(cfg.APIBaseURL, gateway.WithKeyProvider(box.Provider()))

	maxAge, err := config.ParseSessionListMaxAge(cfg.SessionListMaxAge)
	if err != nil {
		fatal("failed to parse sessionListMaxAge", err)
	}
	storeOpts := []cache.Option{cache.WithSessionListMaxAge(maxAge)}
	if cfg.RedisAddr != "" {
		spill := cache.NewRedisSpill(cfg.RedisAddr, cfg.RedisPassword, "mockmate:"+userID, 24*time.Hour)
		storeOpts = append(storeOpts, cache.WithSpill(spill))
		logger.Info("cache spill enabled", "addr", cfg.RedisAddr)
	}
	store := cache.NewStore(storeOpts...)

	ops := mutate.NewOps(mutate.NewCoordinator(store), client)

	mic, err := audio.NewCommandMicrophone(cfg.RecordCommand)
	if err != nil {
		fatal("failed to configure microphone", err)
	}

	app := &cli{
		cfg:      cfg,
		logger:   logger,
		box:      box,
		userID:   userID,
		client:   client,
		store:    store,
		ops:      ops,
		player:   audio.NewPlayer(client, audio.NewOtoOutput(), cfg.Voice),
		recorder: audio.NewRecorder(mic, client),
		in:       bufio.NewScanner(os.Stdin),
		out:      os.Stdout,
	}
	app.in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	app.warmCache()

	fmt.Fprintf(app.out, "mockmate ready (user %s). Type 'help' for commands.\n", userID)
	app.run()
}
