// Package main provides the narrator server and local tooling entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/infra/config"
	"github.com/osa030/narrator/internal/infra/logger"
)

var (
	app        = kingpin.New("narrator", "Narrative dialog sequencer")
	configPath = app.Flag("config", "Path to config file").Default("config/narrator.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// serve command (default)
	serveCmd = app.Command("serve", "Start the trigger API server (default)").Default()

	// play command
	playCmd        = app.Command("play", "Play sequences locally on the console")
	playNames      = playCmd.Arg("sequence", "Sequence names, played in order").Required().Strings()
	playGap        = playCmd.Flag("gap", "Pause between sequences").Default("0s").Duration()
	playAbortAfter = playCmd.Flag("abort-after", "Abort each sequence after this delay (0 disables)").Default("0s").Duration()
	playTimeout    = playCmd.Flag("timeout", "Maximum wait for each sequence to finish").Default("5m").Duration()

	// validate command
	validateCmd = app.Command("validate", "Check stored content for missing clips and references")

	// generate-example command
	generateCmd  = app.Command("generate-example", "Write an example sequence and its clips")
	generateName   = generateCmd.Flag("name", "Example sequence name").Default("example").String()
	generateEvents = generateCmd.Flag("event", "Event lists to populate (repeatable)").Default("default", "interrupt", "abort").Strings()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	// Console output belongs to the presenter in play mode
	if command == playCmd.FullCommand() {
		loggerConfig.Output = "stderr"
		loggerConfig.Level = "warn"
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Debug().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	switch command {
	case serveCmd.FullCommand():
		err = serve(cfg)
	case playCmd.FullCommand():
		err = play(cfg, *playNames, *playGap, *playAbortAfter, *playTimeout)
	case validateCmd.FullCommand():
		err = validate(cfg)
	case generateCmd.FullCommand():
		err = generateExample(cfg, *generateName, *generateEvents)
	}
	if err != nil {
		zlog.Error().Msgf("%s: %v", command, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		start := time.Now()
		if err := cmd.Run(); err != nil {
			zlog.Error().Msgf("Hook failed: hook=%s error=%v", hook, err)
			continue
		}
		zlog.Debug().Msgf("Hook finished: hook=%s duration=%v", hook, time.Since(start))
	}
}
