// visiond watches a camera feed for presence, count and multi-zone
// conditions inside user-defined polygonal zones and signals a separate
// robot-control process through lock-protected files in a shared runtime
// directory.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/visiond/internal/camera"
	"github.com/banshee-data/visiond/internal/config"
	"github.com/banshee-data/visiond/internal/daemon"
	"github.com/banshee-data/visiond/internal/events"
	"github.com/banshee-data/visiond/internal/ipc"
	"github.com/banshee-data/visiond/internal/monitoring"
	"github.com/banshee-data/visiond/internal/trigger"
	"github.com/banshee-data/visiond/internal/version"
	"github.com/banshee-data/visiond/internal/vision"
)

var (
	configPath    = flag.String("config", "vision_config.json", "Daemon configuration file")
	triggersDir   = flag.String("triggers", "triggers", "Trigger definitions directory")
	runtimeDir    = flag.String("runtime", "runtime", "Shared IPC directory")
	eventsDB      = flag.String("events-db", "", "Event history sqlite database (empty disables history)")
	migrationsDir = flag.String("migrations", "migrations", "Event database migrations directory")
	debug         = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if *debug {
		monitoring.EnableDebug()
	}
	monitoring.Logf("%s starting", version.String())

	cfg := config.LoadOrDefault(*configPath)

	channel, err := ipc.NewChannel(*runtimeDir)
	if err != nil {
		log.Fatalf("failed to open ipc directory: %v", err)
	}
	if err := channel.Init(); err != nil {
		log.Fatalf("failed to initialize ipc channel: %v", err)
	}

	source, err := camera.Open(cfg)
	if err != nil {
		channel.RemoveDaemonPid()
		log.Fatalf("failed to open camera: %v", err)
	}
	monitoring.Logf("camera ready: %s", source.Name())

	detector := vision.NewDetector(vision.Params{
		Model: vision.ModelParams{
			History:       cfg.GetHistory(),
			LearningRate:  cfg.GetLearningRate(),
			VarThreshold:  cfg.GetVarThreshold(),
			DetectShadows: cfg.GetShadowDetection(),
		},
		MinBlobArea:     cfg.GetMinBlobArea(),
		ProcessingWidth: cfg.GetProcessingWidth(),
		StabilityFrames: cfg.GetStabilityFrames(),
	})

	store := trigger.NewStore(*triggersDir)
	triggers := store.LoadEnabled()
	monitoring.Logf("loaded %d enabled trigger(s) from %s", len(triggers), *triggersDir)

	// History is best effort: the daemon watches fine without it.
	var history *events.Store
	if *eventsDB != "" {
		history, err = events.Open(*eventsDB)
		if err != nil {
			monitoring.Logf("event history disabled: %v", err)
			history = nil
		} else {
			defer history.Close()
			if err := history.MigrateUp(*migrationsDir); err != nil {
				monitoring.Logf("event history migrations: %v", err)
			}
		}
	}

	d, err := daemon.New(daemon.Options{
		Config:   cfg,
		Source:   source,
		Detector: detector,
		Triggers: triggers,
		Channel:  channel,
		History:  history,
	})
	if err != nil {
		source.Close()
		channel.RemoveDaemonPid()
		log.Fatalf("failed to assemble daemon: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		if errors.Is(err, daemon.ErrRestartRequested) {
			// Clean exit; the supervisor relaunches us with fresh memory.
			monitoring.Logf("exiting for supervised restart")
			os.Exit(0)
		}
		log.Fatalf("daemon loop failed: %v", err)
	}
}
