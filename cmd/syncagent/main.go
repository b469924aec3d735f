package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/syncagent"
)

func main() {
	var (
		configPath   = flag.String("config", "syncagent.yaml", "path to the agent config file")
		badge        = flag.Int("badge", 0, "badge number for a scan to enqueue")
		guardName    = flag.String("guard", "", "guard name for a scan to enqueue")
		checkpointID = flag.Uint("checkpoint", 0, "checkpoint id for a scan to enqueue")
		note         = flag.String("note", "", "optional note for the enqueued scan")
		once         = flag.Bool("once", false, "flush the queue once and exit")
	)
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := syncagent.LoadConfig(*configPath)
	if err != nil {
		log.Error("Config load failed", "error", err, "path", *configPath)
		os.Exit(1)
	}

	queue, err := syncagent.OpenQueue(cfg.QueuePath, log)
	if err != nil {
		log.Error("Queue open failed", "error", err, "path", cfg.QueuePath)
		os.Exit(1)
	}

	if *badge > 0 {
		scan := &syncagent.LocalScan{
			GuardName:    *guardName,
			BadgeNumber:  *badge,
			CheckpointID: *checkpointID,
			Note:         *note,
		}
		if err := queue.Enqueue(scan); err != nil {
			log.Error("Enqueue failed", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := syncagent.NewSender(cfg.ServerURL, cfg.DeviceToken, cfg.RequestTimeout(), log)
	agent := syncagent.NewAgent(queue, sender, log, cfg.FlushInterval())

	if *once {
		applied, err := agent.FlushOnce(ctx)
		if err != nil {
			log.Error("Flush failed", "error", err)
			os.Exit(1)
		}
		log.Info("Flush complete", "applied", applied)
		return
	}

	if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("Agent stopped", "error", err)
		os.Exit(1)
	}
}
