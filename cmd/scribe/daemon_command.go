package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/broker"
	"scribe/internal/consumer"
	"scribe/internal/daemon"
	"scribe/internal/jobs"
	"scribe/internal/journal"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/pipeline"
	"scribe/internal/recognize"
	"scribe/internal/storage"
	"scribe/internal/vad"
)

func newDaemonCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the transcription worker",
		Long:  "Consume transcription tasks from the broker and serve the HTTP API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.newLogger(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			storageClient, err := storage.New(cfg.Storage, logger)
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			classifier, err := vad.NewWebRTC(cfg.VAD.Aggressiveness)
			if err != nil {
				return fmt.Errorf("initialize voice activity detection: %w", err)
			}
			detector := vad.NewDetector(classifier, cfg.VAD, logger)
			backend, err := recognize.NewBackend(cfg.Recognizer, logger)
			if err != nil {
				return fmt.Errorf("initialize recognizer: %w", err)
			}
			pipe := pipeline.New(cfg.Recognizer, cfg.Paths.WorkDir, media.NewNormalizer(""), detector, backend, logger)

			journalStore, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer journalStore.Close()

			jobStore, err := jobs.NewStore(cfg.Redis.URL, logger)
			if err != nil {
				return fmt.Errorf("initialize job store: %w", err)
			}
			defer jobStore.Close()

			brokerClient := broker.New(cfg.Broker, logger)
			cons := consumer.New(cfg, storageClient, pipe, brokerClient, journalStore, logger)

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			notifier := consumer.NewCallbackSender(time.Duration(cfg.Callback.TimeoutSeconds)*time.Second, logger)
			runner := jobs.NewRunner(jobStore, storageClient, pipe, notifier, cfg.Paths.WorkDir, logger)
			apiServer := api.New(api.Options{
				Bind:       cfg.Paths.APIBind,
				WorkDir:    cfg.Paths.WorkDir,
				Downloader: storageClient,
				Processor:  pipe,
				JobStore:   jobStore,
				JobSink:    jobStore,
				Runner:     runner,
				Outcomes:   journalStore,
				Probes: api.Probes{
					ModelLoaded:     func() bool { return true },
					BrokerConnected: brokerClient.Connected,
				},
				BatchCtx: sigCtx,
				Logger:   logger,
			})

			d, err := daemon.New(cfg, brokerClient, cons.HandleDelivery, apiServer, logger)
			if err != nil {
				return err
			}
			if err := d.Start(sigCtx); err != nil {
				return err
			}

			logger.Info("worker running",
				logging.String("bind", cfg.Paths.APIBind),
				logging.String("broker", cfg.Broker.URL))
			<-sigCtx.Done()
			d.Stop()
			return nil
		},
	}
}
