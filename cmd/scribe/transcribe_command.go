package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"scribe/internal/media"
	"scribe/internal/pipeline"
	"scribe/internal/recognize"
	"scribe/internal/storage"
	"scribe/internal/vad"
)

func newTranscribeCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		recordingID string
		language    string
		asJSON      bool
		localFile   bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <file-url|path>",
		Short: "Transcribe a single recording and print the result",
		Args:  cobra.ExactArgs(1),
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

			classifier, err := vad.NewWebRTC(cfg.VAD.Aggressiveness)
			if err != nil {
				return fmt.Errorf("initialize voice activity detection: %w", err)
			}
			backend, err := recognize.NewBackend(cfg.Recognizer, logger)
			if err != nil {
				return fmt.Errorf("initialize recognizer: %w", err)
			}
			pipe := pipeline.New(cfg.Recognizer, cfg.Paths.WorkDir,
				media.NewNormalizer(""), vad.NewDetector(classifier, cfg.VAD, logger), backend, logger)

			source := args[0]
			if !localFile {
				storageClient, err := storage.New(cfg.Storage, logger)
				if err != nil {
					return fmt.Errorf("initialize storage: %w", err)
				}
				dir, err := os.MkdirTemp(cfg.Paths.WorkDir, "cli-")
				if err != nil {
					return fmt.Errorf("create workspace: %w", err)
				}
				defer os.RemoveAll(dir)

				ext := filepath.Ext(source)
				if ext == "" {
					ext = ".ogg"
				}
				local := filepath.Join(dir, "source"+ext)
				if err := storageClient.Download(cmd.Context(), source, local); err != nil {
					return err
				}
				source = local
			}

			if recordingID == "" {
				recordingID = filepath.Base(args[0])
			}
			result, err := pipe.Process(cmd.Context(), recordingID, source, language)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			if len(result.Segments) > 0 {
				rows := make([][]string, 0, len(result.Segments))
				for _, seg := range result.Segments {
					rows = append(rows, []string{
						fmt.Sprintf("%.2f", seg.Start),
						fmt.Sprintf("%.2f", seg.End),
						seg.Text,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Start", "End", "Text"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft},
				))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nDuration: %.1fs, %d segments\n", result.Duration, len(result.Segments))
			return nil
		},
	}

	cmd.Flags().StringVar(&recordingID, "recording-id", "", "Recording identifier (defaults to the file name)")
	cmd.Flags().StringVar(&language, "language", "", "Language hint (ISO 639-1)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the result as JSON")
	cmd.Flags().BoolVar(&localFile, "local", false, "Treat the argument as a local file instead of an object key")
	return cmd
}
