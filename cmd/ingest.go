package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/ragstack/ragd/config"
	"github.com/ragstack/ragd/internal/index"
	"github.com/ragstack/ragd/internal/ingest"
	"github.com/ragstack/ragd/provider"
)

func ingestCMD() *cobra.Command {
	var cfgPath string

	var cmd = &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Process documents and add them to the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			llm, err := provider.New(cfg.Providers)
			if err != nil {
				return err
			}
			logger := log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
			idx, err := index.New(cfg.Index, llm, logger)
			if err != nil {
				return err
			}
			processor := ingest.NewProcessor(cfg.Chunking, logger)
			enricher := ingest.NewEnricher()

			ctx := context.Background()
			for _, path := range args {
				chunks, err := processor.ProcessDocument(ctx, path, nil)
				if err != nil {
					return fmt.Errorf("processing %s: %w", path, err)
				}
				for i := range chunks {
					chunks[i] = enricher.Enrich(chunks[i])
				}
				if _, err := idx.AddDocuments(ctx, chunks); err != nil {
					return fmt.Errorf("indexing %s: %w", path, err)
				}
				fmt.Printf("%s: %d chunks\n", path, len(chunks))
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./ragd.yaml)")

	return cmd
}
