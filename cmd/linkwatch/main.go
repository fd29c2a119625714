package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"linkwatch/internal/config"
	"linkwatch/internal/fetch"
	"linkwatch/internal/model"
	"linkwatch/internal/monitor"
	"linkwatch/internal/notify"
	web "linkwatch/internal/server"
	"linkwatch/internal/store"
)

var (
	logger  *zap.Logger
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:   "linkwatch",
	Short: "linkwatch - monitors external pages for brand backlink changes",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform a single observation run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.ValidateCredentials(); err != nil {
			return err
		}

		st, err := store.NewHybridStore(cfg.Store.RedisAddr, cfg.Store.BadgerPath)
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		m := newMonitor(cfg, st)
		summary, err := m.Run(cmd.Context())
		if err != nil {
			return err
		}

		logger.Info("Run finished",
			zap.String("run_id", summary.RunID.String()),
			zap.Bool("first_run", summary.FirstRun),
			zap.Int("rows", summary.Rows),
			zap.Int("changes", summary.Changes),
			zap.Int("failures", summary.Failures))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run on a cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.ValidateCredentials(); err != nil {
			return err
		}

		st, err := store.NewHybridStore(cfg.Store.RedisAddr, cfg.Store.BadgerPath)
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			logger.Info("Shutting down...")
			cancel()
		}()

		m := newMonitor(cfg, st)

		schedule := cfg.Monitor.Schedule
		if schedule == "" {
			schedule = "@every 6h"
		}

		c := cron.New()
		_, err = c.AddFunc(schedule, func() {
			if _, err := m.Run(ctx); err != nil {
				logger.Error("Scheduled run failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", schedule, err)
		}

		c.Start()
		logger.Info("Watching", zap.String("schedule", schedule))

		<-ctx.Done()
		<-c.Stop().Done()
		logger.Info("Goodbye!")
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status API for the current snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		st, err := store.NewHybridStore(cfg.Store.RedisAddr, cfg.Store.BadgerPath)
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		srv := web.NewServer(st, logger)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()

		if err := srv.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the current snapshot to a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		st, err := store.NewHybridStore(cfg.Store.RedisAddr, cfg.Store.BadgerPath)
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		report, err := st.LoadReport(cmd.Context())
		if err != nil {
			return err
		}

		if err := writeCSV(exportOut, report); err != nil {
			return err
		}
		logger.Info("Snapshot exported",
			zap.String("path", exportOut),
			zap.Int("rows", len(report.Rows)))
		return nil
	},
}

// writeCSV dumps report rows for operators. The export is one-way: CSV cannot
// keep nil and empty string apart, which is why the snapshot itself lives in
// the store instead of a file.
func writeCSV(path string, report *model.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"article_url", "title", "publication_date", "target_link", "nofollow", "anchor_text"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		record := []string{row.ArticleURL, row.Title, deref(row.PublicationDate), deref(row.TargetLink), "", deref(row.AnchorText)}
		if row.Nofollow != nil {
			record[4] = fmt.Sprintf("%t", *row.Nofollow)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newMonitor(cfg *config.Config, st store.Store) *monitor.Monitor {
	fetcher := fetch.NewHTTPFetcher(cfg.Monitor.Fetch)
	notifier := notify.NewTelegram(cfg.Notify.BotToken, cfg.Notify.ChatID)
	return monitor.New(cfg, fetcher, st, notifier, logger)
}

func main() {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "linkwatch.yaml", "Path to the configuration file")
	exportCmd.Flags().StringVar(&exportOut, "out", "report.csv", "Output CSV path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
