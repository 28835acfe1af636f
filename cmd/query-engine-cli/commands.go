package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dominicdesy/intelia-expert-sub012/internal/metrics"
	"github.com/dominicdesy/intelia-expert-sub012/pkg/engine"
)

func newQueryCmd() *cobra.Command {
	var (
		language string
		breed    string
		sex      string
		ageDays  int
		tenantID string
	)

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask the query engine a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			req := engine.QueryRequest{Question: args[0], Language: language}
			if breed != "" || sex != "" || ageDays > 0 || tenantID != "" {
				req.Context = &engine.QueryContext{
					Breed:    breed,
					Sex:      sex,
					AgeDays:  ageDays,
					TenantID: tenantID,
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			resp, err := client.Query(ctx, req)
			if err != nil {
				ui.Error("Query failed: %v", err)
				return err
			}

			if ui.JSON(resp) {
				return nil
			}
			printResponse(resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "en", "query language (en, fr, es)")
	cmd.Flags().StringVar(&breed, "breed", "", "carried breed from an earlier turn")
	cmd.Flags().StringVar(&sex, "sex", "", "carried sex from an earlier turn")
	cmd.Flags().IntVar(&ageDays, "age", 0, "carried age in days from an earlier turn")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant identifier")
	return cmd
}

func printResponse(resp *engine.QueryResponse) {
	ui.Header("Routing")
	ui.KeyValue("destination", resp.Destination)
	ui.KeyValue("reason", resp.Reason)
	ui.KeyValue("latency", fmt.Sprintf("%dms", resp.LatencyMs))
	if resp.CacheHit != "" && resp.CacheHit != "miss" {
		ui.Success("Served from cache (%s)", resp.CacheHit)
	}
	if resp.Degraded {
		ui.Warn("Result is degraded; a data source was unavailable")
	}
	if len(resp.MissingFields) > 0 {
		ui.Warn("Missing fields: %v", resp.MissingFields)
	}

	if resp.MetricValue != nil {
		v := resp.MetricValue
		ui.Header("Answer")
		ui.KeyValue(v.Metric, fmt.Sprintf("%.2f %s", v.Value, v.Unit))
		ui.KeyValue("breed", v.Breed)
		ui.KeyValue("sex", v.Sex)
		ui.KeyValue("age_days", v.AgeDays)
	}

	if resp.Comparison != nil {
		ui.Header("Comparison")
		ui.KeyValue("operation", resp.Comparison.Operation)
		ui.KeyValue("dimension", resp.Comparison.Dimension)
		for _, item := range resp.Comparison.Items {
			if item.Missing {
				ui.Warn("%s: no data", item.Label)
				continue
			}
			ui.KeyValue(item.Label, fmt.Sprintf("%.2f %s", item.Value.Value, item.Value.Unit))
		}
		if resp.Comparison.Result != nil {
			ui.Success("Result: %.2f %s", *resp.Comparison.Result, resp.Comparison.Unit)
		}
	}

	if len(resp.Candidates) > 0 {
		ui.Header("Documents")
		for i, c := range resp.Candidates {
			if i >= 5 {
				ui.Info("... and %d more", len(resp.Candidates)-5)
				break
			}
			content := c.Content
			if len(content) > 96 {
				content = content[:96] + "..."
			}
			ui.KeyValue(fmt.Sprintf("%.3f", c.FusedScore), content)
		}
	}
}

func newDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [file.json]",
		Short: "Index knowledge documents from a JSON file",
		Long:  `Reads a JSON file holding {"documents": [...]} and posts it to the API.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read documents file: %w", err)
			}

			var payload struct {
				Documents []engine.Document `json:"documents"`
			}
			if err := json.Unmarshal(data, &payload); err != nil {
				return fmt.Errorf("parse documents file: %w", err)
			}
			if len(payload.Documents) == 0 {
				return fmt.Errorf("no documents in %s", args[0])
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			resp, err := client.IndexDocuments(ctx, payload.Documents)
			if err != nil {
				ui.Error("Indexing failed: %v", err)
				return err
			}
			if ui.JSON(resp) {
				return nil
			}
			ui.Success("Indexed %d documents (%d total)", resp.Indexed, resp.Total)
			return nil
		},
	}
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache-stats",
		Short: "Show engine and semantic cache counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			stats, err := client.Stats(ctx)
			if err != nil {
				ui.Error("Stats request failed: %v", err)
				return err
			}

			if ui.JSON(stats) {
				return nil
			}

			ui.Header("Routing")
			ui.KeyValue("structured", stats.Structured)
			ui.KeyValue("knowledge", stats.Knowledge)
			ui.KeyValue("comparative", stats.Comparative)
			ui.KeyValue("clarify", stats.Clarify)

			ui.Header("Semantic cache")
			ui.KeyValue("exact hits", stats.Cache.ExactHits)
			ui.KeyValue("semantic hits", stats.Cache.SemanticHits)
			ui.KeyValue("misses", stats.Cache.Misses)
			ui.KeyValue("errors", stats.Cache.Errors)
			ui.KeyValue("hit rate", fmt.Sprintf("%.1f%%", stats.Cache.HitRate*100))
			return nil
		},
	}
}

func newInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate [fingerprint]",
		Short: "Drop cached answers for a context fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if err := client.Invalidate(ctx, args[0]); err != nil {
				ui.Error("Invalidation failed: %v", err)
				return err
			}
			ui.Success("Cache invalidated for fingerprint %s", args[0])
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "seed-db",
		Short: "Create and seed a local SQLite metric database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sql.Open("sqlite3", dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			schema := `
				CREATE TABLE IF NOT EXISTS breed_metrics (
					breed    TEXT NOT NULL,
					sex      TEXT NOT NULL,
					age_days INTEGER NOT NULL,
					metric   TEXT NOT NULL,
					value    REAL NOT NULL,
					unit     TEXT NOT NULL,
					PRIMARY KEY (breed, sex, age_days, metric)
				)`
			if _, err := db.ExecContext(ctx, schema); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}

			values := metrics.ReferenceValues()
			for _, v := range values {
				_, err := db.ExecContext(ctx,
					`INSERT OR REPLACE INTO breed_metrics (breed, sex, age_days, metric, value, unit) VALUES (?, ?, ?, ?, ?, ?)`,
					v.Breed, string(v.Sex), v.AgeDays, string(v.Metric), v.Value, v.Unit)
				if err != nil {
					return fmt.Errorf("insert row: %w", err)
				}
			}

			ui.Success("Seeded %d rows into %s", len(values), dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "/tmp/query-engine.db", "SQLite database path")
	return cmd
}
