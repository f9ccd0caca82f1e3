package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/brunobiangulo/litassist"
)

// startRetention schedules pruning of analyses older than days. Returns a
// nil scheduler when retention is disabled.
func startRetention(ctx context.Context, a litassist.Assistant, schedule string, days int) (*cron.Cron, error) {
	if days <= 0 {
		return nil, nil
	}
	if schedule == "" {
		schedule = "@daily"
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() { pruneHistory(ctx, a, days, time.Now()) })
	if err != nil {
		return nil, err
	}
	c.Start()
	slog.Info("history retention scheduled", "schedule", schedule, "days", days)
	return c, nil
}

// pruneHistory deletes analyses created more than days before now.
func pruneHistory(ctx context.Context, a litassist.Assistant, days int, now time.Time) int64 {
	cutoff := now.AddDate(0, 0, -days)
	n, err := a.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("pruning history", "cutoff", cutoff, "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("pruned history", "removed", n, "cutoff", cutoff)
	}
	return n
}
