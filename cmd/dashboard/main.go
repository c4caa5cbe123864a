package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/engagement-dashboard/internal/apiclient"
	"github.com/angelmondragon/engagement-dashboard/internal/dashboard"
	"github.com/angelmondragon/engagement-dashboard/internal/engagements"
	"github.com/angelmondragon/engagement-dashboard/pkg/config"
	"github.com/angelmondragon/engagement-dashboard/pkg/logger"
	"github.com/angelmondragon/engagement-dashboard/pkg/metrics"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred teardown completes before exit.
func run(args []string) int {
	logg := logger.New(logger.Options{ServiceName: "dashboard"})

	_ = godotenv.Load()

	flags := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	engagementType := flags.String("type", "", "filter by engagement type")
	source := flags.String("source", "", "filter by engagement source")
	userID := flags.String("user", "", "filter by user id")
	startDate := flags.String("start", "", "range start (RFC3339 or YYYY-MM-DD)")
	endDate := flags.String("end", "", "range end (RFC3339 or YYYY-MM-DD)")
	minScore := flags.String("min-score", "", "minimum score")
	maxScore := flags.String("max-score", "", "maximum score")
	limit := flags.Int("limit", 0, "maximum records to fetch (0 uses the configured default)")
	upload := flags.String("upload", "", "CSV file to upload before loading")
	clearUploaded := flags.Bool("clear", false, "discard uploaded data before loading")
	export := flags.String("export", "", "write the filtered set as CSV to this path and exit")
	watch := flags.Bool("watch", false, "keep refreshing on the configured interval until interrupted")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if !requireResource(context.Background(), logg, "config", err) {
		return 1
	}

	logg = logger.New(logger.Options{
		ServiceName: "dashboard",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"api_url": cfg.Client.BaseURL,
	})

	client, err := apiclient.New(cfg.Client.BaseURL,
		apiclient.WithTimeout(cfg.Client.Timeout),
		apiclient.WithClientVersion(cfg.Client.ClientVersion),
		apiclient.WithLogger(logg),
		apiclient.WithMetrics(metrics.NewClientMetrics(prometheus.DefaultRegisterer)),
	)
	if !requireResource(ctx, logg, "api client", err) {
		return 1
	}

	health := client.Health(ctx)
	if health.Status != "ok" {
		logg.Warn(logg.WithField(ctx, "status", health.Status), "api health check failed")
	}

	criteria := engagements.ParseCriteriaWithDefault(filterValues(
		*engagementType, *source, *userID, *startDate, *endDate, *minScore, *maxScore, *limit,
	), cfg.Dashboard.DefaultLimit)

	if *export != "" {
		if err := exportCSV(ctx, client, criteria, *export); err != nil {
			logg.Error(ctx, "export failed", err)
			return 1
		}
		logg.Info(logg.WithField(ctx, "path", *export), "export written")
		return 0
	}

	ctrl := dashboard.NewController(client, dashboard.Options{
		Logger:       logg,
		DefaultLimit: cfg.Dashboard.DefaultLimit,
		SuccessTTL:   cfg.Dashboard.SuccessNoticeTTL,
		ErrorTTL:     cfg.Dashboard.ErrorNoticeTTL,
	})
	defer ctrl.Teardown()

	unsubscribe := ctrl.Subscribe(func(s dashboard.State) { report(ctx, logg, s) })
	defer unsubscribe()

	if *clearUploaded {
		if _, err := ctrl.ClearUploaded(ctx); err != nil {
			logg.Error(ctx, "clearing uploaded data failed", err)
		}
	}

	if *upload != "" {
		if err := uploadFile(ctx, ctrl, *upload); err != nil {
			logg.Error(logg.WithField(ctx, "file", *upload), "upload failed", err)
		}
	}

	if err := ctrl.ApplyFilters(ctx, criteria); err != nil && !errors.Is(err, dashboard.ErrStale) {
		logg.Error(ctx, "initial load failed", err)
		if !*watch {
			return 1
		}
	}

	if !*watch {
		return 0
	}

	ticker := time.NewTicker(cfg.Dashboard.WatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logg.Info(ctx, "dashboard shutting down")
			return 0
		case <-ticker.C:
			if err := ctrl.Refresh(ctx); err != nil && !errors.Is(err, dashboard.ErrStale) && ctx.Err() == nil {
				logg.Error(ctx, "refresh failed", err)
			}
		}
	}
}

func filterValues(engagementType, source, userID, start, end, minScore, maxScore string, limit int) url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("type", engagementType)
	set("source", source)
	set("userId", userID)
	set("startDate", start)
	set("endDate", end)
	set("minScore", minScore)
	set("maxScore", maxScore)
	if limit > 0 {
		v.Set("limit", fmt.Sprint(limit))
	}
	return v
}

func uploadFile(ctx context.Context, ctrl *dashboard.Controller, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = ctrl.Upload(ctx, filepath.Base(path), f)
	return err
}

func exportCSV(ctx context.Context, client *apiclient.Client, criteria engagements.Criteria, path string) error {
	criteria.Limit = 0
	res, err := client.ExportCSV(ctx, criteria)
	if err != nil {
		return err
	}
	return os.WriteFile(path, res.Value, 0o644)
}

func report(ctx context.Context, logg *logger.Logger, s dashboard.State) {
	fields := map[string]any{
		"status":        s.Status,
		"records":       len(s.Engagements),
		"notifications": len(s.Notifications),
	}
	if s.Analytics != nil {
		fields["total_engagements"] = s.Analytics.TotalEngagements
		fields["average_score"] = s.Analytics.AverageScore
	}
	if s.Metadata != nil {
		fields["data_source"] = s.Metadata.DataSource
		fields["working_set"] = s.Metadata.Total
	}
	if s.Error != nil {
		fields["error_code"] = s.Error.Code
		fields["error"] = s.Error.Message
	}
	logg.Info(logg.WithFields(ctx, fields), "dashboard state")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) bool {
	if err == nil {
		return true
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	return false
}
