package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/putscan/internal/api"
	"github.com/wonny/putscan/internal/api/handlers"
	"github.com/wonny/putscan/internal/brain"
	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/export"
	"github.com/wonny/putscan/internal/scheduler"
	"github.com/wonny/putscan/internal/scheduler/jobs"
	"github.com/wonny/putscan/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Daemon mode: scheduled scans",
	Long: `Run scans on the scan config's cron schedule.

Subcommands:
  start   - start the scheduler and the HTTP API
  run     - run the scan job once, now

Example:
  go run ./cmd/putscan scheduler start
  go run ./cmd/putscan scheduler run`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler and the HTTP API",
		Long: `Registers the scan job (schedule.cron from the scan config, evaluated in
meta.timezone) and a gateway keepalive, then serves:

  GET  /health
  GET  /metrics
  GET  /api/scans/latest[?limit=N]
  GET  /api/scans/latest.csv
  GET  /api/jobs
  GET  /api/jobs/{name}/history
  POST /api/jobs/{name}/run

Stop with Ctrl+C.`,
		RunE: runSchedulerStart,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the scan job once and exit",
		RunE:  runSchedulerOnce,
	}

	schedulerConfigPath string
	schedulerOutputDir  string
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().StringVar(&schedulerConfigPath, "config", "", "scan config YAML (default $SCAN_CONFIG or built-in)")
	schedulerCmd.PersistentFlags().StringVar(&schedulerOutputDir, "output-dir", "", "directory for the CSVs (default $OUTPUT_DIR)")
}

// daemon is everything scheduler start/run need
type daemon struct {
	deps  *deps
	sched *scheduler.Scheduler
	store *brain.ResultStore
	scan  *jobs.ScanJob
}

func initDaemon(ctx context.Context) (*daemon, error) {
	d, err := initDeps(ctx, schedulerConfigPath)
	if err != nil {
		return nil, err
	}

	loc, err := d.scan.Location()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("scan timezone: %w", err)
	}

	dir := schedulerOutputDir
	if dir == "" {
		dir = appConfig.OutputDir
	}

	store := brain.NewResultStore(redis.NewCache(d.redis, "putscan"), d.scan.Meta.ScanID, appLogger)
	scanJob := jobs.NewScanJob(func() (contracts.MarketFeed, error) {
		return d.newGateway(), nil
	}, d.scan, export.NewExporter(dir), d.metrics, store, appLogger)

	sched := scheduler.New(appLogger, loc)
	if err := sched.AddJob(scanJob); err != nil {
		d.Close()
		return nil, err
	}
	if err := sched.AddJob(jobs.NewKeepaliveJob(d.newGateway(), appLogger)); err != nil {
		d.Close()
		return nil, err
	}

	return &daemon{deps: d, sched: sched, store: store, scan: scanJob}, nil
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dm, err := initDaemon(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer dm.deps.Close()

	router := api.NewRouter(api.Handlers{
		Scans:   handlers.NewScanHandler(dm.store, appLogger),
		Jobs:    handlers.NewJobHandler(dm.sched, appLogger),
		Metrics: dm.deps.metrics.Handler(),
	}, appLogger)
	server := api.New(appConfig, appLogger, router)

	dm.sched.Start()
	defer dm.sched.Stop()

	PrintSuccess("Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, name := range dm.sched.GetAllJobs() {
		next := dm.sched.NextRun(name)
		fmt.Printf("   • %s (next: %s)\n", name, next.Format(time.RFC3339))
	}
	fmt.Printf("\nAPI listening on :%s, press Ctrl+C to stop\n", appConfig.Port)

	// blocks until Ctrl+C
	if err := server.Run(ctx); err != nil {
		return err
	}

	fmt.Println("\nShutting down scheduler...")
	return nil
}

func runSchedulerOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dm, err := initDaemon(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer dm.deps.Close()

	fmt.Printf("Running job: %s\n", dm.scan.Name())

	result, err := dm.sched.RunJob(ctx, dm.scan.Name())
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %.2fs", result.JobName, result.Duration.Seconds()))
	if latest, ok := dm.store.Latest(ctx); ok && !latest.Empty() {
		PrintList([]string{
			fmt.Sprintf("rows: %d", len(latest.Rows)),
			fmt.Sprintf("best: %s (%.2f%%)", latest.Summary.Top, latest.Summary.MaxAnn),
			fmt.Sprintf("saved: %s", latest.ExportPath),
		})
	}
	return nil
}
