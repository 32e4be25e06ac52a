package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/config"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
	"github.com/twinforge/aaskit/store"
)

// SyncCmd represents the sync command
var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize stored objects with their mapped sources",
	Long: `Runs a batch synchronization over every object in the store. By default each
object is updated (pulled) from its mapped sources; with --commit the local
documents are pushed out instead. Objects without a source mapping are
skipped. When no protocol is given, each element syncs over the first
protocol it was mapped under.

After a batch update the refreshed documents are written back to the store;
documents that diverge from what is already stored are only persisted with
--overwrite.

Examples:
  aaskit sync                      # Pull current values from all sources
  aaskit sync --protocol http      # Pull over HTTP mappings only
  aaskit sync --commit             # Push local documents out
  aaskit sync --overwrite          # Pull and persist diverged documents`,
	RunE: runSync,
}

var (
	syncCommitFlag    bool
	syncProtocolFlag  string
	syncOverwriteFlag bool
)

func init() {
	SyncCmd.Flags().BoolVar(&syncCommitFlag, "commit", false, "Push local documents to sources instead of pulling")
	SyncCmd.Flags().StringVar(&syncProtocolFlag, "protocol", "", "Restrict the batch to one protocol (default: first-available)")
	SyncCmd.Flags().BoolVar(&syncOverwriteFlag, "overwrite", false, "Persist refreshed documents that diverge from the store")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	var opts store.Options
	if cfg.Sync.RatePerSecond > 0 {
		burst := cfg.Sync.Burst
		if burst < 1 {
			burst = 1
		}
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.Sync.RatePerSecond), burst)
	}

	mem, persist, cleanup, err := loadStore(cfg, registry, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	if mem.Len() == 0 {
		pterm.Info.Printf("Object store %s is empty, nothing to synchronize\n", cfg.GetStorePath())
		return nil
	}

	// Flags win over the configured defaults.
	protocol := cfg.Sync.Protocol
	if cmd.Flags().Changed("protocol") {
		protocol = syncProtocolFlag
	}
	overwrite := cfg.Sync.Overwrite
	if cmd.Flags().Changed("overwrite") {
		overwrite = syncOverwriteFlag
	}
	p := backend.Protocol(strings.ToUpper(protocol))

	verb := "update"
	if syncCommitFlag {
		verb = "commit"
	}
	label := string(p)
	if label == "" {
		label = "first-available"
	}

	start := time.Now()
	spinner, _ := pterm.DefaultSpinner.Start(
		fmt.Sprintf("Running batch %s over %s sources (%d objects)...", verb, label, mem.Len()))

	ctx := cmd.Context()
	if syncCommitFlag {
		err = mem.CommitAll(ctx, p)
	} else {
		err = mem.UpdateAll(ctx, p)
	}
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		pterm.Error.Printf("Batch %s failed: %v\n", verb, err)
		return err
	}
	pterm.Success.Printf("Batch %s completed in %s\n", verb, time.Since(start).Round(time.Millisecond))

	// Committing pushes local documents out; there is nothing to write back.
	if syncCommitFlag {
		return nil
	}

	counts, err := persist.Sync(mem, overwrite)
	if err != nil {
		return err
	}
	pterm.Println()
	pterm.Info.Printf("Store write-back:\n")
	pterm.Printf("  Added:       %d\n", counts.Added)
	pterm.Printf("  Overwritten: %d\n", counts.Overwritten)
	pterm.Printf("  Skipped:     %d\n", counts.Skipped)

	if !overwrite {
		var diverged []string
		_ = mem.Each(func(x model.Identifiable) bool {
			if !persist.Contains(x) {
				diverged = append(diverged, x.ID())
			}
			return true
		})
		if len(diverged) > 0 {
			pterm.Warning.Printf("%d refreshed documents differ from the store; re-run with --overwrite to persist them\n", len(diverged))
			verbosity, _ := cmd.Flags().GetCount("verbose")
			if logger.ShouldOutput(verbosity, logger.OutputOperationInfo) {
				sort.Strings(diverged)
				for _, id := range diverged {
					pterm.Printf("  %s\n", id)
				}
			}
		}
	}
	return nil
}
