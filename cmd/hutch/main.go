package main

import (
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nestlab/hutch/pkg/config"
	"github.com/nestlab/hutch/pkg/driver"
	"github.com/nestlab/hutch/pkg/events"
	"github.com/nestlab/hutch/pkg/future"
	"github.com/nestlab/hutch/pkg/log"
	"github.com/nestlab/hutch/pkg/metrics"
	"github.com/nestlab/hutch/pkg/pkgindex"
	"github.com/nestlab/hutch/pkg/repository"
	"github.com/nestlab/hutch/pkg/storage"
	"github.com/nestlab/hutch/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "hutch",
	Short:   "hutch - a sandboxed package manager core",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("hutch version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a hutch.yaml config file (defaults to base-dir settings)")
	rootCmd.PersistentFlags().String("base-dir", defaultBaseDir(), "Base directory for durable state")
	rootCmd.PersistentFlags().String("metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9469)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(indexCmd)
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hutch"
	}
	return home + "/.hutch"
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

// env bundles everything a subcommand needs once flags are parsed,
// built fresh per command rather than kept as long-lived global state.
type env struct {
	cfg   config.Config
	store *storage.Storage
	reg   *driver.Registry
	bus   *events.Broker
	repo  *repository.Repository
	index *pkgindex.Index
}

func newEnv(cmd *cobra.Command) (*env, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	baseDir, _ := cmd.Flags().GetString("base-dir")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	var cfg config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg = config.Defaults(baseDir)
		err = cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if metricsAddr != "" {
		serveMetrics(metricsAddr)
	}

	s := storage.New(cfg.BaseDir, cfg.StorageTTL, cfg.CacheTTL)
	s.LoadIfExpired()

	reg, err := driver.Discover(cfg.DriversDir, buildDriver)
	if err != nil {
		return nil, fmt.Errorf("discover drivers: %w", err)
	}

	bus := events.NewBroker()
	bus.Start()

	return &env{
		cfg:   cfg,
		store: s,
		reg:   reg,
		bus:   bus,
		repo:  repository.New(s, reg, bus),
		index: pkgindex.New(s, reg, bus, cfg.RootDir, cfg.TrashDir),
	}, nil
}

func (e *env) close() {
	e.bus.Stop()
}

// buildDriver interprets a driver stub file's name as the driver kind
// to construct; the stub's contents are not used by either kind.
func buildDriver(name string, _ []byte) (driver.Driver, error) {
	switch name {
	case "local":
		return driver.NewLocalDriver(), nil
	case "github":
		return driver.NewGitHubDriver(), nil
	default:
		return nil, fmt.Errorf("unknown driver kind %q", name)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithComponent("metrics").Error().Err(err).Msg("metrics server stopped")
		}
	}()
}

// --- repo commands ---

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage tracked repositories",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <identifier>...",
	Short: "Add one or more repositories and their companions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		result := future.Drain(e.repo.Add(args...))
		for _, err := range result.Errors {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		if result.Transaction == nil {
			return fmt.Errorf("nothing to add")
		}
		ok, faults := result.Transaction.Apply()
		for _, f := range faults {
			fmt.Fprintf(os.Stderr, "fault: %v\n", f)
		}
		if !ok {
			return fmt.Errorf("add failed and was rolled back")
		}
		fmt.Println("repositories added")
		return nil
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove <identifier>...",
	Short: "Remove repositories and any companions left orphaned",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		result := future.Drain(e.repo.Remove(args...))
		for _, err := range result.Errors {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		if result.Transaction == nil {
			return fmt.Errorf("nothing to remove")
		}
		ok, faults := result.Transaction.Apply()
		for _, f := range faults {
			fmt.Fprintf(os.Stderr, "fault: %v\n", f)
		}
		if !ok {
			return fmt.Errorf("remove failed and was rolled back")
		}
		fmt.Println("repositories removed")
		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked repositories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		ids := e.repo.Find("")
		sort.Strings(ids)
		for _, id := range ids {
			entry := e.store.Store[id]
			fmt.Printf("%s\tpriority=%d\tuser_installed=%t\n", id, entry.Priority, entry.UserInstalled)
		}
		return nil
	},
}

var repoFindCmd = &cobra.Command{
	Use:   "find <pattern>",
	Short: "Find tracked repositories by wildcard pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		for _, id := range e.repo.Find(args[0]) {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	repoCmd.AddCommand(repoAddCmd, repoRemoveCmd, repoListCmd, repoFindCmd)
}

// --- package commands ---

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Manage installed packages",
}

var packageAddCmd = &cobra.Command{
	Use:   "add <name[@repo]>...",
	Short: "Download and install one or more packages and their dependencies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		result := future.Drain(e.index.Add(args...))
		for _, err := range result.Errors {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		if result.Transaction == nil {
			return fmt.Errorf("nothing to add")
		}
		ok, faults := result.Transaction.Apply()
		for _, f := range faults {
			fmt.Fprintf(os.Stderr, "fault: %v\n", f)
		}
		if !ok {
			return fmt.Errorf("add failed and was rolled back")
		}
		fmt.Println("packages installed")
		return nil
	},
}

var packageRemoveCmd = &cobra.Command{
	Use:   "remove <name[@repo]>...",
	Short: "Remove packages and any dependencies left orphaned",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		result := future.Drain(e.index.Remove(args...))
		for _, err := range result.Errors {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		if result.Transaction == nil {
			return fmt.Errorf("nothing to remove")
		}
		ok, faults := result.Transaction.Apply()
		for _, f := range faults {
			fmt.Fprintf(os.Stderr, "fault: %v\n", f)
		}
		if !ok {
			return fmt.Errorf("remove failed and was rolled back")
		}
		fmt.Println("packages removed")
		return nil
	},
}

var packageFindCmd = &cobra.Command{
	Use:   "find <name[@repo]>",
	Short: "Find packages published by tracked repositories by wildcard pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		matches := e.index.Find(args[0])
		repos := make([]string, 0, len(matches))
		for repo := range matches {
			repos = append(repos, repo)
		}
		sort.Strings(repos)
		for _, repo := range repos {
			for _, m := range matches[repo] {
				fmt.Println(types.PackageID(m.Name, repo))
			}
		}
		return nil
	},
}

func init() {
	packageCmd.AddCommand(packageAddCmd, packageRemoveCmd, packageFindCmd)
}

// --- index commands ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the global package index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the priority-ordered package index from tracked repositories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		names := future.Drain(e.index.BuildIndex())
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
		fmt.Printf("index rebuilt: %d package names\n", len(names))
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexBuildCmd)
}
