package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arashk/dirdex/internal/config"
	"github.com/arashk/dirdex/internal/httpapi"
	"github.com/arashk/dirdex/internal/indexpool"
	"github.com/arashk/dirdex/internal/mcpserver"
	"github.com/arashk/dirdex/internal/searchengine"
	"github.com/arashk/dirdex/internal/supervisor"
	"github.com/arashk/dirdex/internal/tokenize"
	"github.com/arashk/dirdex/internal/version"
	"github.com/arashk/dirdex/internal/watch"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "dirdex",
	Short:   "Live in-memory full-text search over a directory tree",
	Version: version.Full(),
	Long: `dirdex watches a directory tree, keeps an in-memory word or trigram
index of its contents up to date, and answers substring search queries
against that index while it runs.`,
}

func init() {
	rootCmd.PersistentFlags().String("root", ".", "directory tree to index")
	rootCmd.PersistentFlags().String("mode", "word", "tokenization mode: word or trigram")
	rootCmd.PersistentFlags().Bool("no-watch", false, "disable live filesystem notifications (one-shot walk only)")
	rootCmd.PersistentFlags().Int("workers", indexpool.DefaultWorkers, "indexer pool worker count")
	rootCmd.PersistentFlags().Int64("max-file-size", indexpool.DefaultMaxFileSize, "per-file size cap in bytes")

	runCmd.Flags().Bool("quiet", false, "disable component logging at startup")

	serveCmd.Flags().Bool("http", true, "serve the HTTP API")
	serveCmd.Flags().Bool("mcp", false, "serve the MCP stdio server")
	serveCmd.Flags().String("http-host", "localhost", "HTTP bind host")
	serveCmd.Flags().Int("http-port", 8089, "HTTP bind port")

	statusCmd.Flags().String("format", "text", "output format: text or json")

	rootCmd.AddCommand(runCmd, serveCmd, statusCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dirdex %s\n", version.Short())
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the index and drop into an interactive query shell",
	RunE:  runRun,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the index and expose it over HTTP, or over MCP stdio with --mcp (not both)",
	RunE:  runServe,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run an initial scan and print its final status",
	RunE:  runStatus,
}

// buildConfig reads the shared root/mode/no-watch/workers/max-file-size
// flags into a config.Config layered over dirdex.yaml and the environment.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	root, _ := cmd.Flags().GetString("root")
	abs, err := absPath(root)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(abs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("mode") {
		cfg.Mode, _ = cmd.Flags().GetString("mode")
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); cmd.Flags().Changed("no-watch") && noWatch {
		cfg.EnableWatcher = false
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("max-file-size") {
		cfg.MaxFileSize, _ = cmd.Flags().GetInt64("max-file-size")
	}
	cfg.Root = abs
	return cfg, nil
}

func absPath(p string) (string, error) {
	if p == "" {
		p = "."
	}
	return filepath.Abs(p)
}

// startSupervisor wires a Supervisor from cfg and launches Run in the
// background, returning it and a search Engine over it.
func startSupervisor(ctx context.Context, cfg *config.Config) (*supervisor.Supervisor, *searchengine.Engine) {
	watchCfg := watch.Config{
		Root:           cfg.Root,
		EnableWatcher:  cfg.EnableWatcher,
		IgnorePatterns: cfg.IgnorePatterns,
		EnableLogging:  cfg.LoggingFlag(),
		MaxWalkRetries: cfg.MaxWalkRetries,
	}
	poolCfg := indexpool.Config{
		Workers:     cfg.Workers,
		MaxFileSize: cfg.MaxFileSize,
		Mode:        tokenize.ParseMode(cfg.Mode),
	}

	sup := supervisor.New(supervisor.Config{
		Watch:     watchCfg,
		IndexPool: poolCfg,
		Mode:      tokenize.ParseMode(cfg.Mode),
	})

	go sup.Run(ctx)

	return sup, searchengine.New(sup)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		cfg.SetLogging(false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(cancel)

	sup, engine := startSupervisor(ctx, cfg)

	fmt.Printf("dirdex: indexing %s (%s mode)\n", cfg.Root, cfg.Mode)
	fmt.Println("type 'help' for a list of commands")

	return runShell(ctx, cfg, sup, engine)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	httpOn, _ := cmd.Flags().GetBool("http")
	mcpOn, _ := cmd.Flags().GetBool("mcp")
	if !httpOn && !mcpOn {
		httpOn = true
	}
	if cmd.Flags().Changed("http-host") {
		cfg.HTTP.Host, _ = cmd.Flags().GetString("http-host")
	}
	if cmd.Flags().Changed("http-port") {
		cfg.HTTP.Port, _ = cmd.Flags().GetInt("http-port")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(cancel)

	_, engine := startSupervisor(ctx, cfg)

	if mcpOn {
		server := mcpserver.New(engine)
		return server.Run(ctx)
	}

	server := httpapi.New(cfg.HTTP.Host, cfg.HTTP.Port, engine)
	fmt.Printf("dirdex: serving HTTP on http://%s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.SetLogging(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(cancel)

	sup, _ := startSupervisor(ctx, cfg)

	waitForInitialSync(ctx, sup)
	st := sup.Status(ctx)

	format, _ := cmd.Flags().GetString("format")
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Printf("indexed_files:         %d\n", st.IndexedFiles)
	fmt.Printf("known_tokens:          %d\n", st.KnownTokens)
	fmt.Printf("handled_modifications: %d\n", st.HandledModifications)
	fmt.Printf("total_modifications:   %d\n", st.TotalModifications)
	fmt.Printf("broken:                %t\n", st.IsBroken)
	return nil
}

// waitForInitialSync polls status until InitialSyncTime is stamped, ctx is
// cancelled, or a generous upper bound of polls elapses (guarding against a
// root directory the watcher can never finish walking).
func waitForInitialSync(ctx context.Context, sup *supervisor.Supervisor) {
	for i := 0; i < 600; i++ {
		st := sup.Status(ctx)
		if st.InitialSyncTime != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func installSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()
}

// runShell implements the interactive command surface: find/status/
// enable-logging/blank-line/gc/memory/error/help/stop.
func runShell(ctx context.Context, cfg *config.Config, sup *supervisor.Supervisor, engine *searchengine.Engine) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			cfg.SetLogging(false)
		case line == "stop":
			return nil
		case line == "help":
			printHelp()
		case line == "status":
			printStatus(ctx, sup)
		case line == "enable-logging":
			cfg.SetLogging(true)
			fmt.Println("logging enabled")
		case line == "gc" || line == "memory":
			printMemory()
		case line == "error":
			sup.ForceFailure()
			fmt.Println("forced a generation failure")
		case strings.HasPrefix(line, "find "):
			runFind(ctx, engine, strings.TrimPrefix(line, "find "))
		default:
			fmt.Printf("unrecognized command %q; type 'help'\n", line)
		}
	}
}

func printHelp() {
	fmt.Println(`commands:
  find <query>     stream up to 20 matches for query
  status           print the current index status
  enable-logging    turn component logging back on
  <blank line>     turn component logging off
  gc, memory       print a host memory report
  error            force a generation restart (for testing)
  stop             exit`)
}

func printStatus(ctx context.Context, sup *supervisor.Supervisor) {
	st := sup.Status(ctx)
	fmt.Printf("indexed_files=%d known_tokens=%d handled=%d total=%d broken=%t\n",
		st.IndexedFiles, st.KnownTokens, st.HandledModifications, st.TotalModifications, st.IsBroken)
}

func printMemory() {
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("alloc=%dKB sys=%dKB num_gc=%d goroutines=%d\n",
		m.Alloc/1024, m.Sys/1024, m.NumGC, runtime.NumGoroutine())
}

// runFind streams up to 20 matches, then cancels findCtx to stop the
// underlying search rather than leaving its producer goroutine blocked.
func runFind(ctx context.Context, engine *searchengine.Engine, query string) {
	findCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	matches, warnings := engine.Find(findCtx, query)

	count := 0
	for m := range matches {
		fmt.Printf("%s:%d: %s\n", m.Path, m.LineNo, m.Line)
		count++
		if count >= 20 {
			cancel()
			break
		}
	}
	for w := range warnings {
		fmt.Printf("(%s)\n", w)
	}
	if count == 0 {
		fmt.Println("no matches")
	}
}
