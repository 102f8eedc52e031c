// Command gridstore stores, inspects and removes chunked files in the
// configured document store, sweeps orphaned chunks, and serves
// Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/marmos91/gridstore/internal/logger"
	"github.com/marmos91/gridstore/pkg/config"
	"github.com/marmos91/gridstore/pkg/gc"
	"github.com/marmos91/gridstore/pkg/grid"
	"github.com/marmos91/gridstore/pkg/session"
)

// streamBufferSize is the transfer buffer for put and cat. Matches the
// default chunk size so a full chunk moves per store round trip.
const streamBufferSize = 255 * 1024

// errAbsent distinguishes "the file does not exist" from a real
// failure so the exists command can exit 1 without logging an error.
var errAbsent = errors.New("absent")

func usage() {
	fmt.Fprintf(os.Stderr, `Gridstore - chunked file storage on document collections

Usage:
  gridstore [flags] <command> [command flags] [args]

Commands:
  init             Write a starter config file
  put <name>       Store a file from stdin (or -in)
  cat <name>       Write a file's content to stdout
  lines <name>     Print a file's content line by line
  range <name> <offset> <length>
                   Write a byte range to stdout (negative length reads
                   to the end)
  ls               List files in a namespace
  stat <name>      Show a file's record
  rm <name>        Remove a file and all its versions
  exists <name>    Exit 0 when the file exists, 1 when it does not
  gc               Sweep orphaned chunks once
  serve            Run the metrics server and the background sweeper

Flags:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nRun 'gridstore <command> -h' for command flags.\n")
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Override the configured log level (DEBUG, INFO, WARN, ERROR)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	// init must work before any config file exists.
	if command == "init" {
		runInit(args)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure logger
	logger.SetFormat(cfg.Logging.Format)
	logger.SetLevel(cfg.Logging.Level)
	if *logLevel != "" {
		logger.SetLevel(*logLevel)
	}
	defer logger.Sync()

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch command {
	case "put":
		err = runPut(ctx, cfg, args)
	case "cat":
		err = runCat(ctx, cfg, args)
	case "lines":
		err = runLines(ctx, cfg, args)
	case "range":
		err = runRange(ctx, cfg, args)
	case "ls":
		err = runList(ctx, cfg, args)
	case "stat":
		err = runStat(ctx, cfg, args)
	case "rm":
		err = runRemove(ctx, cfg, args)
	case "exists":
		err = runExists(ctx, cfg, args)
	case "gc":
		err = runSweep(ctx, cfg, args)
	case "serve":
		err = runServe(ctx, cancel, cfg)
	default:
		fmt.Fprintf(os.Stderr, "gridstore: unknown command %q\n", command)
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, errAbsent) {
			os.Exit(1)
		}
		log.Fatalf("%s: %v", command, err)
	}
}

func runInit(args []string) {
	flags := flag.NewFlagSet("init", flag.ExitOnError)
	force := flags.Bool("force", false, "Overwrite an existing config file")
	if err := flags.Parse(args); err != nil {
		log.Fatalf("init: %v", err)
	}

	path, err := config.InitConfig(*force)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	fmt.Printf("Config file written to %s\n", path)
}

// withSession dials a session against the configured document store,
// runs fn, and closes the session on every exit path. A close failure
// surfaces only when fn itself succeeded.
func withSession(ctx context.Context, cfg *config.Config, fn func(*session.Session) error) (err error) {
	sess, err := config.CreateSession(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := sess.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return fn(sess)
}

func runPut(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("put", flag.ExitOnError)
	ns := flags.String("ns", grid.DefaultNamespace, "Namespace to store into")
	input := flags.String("in", "", "Read content from this file instead of stdin")
	chunkSize := flags.Int64("chunk-size", 0, "Chunk size in bytes (0 = namespace default)")
	contentType := flags.String("content-type", "", "Content type to record")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: gridstore put [flags] <name>")
	}
	name := flags.Arg(0)

	var in io.Reader = os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	return withSession(ctx, cfg, func(sess *session.Session) error {
		var written int64
		err := sess.Grid(*ns).With(ctx, name, "w", func(f *grid.File) error {
			if *chunkSize > 0 {
				if err := f.SetChunkSize(*chunkSize); err != nil {
					return err
				}
			}
			if *contentType != "" {
				if err := f.SetContentType(*contentType); err != nil {
					return err
				}
			}

			buf := make([]byte, streamBufferSize)
			for {
				n, readErr := in.Read(buf)
				if n > 0 {
					if _, writeErr := f.Write(ctx, buf[:n]); writeErr != nil {
						return writeErr
					}
					written += int64(n)
				}
				if readErr == io.EOF {
					return nil
				}
				if readErr != nil {
					return readErr
				}
			}
		})
		if err != nil {
			return err
		}
		logger.Info("Stored %s (%d bytes, namespace %q)", name, written, *ns)
		return nil
	})
}

func runCat(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("cat", flag.ExitOnError)
	ns := flags.String("ns", grid.DefaultNamespace, "Namespace to read from")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: gridstore cat [flags] <name>")
	}
	name := flags.Arg(0)

	return withSession(ctx, cfg, func(sess *session.Session) error {
		return sess.Grid(*ns).With(ctx, name, "r", func(f *grid.File) error {
			buf := make([]byte, streamBufferSize)
			for {
				n, readErr := f.Read(ctx, buf)
				if n > 0 {
					if _, writeErr := os.Stdout.Write(buf[:n]); writeErr != nil {
						return writeErr
					}
				}
				if readErr == io.EOF {
					return nil
				}
				if readErr != nil {
					return readErr
				}
			}
		})
	})
}

func runLines(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("lines", flag.ExitOnError)
	ns := flags.String("ns", grid.DefaultNamespace, "Namespace to read from")
	numbered := flags.Bool("n", false, "Number output lines")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: gridstore lines [flags] <name>")
	}
	name := flags.Arg(0)

	return withSession(ctx, cfg, func(sess *session.Session) error {
		lines, err := sess.Grid(*ns).ReadLines(ctx, name)
		if err != nil {
			return err
		}

		// Lines keep their terminators, so printing them raw
		// reconstructs the content byte for byte.
		for i, line := range lines {
			if *numbered {
				fmt.Printf("%6d\t%s", i+1, line)
				if !strings.HasSuffix(line, "\n") {
					fmt.Println()
				}
				continue
			}
			fmt.Print(line)
		}
		return nil
	})
}

func runRange(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("range", flag.ExitOnError)
	ns := flags.String("ns", grid.DefaultNamespace, "Namespace to read from")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 3 {
		return errors.New("usage: gridstore range [flags] <name> <offset> <length>")
	}
	name := flags.Arg(0)

	offset, err := strconv.ParseInt(flags.Arg(1), 10, 64)
	if err != nil {
		return fmt.Errorf("bad offset %q: %w", flags.Arg(1), err)
	}
	length, err := strconv.ParseInt(flags.Arg(2), 10, 64)
	if err != nil {
		return fmt.Errorf("bad length %q: %w", flags.Arg(2), err)
	}

	return withSession(ctx, cfg, func(sess *session.Session) error {
		data, err := sess.Grid(*ns).ReadRange(ctx, name, offset, length)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	})
}

func runList(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("ls", flag.ExitOnError)
	ns := flags.String("ns", grid.DefaultNamespace, "Namespace to list")
	allVersions := flags.Bool("versions", false, "Include historical versions")
	if err := flags.Parse(args); err != nil {
		return err
	}

	return withSession(ctx, cfg, func(sess *session.Session) error {
		records, err := sess.Grid(*ns).List(ctx)
		if err != nil {
			return err
		}

		if !*allVersions {
			// Collapse to the record each name currently resolves to.
			latest := make(map[string]*grid.FileRecord)
			for _, rec := range records {
				cur, ok := latest[rec.Name]
				if !ok || rec.UploadTimestamp.After(cur.UploadTimestamp) ||
					(rec.UploadTimestamp.Equal(cur.UploadTimestamp) && rec.ID > cur.ID) {
					latest[rec.Name] = rec
				}
			}
			records = records[:0]
			for _, rec := range latest {
				records = append(records, rec)
			}
		}

		sort.Slice(records, func(i, j int) bool {
			if records[i].Name != records[j].Name {
				return records[i].Name < records[j].Name
			}
			return records[i].UploadTimestamp.Before(records[j].UploadTimestamp)
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tCONTENT-TYPE\tUPLOADED\tID")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				rec.Name,
				rec.Length,
				rec.ContentType,
				rec.UploadTimestamp.Format(time.RFC3339),
				rec.ID,
			)
		}
		return w.Flush()
	})
}

func runStat(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("stat", flag.ExitOnError)
	ns := flags.String("ns", grid.DefaultNamespace, "Namespace to look in")
	allVersions := flags.Bool("versions", false, "Show every stored version")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: gridstore stat [flags] <name>")
	}
	name := flags.Arg(0)

	return withSession(ctx, cfg, func(sess *session.Session) error {
		if *allVersions {
			records, err := sess.Grid(*ns).Versions(ctx, name)
			if err != nil {
				return err
			}
			sort.Slice(records, func(i, j int) bool {
				return records[i].UploadTimestamp.Before(records[j].UploadTimestamp)
			})
			for i, rec := range records {
				if i > 0 {
					fmt.Println()
				}
				printRecord(rec)
			}
			return nil
		}

		rec, err := sess.Grid(*ns).Stat(ctx, name)
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	})
}

func printRecord(rec *grid.FileRecord) {
	chunks := int64(0)
	if rec.Length > 0 {
		chunks = (rec.Length + rec.ChunkSize - 1) / rec.ChunkSize
	}

	fmt.Printf("Name:          %s\n", rec.Name)
	fmt.Printf("Namespace:     %s\n", rec.Namespace)
	fmt.Printf("ID:            %s\n", rec.ID)
	fmt.Printf("Length:        %d\n", rec.Length)
	fmt.Printf("Chunk size:    %d\n", rec.ChunkSize)
	fmt.Printf("Chunks:        %d\n", chunks)
	fmt.Printf("Content type:  %s\n", rec.ContentType)
	fmt.Printf("Uploaded:      %s\n", rec.UploadTimestamp.Format(time.RFC3339Nano))

	if len(rec.Metadata) > 0 {
		keys := make([]string, 0, len(rec.Metadata))
		for k := range rec.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Println("Metadata:")
		for _, k := range keys {
			fmt.Printf("  %s: %v\n", k, rec.Metadata[k])
		}
	}
}

func runRemove(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("rm", flag.ExitOnError)
	ns := flags.String("ns", grid.DefaultNamespace, "Namespace to remove from")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: gridstore rm [flags] <name>")
	}
	name := flags.Arg(0)

	return withSession(ctx, cfg, func(sess *session.Session) error {
		if err := sess.Grid(*ns).Unlink(ctx, name); err != nil {
			return err
		}
		logger.Info("Removed %s (namespace %q)", name, *ns)
		return nil
	})
}

func runExists(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("exists", flag.ExitOnError)
	ns := flags.String("ns", grid.DefaultNamespace, "Namespace to look in")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: gridstore exists [flags] <name>")
	}
	name := flags.Arg(0)

	return withSession(ctx, cfg, func(sess *session.Session) error {
		ok, err := sess.Grid(*ns).Exists(ctx, name)
		if err != nil {
			return err
		}
		fmt.Println(ok)
		if !ok {
			return errAbsent
		}
		return nil
	})
}

func runSweep(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("gc", flag.ExitOnError)
	dryRun := flags.Bool("dry-run", false, "Report orphaned chunks without deleting them")
	namespaces := flags.String("ns", "", "Comma-separated namespaces to sweep (default: configured gc namespaces)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	sweep := cfg.GC.Namespaces
	if *namespaces != "" {
		sweep = strings.Split(*namespaces, ",")
	}

	return withSession(ctx, cfg, func(sess *session.Session) error {
		// A manual sweep runs whether or not the background collector
		// is enabled in the config.
		collector, err := gc.NewCollector(sess, gc.Config{
			Enabled:    true,
			Namespaces: sweep,
			DryRun:     *dryRun,
		})
		if err != nil {
			return err
		}

		stats, err := collector.RunNow(ctx)
		if err != nil {
			return err
		}
		fmt.Println(stats.Summary())
		return nil
	})
}

// runServe runs the long-lived pieces of a deployment: the Prometheus
// metrics endpoint and the background orphan sweeper. It blocks until a
// shutdown signal arrives or the metrics server fails.
func runServe(ctx context.Context, cancel context.CancelFunc, cfg *config.Config) error {
	fmt.Println("Gridstore - chunked file storage")

	metricsResult := config.InitializeMetrics(cfg)

	sess, err := config.CreateSession(ctx, cfg, metricsResult)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			logger.Error("Failed to close session: %v", closeErr)
		}
	}()

	collector, err := config.CreateCollector(sess, &cfg.GC)
	if err != nil {
		return err
	}
	if metricsResult.Server == nil && collector == nil {
		return errors.New("nothing to serve: metrics and gc are both disabled")
	}

	if collector != nil {
		collector.Start()
	}

	// Start metrics server in background
	serverDone := make(chan error, 1)
	if metricsResult.Server != nil {
		go func() {
			serverDone <- metricsResult.Server.Start(ctx)
		}()
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("gridstore is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if collector != nil {
			if stopErr := collector.Stop(shutdownCtx); stopErr != nil {
				logger.Error("Collector shutdown error: %v", stopErr)
			}
		}
		if metricsResult.Server != nil {
			if serveErr := <-serverDone; serveErr != nil {
				return fmt.Errorf("metrics server shutdown: %w", serveErr)
			}
		}
		logger.Info("Stopped gracefully")
		return nil

	case serveErr := <-serverDone:
		cancel()

		if collector != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer shutdownCancel()
			if stopErr := collector.Stop(shutdownCtx); stopErr != nil {
				logger.Error("Collector shutdown error: %v", stopErr)
			}
		}
		if serveErr != nil {
			return fmt.Errorf("metrics server: %w", serveErr)
		}
		logger.Info("Metrics server stopped")
		return nil
	}
}
