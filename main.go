package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/raine/drip-check/config"
	"github.com/raine/drip-check/internal/analysis"
	"github.com/raine/drip-check/internal/analyzer"
	"github.com/raine/drip-check/internal/api"
	"github.com/raine/drip-check/internal/history"
	"github.com/raine/drip-check/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	logFileName        = "drip-check.log"
	healthCheckTimeout = 5 * time.Second
)

const usageText = `
	Usage: drip-check [-debug] <command> [arguments]

	Commands:
	  analyze -type single|comparison|color <image>...
	  history list [-type T]
	  history show <id>
	  history delete <id>
	  history clear [-type T]
	  history count [-type T]
	  health

	Configuration is read from the environment and %s.
`

func usage() {
	fmt.Fprintln(os.Stderr, formatText(usageText, config.EnvFileName))
}

func main() {
	config.LoadEnvFile()

	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	level := zerolog.WarnLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	closeLog, err := logging.Setup(logFileName, level)
	if err != nil {
		logging.Fatal("%v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "analyze":
		err = runAnalyze(ctx, cfg, args)
	case "history":
		err = runHistory(cfg, args)
	case "health":
		err = runHealth(ctx, cfg)
	default:
		usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	cancel()
	closeLog()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newClient(cfg *config.Config) (*api.Client, error) {
	return api.NewClient(api.ClientOpts{BaseURL: cfg.APIURL, Timeout: cfg.Timeout})
}

func runAnalyze(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	typeName := fs.String("type", "single", "review type: single, comparison or color")
	noHistory := fs.Bool("no-history", false, "do not save the result to history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	reviewType, err := analysis.ParseReviewType(*typeName)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no image files given")
	}

	images := make([][]byte, 0, fs.NArg())
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		images = append(images, data)
	}

	client, err := newClient(cfg)
	if err != nil {
		return errors.New(analyzer.UserMessage(err))
	}

	// The analysis request gets its own error handling, so an unhealthy
	// service only earns a warning here.
	healthCtx, cancelHealth := context.WithTimeout(ctx, healthCheckTimeout)
	healthy := client.IsHealthy(healthCtx)
	cancelHealth()
	if !healthy {
		fmt.Fprintf(os.Stderr, "Warning: %s did not pass a health check, trying anyway\n", client.BaseURL())
	}

	var store history.Store
	if !*noHistory {
		s, err := history.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Warn().Err(err).Str("dbPath", cfg.DBPath).Msg("history unavailable, results will not be saved")
		} else {
			defer s.Close()
			store = s
		}
	}

	session := analyzer.NewSession(analyzer.New(client, store, cfg.MaxRetries), func(s analyzer.Snapshot) {
		if s.IsAnalyzing {
			fmt.Fprintf(os.Stderr, "%s...\n", s.Stage)
		}
	})

	fmt.Fprintf(os.Stderr, "Analyzing %d image(s) for %s\n", len(images), reviewType.DisplayName())
	result, err := session.Start(ctx, images, reviewType)
	stdin := bufio.NewReader(os.Stdin)
	for session.Snapshot().ShowError && !analyzer.IsCanceled(err) {
		fmt.Fprintln(os.Stderr, session.Snapshot().ErrorMessage)
		if !confirm(stdin, os.Stderr, "Retry?") {
			break
		}
		session.Reset()
		result, err = session.Retry(ctx)
	}
	if err != nil {
		return errors.New(analyzer.UserMessage(err))
	}
	if result.IsError() {
		return errors.New(result.Message)
	}

	renderResult(os.Stdout, result)
	return nil
}

func runHealth(ctx context.Context, cfg *config.Config) error {
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("%s is unhealthy: %w", client.BaseURL(), err)
	}
	fmt.Printf("%s is healthy\n", client.BaseURL())
	return nil
}

func runHistory(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("history needs a subcommand: list, show, delete, clear or count")
	}

	store, err := history.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sub, args := args[0], args[1:]
	switch sub {
	case "list":
		types, err := typeFilter(sub, args)
		if err != nil {
			return err
		}
		for _, rt := range types {
			items, err := store.Get(rt)
			if err != nil {
				return err
			}
			renderHistoryList(os.Stdout, rt, items)
		}
	case "count":
		types, err := typeFilter(sub, args)
		if err != nil {
			return err
		}
		for _, rt := range types {
			n, err := store.Count(rt)
			if err != nil {
				return err
			}
			fmt.Printf("%-18s %d\n", rt.DisplayName(), n)
		}
	case "show":
		id, err := parseID(args)
		if err != nil {
			return err
		}
		item, err := store.GetByID(id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("no history item %s", id)
		}
		renderHistoryItem(os.Stdout, item)
	case "delete":
		id, err := parseID(args)
		if err != nil {
			return err
		}
		return store.Delete(id)
	case "clear":
		fs := flag.NewFlagSet("clear", flag.ContinueOnError)
		typeName := fs.String("type", "", "only clear this review type")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *typeName == "" {
			return store.DeleteAll()
		}
		rt, err := analysis.ParseReviewType(*typeName)
		if err != nil {
			return err
		}
		return store.DeleteAllOfType(rt)
	default:
		return fmt.Errorf("unknown history command %q", sub)
	}
	return nil
}

func typeFilter(name string, args []string) ([]analysis.ReviewType, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	typeName := fs.String("type", "", "only this review type")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *typeName == "" {
		return analysis.ReviewTypes, nil
	}
	rt, err := analysis.ParseReviewType(*typeName)
	if err != nil {
		return nil, err
	}
	return []analysis.ReviewType{rt}, nil
}

func parseID(args []string) (uuid.UUID, error) {
	if len(args) != 1 {
		return uuid.Nil, errors.New("expected one history item id")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", args[0], err)
	}
	return id, nil
}

// confirm asks a yes/no question, defaulting to no.
func confirm(in *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
