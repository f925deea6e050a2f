package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldops/remindd/internal/profile"
	"github.com/fieldops/remindd/plugin/parser"
	"github.com/fieldops/remindd/server"
	"github.com/fieldops/remindd/server/roster"
	"github.com/fieldops/remindd/server/validate"
	"github.com/fieldops/remindd/store"
	"github.com/fieldops/remindd/store/db"
)

var (
	version = "0.1.0"

	configPath string

	rootCmd = &cobra.Command{
		Use:   "remindd",
		Short: "Natural-language reminder daemon for field crews",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the reminder server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	parseCmd = &cobra.Command{
		Use:   "parse [requester] [message...]",
		Short: "Run one message through the parser and validator, then print the draft",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd, parseCmd, versionCmd)
}

func loadProfile() (*profile.Profile, error) {
	p, err := profile.Load(configPath)
	if err != nil {
		return nil, err
	}
	p.Version = version
	return p, nil
}

func runServe(ctx context.Context) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	driver, err := db.NewDBDriver(p)
	if err != nil {
		return err
	}
	st := store.New(driver, p)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, p, st)
	if err != nil {
		_ = st.Close()
		return err
	}
	return srv.Start(ctx)
}

// runParse is a one-shot pipeline probe: no persistence, no scheduling,
// just parse and validate against the configured roster.
func runParse(ctx context.Context, requester, message string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	r, err := roster.Load(p.RosterPath)
	if err != nil {
		return err
	}
	user, ok := r.Find(requester)
	if !ok {
		return fmt.Errorf("requester %q is not in the roster", requester)
	}

	client := parser.NewOpenAIClient(parser.OpenAIConfig{
		APIKey:  p.ParserAPIKey,
		BaseURL: p.ParserBaseURL,
		Model:   p.ParserModel,
		Timeout: p.ParserTimeout,
	})

	now := time.Now()
	candidate, err := client.Parse(ctx, &parser.Request{
		RawText:          message,
		ReferenceInstant: now,
		ReferenceZone:    user.Timezone,
	})
	if err != nil {
		return err
	}

	validator := validate.NewValidator(r, p.ConfidenceThreshold)
	draft, violations := validator.Validate(&validate.Input{
		Candidate:        candidate,
		RequesterID:      user.ID,
		ReferenceInstant: now,
	})

	out := map[string]any{
		"candidate":  candidate,
		"draft":      draft,
		"violations": violations,
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
