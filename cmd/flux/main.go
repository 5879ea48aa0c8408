package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/flux/internal/api"
	"github.com/pbaille/flux/internal/board"
	"github.com/pbaille/flux/internal/config"
	"github.com/pbaille/flux/internal/counter"
	"github.com/pbaille/flux/internal/domain"
	"github.com/pbaille/flux/internal/logging"
	"github.com/pbaille/flux/internal/store"
	"github.com/pbaille/flux/internal/syncer"
)

var (
	configPath string
	dbPath     string
	backend    string
	cfg        config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "flux",
		Short:         "A canvas of floating thoughts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.flux/flux.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path, overrides store.path")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "store backend: sqlite, badger or remote")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(archiveCmd(true))
	rootCmd.AddCommand(archiveCmd(false))
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(counterCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(canvasCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.Store.Path = dbPath
	}
	if backend != "" {
		c.Store.Backend = backend
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

// thoughtStore is a store the command owns and must close.
type thoughtStore interface {
	store.ThoughtStore
	Close() error
}

func getStore(logger *slog.Logger) (thoughtStore, error) {
	switch cfg.Store.Backend {
	case config.BackendBadger:
		return store.OpenBadger(store.BadgerConfig{Path: cfg.Store.Path, Logger: logger.With("component", "badger")})
	case config.BackendRemote:
		return api.NewClient(cfg.Store.URL, cfg.Sync.Timeout)
	default:
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		return store.New(cfg.Store.Path)
	}
}

func cliLogger() (*slog.Logger, error) {
	logger, _, err := logging.New(logging.Options{Level: cfg.Log.Level})
	return logger, err
}

// findThought resolves an id prefix against the store.
func findThought(ctx context.Context, s store.ThoughtStore, prefix string) (domain.Thought, error) {
	thoughts, err := s.ListThoughts(ctx)
	if err != nil {
		return domain.Thought{}, err
	}
	var matches []domain.Thought
	for _, t := range thoughts {
		if strings.HasPrefix(t.ID, prefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Thought{}, fmt.Errorf("thought not found: %s", prefix)
	case 1:
		return matches[0], nil
	default:
		return domain.Thought{}, fmt.Errorf("ambiguous id %s: %d matches", prefix, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// headlessCanvas is the area thoughts added from the command line are
// scattered over; the canvas pulls them inside its own bounds on first tick.
// It is a terminal screen, grown to hold a few cards when cards are larger.
func headlessCanvas(fp domain.Footprint) domain.Bounds {
	return domain.Bounds{
		Width:  max(80, 4*fp.Width),
		Height: max(24, 4*fp.Height),
	}
}

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [text]",
		Short: "Add a thought",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger, err := cliLogger()
			if err != nil {
				return err
			}

			s, err := getStore(logger)
			if err != nil {
				return err
			}
			defer s.Close()

			alloc, err := counter.New(cfg.Counter.Mode, s)
			if err != nil {
				return err
			}
			sy := syncer.New(s, logger, syncer.Options{Timeout: cfg.Sync.Timeout})
			sy.Start()

			fp := domain.Footprint{Width: cfg.Card.Width, Height: cfg.Card.Height}
			b := board.New(s, alloc, sy, logger, board.Config{
				Footprint: fp,
				DtScale:   cfg.Motion.DtScale,
			})
			area := headlessCanvas(fp)
			b.SetCanvas(area.Width, area.Height)

			t, err := b.Create(ctx, strings.Join(args, " "))
			sy.Close()
			if err != nil {
				return err
			}
			if sy.Failures() > 0 {
				return errors.New("thought was not saved, see the log above")
			}

			fmt.Printf("Added thought #%d\n", t.JobNumber)
			fmt.Printf("Text: %s\n", t.Text)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var archived, all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List thoughts, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cliLogger()
			if err != nil {
				return err
			}
			s, err := getStore(logger)
			if err != nil {
				return err
			}
			defer s.Close()

			thoughts, err := s.ListThoughts(cmd.Context())
			if err != nil {
				return err
			}

			shown := 0
			for _, t := range thoughts {
				if !all && t.IsBackup != archived {
					continue
				}
				flag := " "
				if t.IsBackup {
					flag = "A"
				}
				fmt.Printf("%s  %s #%-4d s%-2d %s\n", shortID(t.ID), flag, t.JobNumber, t.Size, t.Text)
				shown++
			}

			if shown == 0 {
				fmt.Println("No thoughts yet. Use 'flux add' to create one.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&archived, "archived", false, "show archived thoughts instead of active ones")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "show active and archived thoughts")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a thought by id prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cliLogger()
			if err != nil {
				return err
			}
			s, err := getStore(logger)
			if err != nil {
				return err
			}
			defer s.Close()

			t, err := findThought(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteThought(cmd.Context(), t.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted #%d: %s\n", t.JobNumber, t.Text)
			return nil
		},
	}
}

// archiveCmd builds "archive" (backup=true) or "restore" (backup=false).
func archiveCmd(backup bool) *cobra.Command {
	use, short, done := "archive [id]", "Move a thought to the backup view", "Archived"
	if !backup {
		use, short, done = "restore [id]", "Bring an archived thought back to the canvas", "Restored"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cliLogger()
			if err != nil {
				return err
			}
			s, err := getStore(logger)
			if err != nil {
				return err
			}
			defer s.Close()

			t, err := findThought(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			if err := s.UpdateThought(cmd.Context(), t.ID, domain.BackupPatch(backup)); err != nil {
				return err
			}
			fmt.Printf("%s #%d: %s\n", done, t.JobNumber, t.Text)
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every thought",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cliLogger()
			if err != nil {
				return err
			}
			s, err := getStore(logger)
			if err != nil {
				return err
			}
			defer s.Close()

			thoughts, err := s.ListThoughts(cmd.Context())
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to delete %d thoughts without --yes", len(thoughts))
			}
			if err := s.DeleteAllThoughts(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Deleted %d thoughts\n", len(thoughts))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func counterCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Show or reset the shared job counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cliLogger()
			if err != nil {
				return err
			}
			s, err := getStore(logger)
			if err != nil {
				return err
			}
			defer s.Close()

			if reset {
				alloc, err := counter.New(cfg.Counter.Mode, s)
				if err != nil {
					return err
				}
				if err := alloc.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Println("Counter reset to 0")
				return nil
			}

			value, err := s.GetCounter(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%d\n", value)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "set the counter back to zero")
	return cmd
}
