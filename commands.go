package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/example/wordmate/internal/bot"
	"github.com/example/wordmate/internal/importer"
	"github.com/example/wordmate/internal/quiz"
	"github.com/example/wordmate/internal/scheduler"
	"github.com/example/wordmate/internal/selection"
	"github.com/example/wordmate/internal/vocab"
	"github.com/example/wordmate/pkg/models"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "wordmate",
		Short:         "English vocabulary trainer for Korean middle-school students",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "wordmate.toml", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(&configPath))
	rootCmd.AddCommand(newImportCommand(&configPath))
	rootCmd.AddCommand(newSelectCommand(&configPath))
	rootCmd.AddCommand(newQuizCommand(&configPath))
	rootCmd.AddCommand(newStateCommand(&configPath))
	return rootCmd
}

// withApp builds the shared components for one command and closes them after
func withApp(cmd *cobra.Command, configPath *string, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	a.relay.Attach(consoleNotifier(cmd.ErrOrStderr()))
	return fn(ctx, a)
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the daily reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(ctx context.Context, a *app) error {
				if a.cfg.Telegram.Token == "" {
					return errors.New("TELEGRAM_BOT_TOKEN is not set")
				}

				botConfig := bot.DefaultConfig()
				botConfig.ChatID = a.cfg.Telegram.ChatID
				if delay := a.cfg.CallDelay(); delay > 0 {
					botConfig.ImportDelay = delay
				}
				b, err := bot.New(a.cfg.Telegram.Token, a.vocab, a.ai, a.log.With("component", "bot"), botConfig)
				if err != nil {
					return err
				}
				a.relay.Attach(b)

				if a.cfg.Reminder.Enabled {
					reminder := scheduler.New(a.vocab, a.relay, a.log.With("component", "scheduler"), a.cfg.Reminder.At, time.Local)
					if err := reminder.Start(); err != nil {
						return err
					}
					defer reminder.Stop()
				}

				done := make(chan error, 1)
				go func() { done <- b.Run(ctx) }()

				select {
				case err := <-done:
					return err
				case <-ctx.Done():
					a.log.Info("Shutting down")
				}

				select {
				case <-done:
					a.log.Info("Bot stopped successfully")
				case <-time.After(shutdownTimeout):
					a.log.Warn("Background work did not finish before shutdown timeout")
				}
				return nil
			})
		},
	}
}

func newImportCommand(configPath *string) *cobra.Command {
	var (
		add   bool
		grade string
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "List new words found in a PDF, text or spreadsheet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				text, err := importer.ExtractFile(args[0])
				if err != nil {
					return err
				}
				candidates := importer.ExtractCandidates(text, a.vocab.KnownTerms())
				fmt.Fprintf(out, "%d new words\n", len(candidates))
				if !add {
					for _, term := range candidates {
						fmt.Fprintln(out, term)
					}
					return nil
				}

				target, err := resolveGrade(a, grade)
				if err != nil {
					return err
				}
				adder := importer.NewBulkAdder(a.ai, a.vocab, a.log.With("component", "importer"), a.cfg.CallDelay())
				result := adder.Run(ctx, candidates, target, func(done, total int, term string, err error) {
					status := "ok"
					if err != nil {
						status = err.Error()
					}
					fmt.Fprintf(out, "[%d/%d] %s: %s\n", done, total, term, status)
				})
				fmt.Fprintf(out, "added %d, skipped %d, failed %d, not tried %d\n",
					len(result.Added), len(result.Skipped), len(result.Failed), result.Remaining(len(candidates)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&add, "add", false, "Look up every new word with AI and add it as a custom word")
	cmd.Flags().StringVar(&grade, "grade", "", "Grade for added words (중1, 중2, 중3); defaults to the learner's grade")
	return cmd
}

func newSelectCommand(configPath *string) *cobra.Command {
	var (
		mode  string
		grade string
		count int
	)
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Print the words a learning or review session would show",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(ctx context.Context, a *app) error {
				target, err := resolveGrade(a, grade)
				if err != nil {
					return err
				}
				selMode := selection.Daily
				switch strings.ToLower(mode) {
				case "daily", "":
				case "review":
					selMode = selection.Review
				default:
					return fmt.Errorf("unknown mode %q (daily or review)", mode)
				}
				if count <= 0 {
					settings, _ := a.vocab.Settings()
					count = settings.DailyGoal
				}

				words := selection.Select(a.vocab.Words(), a.vocab.Stat, selection.Request{
					Grade: target,
					Count: count,
					Mode:  selMode,
					Now:   a.vocab.Now(),
				})
				out := cmd.OutOrStdout()
				for _, w := range words {
					stat := a.vocab.Stat(w.ID)
					reviewed := "never"
					if stat.LastReviewed != nil {
						reviewed = stat.LastReviewed.Format(models.DateLayout)
					}
					fmt.Fprintf(out, "%-14s %-18s %s (wrong %d, reviewed %s)\n", w.ID, w.Term, w.Meaning, stat.QuizIncorrectCount, reviewed)
				}
				if len(words) == 0 {
					fmt.Fprintln(out, "no eligible words")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "daily", "Selection mode: daily or review")
	cmd.Flags().StringVar(&grade, "grade", "", "Grade (중1, 중2, 중3); defaults to the learner's grade")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of words; defaults to the daily goal")
	return cmd
}

func newQuizCommand(configPath *string) *cobra.Command {
	var (
		grade       string
		count       int
		contextMode bool
	)
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Take a multiple-choice quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(ctx context.Context, a *app) error {
				target, err := resolveGrade(a, grade)
				if err != nil {
					return err
				}
				qtype := quiz.MultipleChoice
				if contextMode {
					qtype = quiz.ContextTest
				}
				q, err := quiz.New(a.vocab.Words(), a.vocab.Stat, quiz.Request{Grade: target, Count: count, Type: qtype})
				if err != nil {
					return err
				}
				return runQuiz(ctx, a, q, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&grade, "grade", "", "Grade (중1, 중2, 중3); defaults to the learner's grade")
	cmd.Flags().IntVarP(&count, "count", "n", quiz.DefaultQuestionCount, "Number of questions")
	cmd.Flags().BoolVar(&contextMode, "context", false, "Fill-in-the-blank questions from example sentences")
	return cmd
}

func newStateCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or clear saved learning data",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved keys and their sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(ctx context.Context, a *app) error {
				keys, err := a.state.Keys(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(keys) == 0 {
					fmt.Fprintln(out, "no saved state")
					return nil
				}
				for _, key := range keys {
					value, err := a.state.Load(ctx, key)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%-16s %d bytes\n", key, len(value))
				}
				return nil
			})
		},
	})

	var all bool
	reset := &cobra.Command{
		Use:   "reset [key...]",
		Short: "Delete saved keys so they start over on the next run",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := resetKeys(args, all)
			if err != nil {
				return err
			}
			return withApp(cmd, configPath, func(ctx context.Context, a *app) error {
				for _, key := range keys {
					if err := a.state.Delete(ctx, key); err != nil {
						return err
					}
					a.log.Info("Deleted saved state", "key", key)
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
				}
				return nil
			})
		},
	}
	reset.Flags().BoolVar(&all, "all", false, "Delete every saved key")
	cmd.AddCommand(reset)
	return cmd
}

// resetKeys checks the requested keys against the ones the vocabulary owns
func resetKeys(args []string, all bool) ([]string, error) {
	if all {
		if len(args) > 0 {
			return nil, errors.New("pass keys or --all, not both")
		}
		return slices.Clone(vocab.StateKeys), nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("name keys to delete (%s) or pass --all", strings.Join(vocab.StateKeys, ", "))
	}
	for _, key := range args {
		if !slices.Contains(vocab.StateKeys, key) {
			return nil, fmt.Errorf("unknown key %q (%s)", key, strings.Join(vocab.StateKeys, ", "))
		}
	}
	return args, nil
}

func runQuiz(ctx context.Context, a *app, q *quiz.Quiz, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for !q.Done() {
		question, index, _ := q.Current()
		fmt.Fprintf(out, "\nQ%d/%d. %s\n", index+1, q.Total(), question.Prompt)
		for i, option := range question.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, option)
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		choice, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil || choice < 1 || choice > len(question.Options) {
			fmt.Fprintln(out, "enter an option number")
			continue
		}
		correct, err := q.Answer(ctx, a.vocab, index, choice-1)
		if err != nil {
			return err
		}
		if correct {
			fmt.Fprintf(out, "correct (%d/%d)\n", q.Score(), index+1)
		} else {
			fmt.Fprintf(out, "wrong, answer: %s (%d/%d)\n", question.Options[question.CorrectIndex], q.Score(), index+1)
		}
	}
	entry := q.Finish(ctx, a.vocab)
	fmt.Fprintf(out, "\nscore %d/%d\n", entry.Score, entry.Total)
	return nil
}

// resolveGrade parses an explicit grade or falls back to the learner's
func resolveGrade(a *app, grade string) (models.Grade, error) {
	if strings.TrimSpace(grade) != "" {
		return models.ParseGrade(grade)
	}
	settings, _ := a.vocab.Settings()
	return settings.Grade, nil
}
