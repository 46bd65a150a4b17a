package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/creastat/convstore/config"
	"github.com/creastat/convstore/vectorstore/chromem"
	"github.com/spf13/cobra"
)

var (
	configPath string
	userHandle string

	rootCmd = &cobra.Command{
		Use:           "convstore",
		Short:         "Operate the conversation session store",
		Long:          `convstore drives recommendation conversations backed by a session cache and a durable conversation log.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	chatCmd = &cobra.Command{
		Use:   "chat [conversation-id]",
		Short: "Chat interactively, starting a new conversation unless an id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runChat,
	}
	conversationsCmd = &cobra.Command{
		Use:   "conversations",
		Short: "List the user's conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE:  runConversations,
	}
	messagesCmd = &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "Print the visible messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runMessages,
	}
	showCmd = &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print the session of a conversation as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	evictCmd = &cobra.Command{
		Use:   "evict <conversation-id>",
		Short: "Drop the cached session so the next access rebuilds it from the log",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvict,
	}
	deleteCmd = &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation and its cached session",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create the conversation log tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
	indexCmd = &cobra.Command{
		Use:   "index <problems.jsonl>",
		Short: "Index problem embeddings into the embedded vector store",
		Long:  `Reads one JSON object per line: {"id": "1000", "title": "A+B", "level": 1, "vector": [...]}.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runIndex,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	for _, cmd := range []*cobra.Command{chatCmd, conversationsCmd, messagesCmd, showCmd, deleteCmd} {
		cmd.Flags().StringVarP(&userHandle, "user", "u", "", "handle of the acting user")
		_ = cmd.MarkFlagRequired("user")
	}

	rootCmd.AddCommand(chatCmd, conversationsCmd, messagesCmd, showCmd, evictCmd, deleteCmd, migrateCmd, indexCmd)
}

// withApp loads configuration, wires the components and runs fn with a context that is
// cancelled on SIGINT/SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close components", "error", err)
		}
	}()
	return fn(ctx, a)
}

func runChat(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var conversationID string
		if len(args) == 1 {
			conversationID = args[0]
		}
		return chatLoop(ctx, a, conversationID, cmd.InOrStdin(), cmd.OutOrStdout())
	})
}

// chatLoop reads one message per line until EOF.
func chatLoop(ctx context.Context, a *app, conversationID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if conversationID == "" {
			res, err := a.chat.StartConversation(ctx, userHandle, line)
			if err != nil {
				return err
			}
			conversationID = res.Conversation.ID
			fmt.Fprintf(out, "[%s] %s\n\n%s\n\n", conversationID, res.Conversation.Title, res.FirstMessage.Content)
			continue
		}

		msg, err := a.chat.PostMessage(ctx, conversationID, userHandle, line)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", msg.Content)
		if len(msg.Keywords) > 0 {
			fmt.Fprintf(out, "keywords: %s\n", strings.Join(msg.Keywords, ", "))
		}
		fmt.Fprintln(out)
	}
}

func runConversations(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		list, err := a.chat.ListConversations(ctx, userHandle)
		if err != nil {
			return err
		}
		for _, c := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c.ID, c.LastModified.Format("2006-01-02 15:04"), c.Title)
		}
		return nil
	})
}

func runMessages(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		msgs, err := a.chat.ListMessages(ctx, args[0], userHandle)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n\n", m.Sender, m.Content)
		}
		return nil
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		s, err := a.manager.ObtainSession(ctx, args[0], userHandle)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	})
}

func runEvict(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		a.manager.DeleteSession(ctx, args[0])
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.chat.DeleteConversation(ctx, args[0], userHandle)
	})
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if a.sql == nil {
			return errors.New("migrate only applies to the sql store backend")
		}
		// buildApp already ensured the schema.
		a.logger.Info("schema ready", "driver", a.cfg.Store.Driver)
		return nil
	})
}

type problemLine struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Level  int       `json:"level"`
	Vector []float32 `json:"vector"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if a.problems == nil {
			return errors.New("index only applies to the chromem candidate backend")
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		n, err := indexProblems(ctx, a.problems, f)
		if err != nil {
			return err
		}
		a.logger.Info("problems indexed", "count", n, "total", a.problems.Count())
		return nil
	})
}

// indexProblems upserts every JSON line of r.
func indexProblems(ctx context.Context, store *chromem.Store, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	n := 0
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var p problemLine
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := store.Upsert(ctx, chromem.Problem{ID: p.ID, Title: p.Title, Level: p.Level, Vector: p.Vector}); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	return n, scanner.Err()
}
