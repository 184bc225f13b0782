package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ai-assistant-be/internal/bootstrap"
	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/continuity"
	"ai-assistant-be/pkg/generation"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const cliContextID = "cli"

// signedIn stands in for a bearer token when running locally.
type signedIn struct{}

func (signedIn) IsAuthenticated(context.Context) bool { return true }

type chatController interface {
	Submit(ctx context.Context, text string) (*generation.Session, error)
	Stop()
	Active() *generation.Session
	Subscribe(fn func(generation.Event)) func()
	Close()
}

func newChatCmd() *cobra.Command {
	var (
		auth   bool
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Long:  "Starts a local REPL on one conversation context. Type /stop to cancel the running request and /quit to exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}

			zl := logger.NewIsolatedLogger("logs/assistant_cli.log").Zap()
			acts, err := bootstrap.NewActions(cmd.Context(), cfg, nil, zl)
			if err != nil {
				return err
			}
			opts, err := bootstrap.ControllerOptions(cfg, zl)
			if err != nil {
				return err
			}

			var checker continuity.AuthChecker
			if auth {
				checker = signedIn{}
			}
			ctrl := generation.NewController(cfg.GenerationConfig(cliContextID), acts, checker, nil, opts...)
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), ctrl, outDir)
		},
	}

	cmd.Flags().BoolVar(&auth, "signed-in", false, "allow image, document and podcast requests")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for generated documents and audio")
	return cmd
}

// syncWriter serializes writes from the input loop and session events.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// runChat reads one request per line until EOF or /quit. On EOF the running
// session is allowed to finish.
func runChat(ctx context.Context, in io.Reader, out io.Writer, ctrl chatController, outDir string) error {
	w := &syncWriter{w: out}
	unsubscribe := ctrl.Subscribe(func(e generation.Event) {
		printSessionEvent(w, e, outDir)
	})
	defer unsubscribe()
	defer ctrl.Close()

	fmt.Fprintln(w, "Type a message. /stop cancels, /quit exits.")
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/stop":
			ctrl.Stop()
			continue
		}

		if _, err := ctrl.Submit(ctx, line); err != nil {
			color.New(color.FgRed).Fprintf(w, "! %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if s := ctrl.Active(); s != nil {
		if _, err := s.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func printSessionEvent(w io.Writer, e generation.Event, outDir string) {
	switch e.Type {
	case generation.EventTransition:
		t := e.Transition
		c := color.New(color.FgYellow)
		switch t.To {
		case generation.StateCompleted:
			c = color.New(color.FgGreen)
		case generation.StateFailed, generation.StateCancelled:
			c = color.New(color.FgRed)
		}
		if t.Reason != "" {
			c.Fprintf(w, "[%s → %s] %s\n", t.From, t.To, t.Reason)
		} else {
			c.Fprintf(w, "[%s → %s]\n", t.From, t.To)
		}
	case generation.EventStep:
		color.New(color.FgYellow).Fprintf(w, "  … %s\n", e.Step)
	case generation.EventCompleted:
		if e.Result != nil {
			printResult(w, *e.Result, outDir)
		}
	}
}

func printResult(w io.Writer, res generation.Result, outDir string) {
	if res.State != generation.StateCompleted {
		if res.Error != "" {
			color.New(color.FgRed).Fprintf(w, "! %s\n", res.Error)
		}
		return
	}

	if res.Response != nil {
		prefix := "assistant:"
		if res.Fallback {
			prefix = "assistant (offline):"
		}
		color.New(color.FgCyan).Fprint(w, prefix+" ")
		fmt.Fprintln(w, res.Response.Text)
	}

	m := res.Media
	if m == nil {
		return
	}
	switch {
	case m.Image != nil:
		fmt.Fprintf(w, "image: %s\n", m.Image.URL)
	case m.Document != nil:
		saveArtifact(w, outDir, m.Document.Filename, []byte(m.Document.Text))
	case m.Audio != nil:
		saveArtifact(w, outDir, m.Audio.Filename, m.Audio.Data)
	}
}

func saveArtifact(w io.Writer, dir, name string, data []byte) {
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		color.New(color.FgRed).Fprintf(w, "! save %s: %v\n", path, err)
		return
	}
	fmt.Fprintf(w, "saved: %s\n", path)
}
