package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"medisync-rag/internal/loader"
	"medisync-rag/internal/models"
	"medisync-rag/internal/rag"
)

const helpText = `Commands:
  /role <clinician|patient>  change the answer audience
  /reset                     clear the conversation
  /history                   show the conversation
  /quit                      exit`

// cli drives one session from a line-oriented terminal. The mutex serializes
// questions with re-indexing triggered by the watcher.
type cli struct {
	mu      sync.Mutex
	session *rag.Session
	out     io.Writer
	render  func(string) (string, error)
}

func newCLI(session *rag.Session, out io.Writer, render func(string) (string, error)) *cli {
	if render == nil {
		render = func(s string) (string, error) { return s + "\n", nil }
	}
	return &cli{session: session, out: out, render: render}
}

// index reads patterns, keeps the supported files and rebuilds the session index.
func (c *cli) index(ctx context.Context, docs *loader.Loader, patterns []string) error {
	files, err := loader.ReadPaths(patterns)
	if err != nil {
		return err
	}
	files = docs.Filter(files)
	if len(files) == 0 {
		return fmt.Errorf("no supported files found (supported: %s)", strings.Join(docs.Extensions(), ", "))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	event, err := c.session.LoadAndIndex(ctx, files)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Indexed %d documents into %d segments.\n", event.Documents, event.Segments)
	for _, f := range event.Failures {
		fmt.Fprintf(c.out, "  skipped %s: %s\n", f.Name, f.Reason)
	}
	return nil
}

// run reads lines from in until EOF, /quit or ctx is done.
func (c *cli) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(c.out, "Answering as %s. Type /help for commands.\n", c.session.Role())
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := c.handle(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// handle processes one input line and reports whether the user asked to quit.
func (c *cli) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !strings.HasPrefix(line, "/") {
		c.ask(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, helpText)
	case "/role":
		role, err := models.ParseRole(arg)
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return false
		}
		_ = c.session.SetRole(role)
		fmt.Fprintf(c.out, "Answering as %s.\n", role)
	case "/reset":
		c.session.ResetConversation()
		fmt.Fprintln(c.out, "Conversation cleared.")
	case "/history":
		turns := c.session.History()
		if len(turns) == 0 {
			fmt.Fprintln(c.out, "No questions yet.")
		}
		for _, t := range turns {
			fmt.Fprintf(c.out, "[%s] %s\n", t.Speaker, t.Content)
		}
	default:
		fmt.Fprintf(c.out, "Unknown command %s. Type /help for commands.\n", cmd)
	}
	return false
}

func (c *cli) ask(ctx context.Context, question string) {
	answer, err := c.session.Ask(ctx, question)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	rendered, err := c.render(answer.Answer)
	if err != nil {
		rendered = answer.Answer + "\n"
	}
	fmt.Fprint(c.out, rendered)

	if len(answer.Sources) > 0 {
		names := make([]string, 0, len(answer.Sources))
		seen := make(map[string]bool)
		for _, s := range answer.Sources {
			if !seen[s.DocumentName] {
				seen[s.DocumentName] = true
				names = append(names, s.DocumentName)
			}
		}
		fmt.Fprintf(c.out, "Sources: %s\n", strings.Join(names, ", "))
	}
}
