package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"coach-agent/internal/usecase"
)

const chatHelp = "Type a message. Commands: /progress, /exercise <type>, /quit"

func newChatCmd(st *state) *cobra.Command {
	var sessionID, name string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the coach in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := st.build(ctx, st.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			r := &repl{svc: a.Service, sessionID: sessionID, name: name, out: cmd.OutOrStdout()}
			return r.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume (default: new session)")
	cmd.Flags().StringVar(&name, "name", "", "child's name")
	return cmd
}

type chatService interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	StartExercise(ctx context.Context, in usecase.ExerciseInput) (usecase.ChatOutput, error)
	Progress(ctx context.Context, sessionID string) (usecase.ProgressOutput, error)
}

type repl struct {
	svc       chatService
	sessionID string
	name      string
	out       io.Writer
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(r.out, "session %s\n%s\n", r.sessionID, chatHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := r.handle(ctx, line)
		if err != nil {
			var ucErr *usecase.Error
			if !errors.As(err, &ucErr) || ucErr.Code == usecase.ErrorInternal {
				return err
			}
			fmt.Fprintf(r.out, "error: %s (%s)\n", ucErr.Code, ucErr.Reason)
		}
		if quit {
			return nil
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
		return false, nil
	case "/progress":
		p, err := r.svc.Progress(ctx, r.sessionID)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "stars: %d  streak: %d  mode: %s\n", p.Stars, p.Streak, p.Mode)
		if len(p.Badges) > 0 {
			fmt.Fprintf(r.out, "badges: %s\n", strings.Join(p.Badges, ", "))
		}
		if len(p.Skills) > 0 {
			skills := make([]string, 0, len(p.Skills))
			for k, v := range p.Skills {
				skills = append(skills, fmt.Sprintf("%s=%d", k, v))
			}
			sort.Strings(skills)
			fmt.Fprintf(r.out, "skills: %s\n", strings.Join(skills, ", "))
		}
		return false, nil
	case "/exercise":
		out, err := r.svc.StartExercise(ctx, usecase.ExerciseInput{SessionID: r.sessionID, ExerciseType: arg})
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "coach: %s\n", out.Response)
		return false, nil
	}

	in := usecase.ChatInput{SessionID: r.sessionID, Message: line}
	if r.name != "" {
		in.Profile = &usecase.Profile{ChildName: r.name}
	}
	out, err := r.svc.Chat(ctx, in)
	if err != nil {
		return false, err
	}
	fmt.Fprintf(r.out, "coach: %s\n", out.Response)
	return false, nil
}
