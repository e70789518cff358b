package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teller/cli/render"
	"github.com/justapithecus/teller/log"
	"github.com/justapithecus/teller/poll"
	"github.com/justapithecus/teller/types"
)

// defaultAskTimeout bounds how long ask waits for the job to settle.
const defaultAskTimeout = 5 * time.Minute

// AskCommand returns the one-shot ask command: send a prompt, wait for the
// job to settle, print the reply.
func AskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask one question and wait for the reply",
		ArgsUsage: "<prompt>",
		Flags: append(chatFlags(),
			&cli.StringFlag{
				Name:  "chat",
				Usage: "Follow up on an existing chat instead of creating one",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the reply",
				Value: defaultAskTimeout,
			},
		),
		Action: askAction,
	}
}

func askAction(c *cli.Context) error {
	prompt := c.Args().First()
	if prompt == "" {
		return cli.Exit("usage: teller ask <prompt>", 1)
	}

	s, err := resolveSettings(c)
	if err != nil {
		return err
	}

	logger := log.Nop()
	cl, err := s.newClient(logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rec *types.ChatRecord
	if id := c.String("chat"); id != "" {
		rec, err = cl.Followup(ctx, id, types.FollowupRequest{Prompt: prompt})
	} else {
		req := s.defaults
		req.UserPrompt = prompt
		rec, err = cl.CreateChat(ctx, req)
	}
	if err != nil {
		return err
	}

	settled, err := waitForSettled(ctx, cl, rec.ID, s.pollInterval, c.Duration("timeout"))
	if err != nil {
		return err
	}

	if settled.Status != types.StatusCompleted {
		msg := string(settled.Status)
		if settled.ErrorMessage != nil && *settled.ErrorMessage != "" {
			msg = *settled.ErrorMessage
		}
		return cli.Exit(fmt.Sprintf("chat %s: %s", settled.ID, msg), 1)
	}

	reply := lastAgentMessage(settled)
	if reply == "" {
		return cli.Exit(fmt.Sprintf("chat %s completed without a reply", settled.ID), 1)
	}
	fmt.Fprintln(c.App.Writer, render.Chunk(types.Chunk{Type: types.ChunkTypeText, Content: reply}))
	fmt.Fprintf(os.Stderr, "chat id: %s\n", settled.ID)
	return nil
}

// waitForSettled polls the chat until it reaches a terminal status.
func waitForSettled(ctx context.Context, fetcher poll.Fetcher, id string, interval, timeout time.Duration) (*types.ChatRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan *types.ChatRecord, 1)
	p := poll.New(fetcher, poll.Config{
		Interval: interval,
		OnUpdate: func(rec *types.ChatRecord) {
			if rec.Status.IsTerminal() {
				select {
				case done <- rec:
				default:
				}
			}
		},
	})
	defer p.Close()
	p.SetTarget(id)

	select {
	case rec := <-done:
		return rec, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for chat %s: %w", id, ctx.Err())
	}
}

func lastAgentMessage(rec *types.ChatRecord) string {
	for i := len(rec.Messages) - 1; i >= 0; i-- {
		if rec.Messages[i].Type == "agent" {
			return rec.Messages[i].Message
		}
	}
	return ""
}
