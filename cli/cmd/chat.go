package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teller/cli/tui"
	"github.com/justapithecus/teller/conversation"
	"github.com/justapithecus/teller/iox"
	"github.com/justapithecus/teller/log"
	"github.com/justapithecus/teller/metrics"
	"github.com/justapithecus/teller/session"
)

// ChatCommand returns the interactive chat command.
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the portfolio advisor interactively",
		Flags: append(chatFlags(),
			&cli.StringFlag{
				Name:  "chat",
				Usage: "Resume an existing chat by id",
			},
			&cli.BoolFlag{
				Name:  "push",
				Usage: "Stream replies instead of polling for them",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write structured logs to this file (stderr would corrupt the view)",
			},
		),
		Action: chatAction,
	}
}

func chatAction(c *cli.Context) error {
	s, err := resolveSettings(c)
	if err != nil {
		return err
	}

	// The alt-screen view owns the terminal; logs go to a file or nowhere.
	logger := log.Nop()
	if path := c.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer iox.DiscardClose(f)
		logger = log.NewLogger().WithOutput(f)
	}

	cl, err := s.newClient(logger)
	if err != nil {
		return err
	}
	store, err := s.openCache(logger)
	if err != nil {
		return err
	}

	convo := conversation.NewStore()
	collector := metrics.NewCollector(c.String("chat"))
	sess, err := session.New(session.Config{
		Client:        cl,
		Store:         convo,
		Cache:         store,
		NotifyURL:     s.notifyURL,
		NotifyChannel: s.notifyChannel,
		PollInterval:  s.pollInterval,
		Logger:        logger,
		Collector:     collector,
	})
	if err != nil {
		return err
	}
	defer sess.Close()
	defer func() {
		snap := collector.Snapshot()
		logger.Info("session metrics", map[string]any{
			"chat_id":        snap.ChatID,
			"chunks_decoded": snap.ChunksDecoded,
			"decode_errors":  snap.DecodeErrors,
			"fetches_issued": snap.FetchesIssued,
			"fetch_failures": snap.FetchFailures,
			"ticks_dropped":  snap.TicksDropped,
		})
	}()

	ctx := context.Background()
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("notification listener: %w", err)
	}
	if id := c.String("chat"); id != "" {
		if err := sess.Attach(ctx, id); err != nil {
			return err
		}
	}

	return tui.Run(sess, convo, tui.Options{
		Defaults: s.defaults,
		Push:     c.Bool("push"),
	})
}
