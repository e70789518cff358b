package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teller/cli/render"
	"github.com/justapithecus/teller/log"
	"github.com/justapithecus/teller/types"
)

// ShowCommand returns the show command: one chat record with its transcript.
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a chat record and its transcript",
		ArgsUsage: "<chat-id>",
		Flags: append(ReadOnlyFlags(),
			&cli.BoolFlag{
				Name:  "cached",
				Usage: "Read from the local cache instead of the backend",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Directory of the local record cache",
			},
			&cli.BoolFlag{
				Name:  "transcript",
				Usage: "Print the conversation transcript instead of the record",
			},
		),
		Action: showAction,
	}
}

func showAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("usage: teller show <chat-id>", 1)
	}

	s, err := resolveSettings(c)
	if err != nil {
		return err
	}

	var rec *types.ChatRecord
	if c.Bool("cached") {
		store, serr := s.openCache(log.Nop())
		if serr != nil {
			return serr
		}
		if store == nil {
			return fmt.Errorf("--cached requires a cache dir (--cache-dir or cache.dir in teller.yaml)")
		}
		rec, err = store.Get(id)
	} else {
		cl, cerr := s.newClient(log.Nop())
		if cerr != nil {
			return cerr
		}
		rec, err = cl.FetchChat(c.Context, id)
	}
	if err != nil {
		return err
	}

	if c.Bool("transcript") {
		printTranscript(c, rec)
		return nil
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(rec)
}

func printTranscript(c *cli.Context, rec *types.ChatRecord) {
	for i, m := range rec.Messages {
		if i > 0 {
			fmt.Fprintln(c.App.Writer)
		}
		label := "you"
		if m.Type == "agent" {
			label = "advisor"
		}
		fmt.Fprintf(c.App.Writer, "%s:\n%s\n", label,
			render.Chunk(types.Chunk{Type: types.ChunkTypeText, Content: m.Message}))
	}
}

// PortfolioCommand returns the portfolio command.
func PortfolioCommand() *cli.Command {
	return &cli.Command{
		Name:      "portfolio",
		Usage:     "Show the portfolio constructed for a chat",
		ArgsUsage: "<chat-id>",
		Flags:     ReadOnlyFlags(),
		Action:    portfolioAction,
	}
}

func portfolioAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("usage: teller portfolio <chat-id>", 1)
	}

	s, err := resolveSettings(c)
	if err != nil {
		return err
	}
	cl, err := s.newClient(log.Nop())
	if err != nil {
		return err
	}

	positions, err := cl.Portfolio(c.Context, id)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(positions)
}
