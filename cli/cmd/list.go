package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teller/cli/render"
	"github.com/justapithecus/teller/log"
	"github.com/justapithecus/teller/types"
)

// chatRow is the thin slice of a record shown by list.
type chatRow struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Strategy string `json:"strategy"`
	Messages int    `json:"messages"`
	Updated  string `json:"updated"`
}

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List chats",
		Flags: append(ReadOnlyFlags(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of chats to return",
				Value: 20,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of chats to skip",
			},
			&cli.BoolFlag{
				Name:  "cached",
				Usage: "List from the local cache instead of the backend",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Directory of the local record cache",
			},
		),
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	s, err := resolveSettings(c)
	if err != nil {
		return err
	}

	var recs []types.ChatRecord
	if c.Bool("cached") {
		recs, err = listCached(s)
	} else {
		logger := log.Nop()
		cl, cerr := s.newClient(logger)
		if cerr != nil {
			return cerr
		}
		recs, err = cl.ListChats(c.Context, c.Int("limit"), c.Int("offset"))
	}
	if err != nil {
		return err
	}

	rows := make([]chatRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, chatRow{
			ID:       rec.ID,
			Status:   string(rec.Status),
			Strategy: string(rec.Strategy),
			Messages: len(rec.Messages),
			Updated:  rec.UpdatedAt.Format(time.RFC3339),
		})
	}
	return r.Render(rows)
}

func listCached(s *settings) ([]types.ChatRecord, error) {
	store, err := s.openCache(log.Nop())
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("--cached requires a cache dir (--cache-dir or cache.dir in teller.yaml)")
	}
	return store.List()
}
