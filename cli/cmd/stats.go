package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teller/cli/render"
	"github.com/justapithecus/teller/log"
)

// StatsResponse summarizes the locally cached chats.
type StatsResponse struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByStrategy map[string]int `json:"by_strategy"`
}

// StatsCommand returns the stats command. It reads the local cache only, so
// it works offline and never touches the backend.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize locally cached chats",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Directory of the local record cache",
			},
		),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	s, err := resolveSettings(c)
	if err != nil {
		return err
	}

	store, err := s.openCache(log.Nop())
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("stats requires a cache dir (--cache-dir or cache.dir in teller.yaml)")
	}

	recs, err := store.List()
	if err != nil {
		return err
	}

	resp := StatsResponse{
		ByStatus:   make(map[string]int),
		ByStrategy: make(map[string]int),
	}
	for _, rec := range recs {
		resp.Total++
		resp.ByStatus[string(rec.Status)]++
		if rec.Strategy != "" {
			resp.ByStrategy[string(rec.Strategy)]++
		}
	}

	return r.Render(resp)
}
