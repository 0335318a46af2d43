package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
	"github.com/webtor-io/movie-top/models"
	"github.com/webtor-io/movie-top/services/movie"
)

const (
	rankPrintFlag = "print"
)

func makeRankCMD() cli.Command {
	rankCMD := cli.Command{
		Name:    "rank",
		Aliases: []string{"r"},
		Usage:   "Recalculates movie rankings",
		Action:  rank,
	}
	configureRank(&rankCMD)
	return rankCMD
}

func configureRank(c *cli.Command) {
	c.Flags = cs.RegisterPGFlags(c.Flags)
	c.Flags = append(c.Flags, cli.BoolFlag{
		Name:  rankPrintFlag,
		Usage: "print rankings after update",
	})
}

func rank(c *cli.Context) error {
	ctx := context.Background()

	// Setting DB
	pg := cs.NewPG(c)
	defer pg.Close()

	// Setting Movies
	movies := movie.New(movie.NewPGStore(pg), "")

	ms, err := movies.Recalculate(ctx)
	if err != nil {
		return err
	}
	log.WithField("count", len(ms)).Info("movie rankings updated")

	if c.Bool(rankPrintFlag) {
		return writeRanking(os.Stdout, ms)
	}
	return nil
}

func writeRanking(out io.Writer, ms []*models.Movie) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tID\tTITLE\tYEAR\tRATING")
	for _, m := range ms {
		year := "-"
		if m.Year != nil {
			year = strconv.Itoa(m.GetIntYear())
		}
		rating := "-"
		if m.IsRated() {
			rating = strconv.FormatFloat(m.GetRating(), 'f', -1, 64)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", m.Ranking, m.MovieID, m.Title, year, rating)
	}
	return tw.Flush()
}
