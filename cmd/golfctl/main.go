// Command golfctl scores code locally, talks to a running codegolf service,
// reads the published competition site and drives simulated load.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/codegolf/internal/adapters/catalog"
	"github.com/okian/codegolf/internal/domain/model"
	"github.com/okian/codegolf/internal/domain/scoring"
	"github.com/okian/codegolf/internal/loadgen"
	"github.com/okian/codegolf/pkg/logger"
)

const (
	defaultURL     = "http://localhost:9080"
	defaultTimeout = 10 * time.Second

	sourceServer = "server"
	sourceRemote = "remote"
)

var (
	errNoCode    = errors.New("one of --bytes or --file is required")
	errEmptyCode = errors.New("code is empty")
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "golfctl",
		Usage:  "code golf scoring client",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", EnvVars: []string{"CODEGOLF_LOG_LEVEL"}},
		},
		Before: func(c *cli.Context) error {
			return logger.SetLevelString(c.String("log-level"))
		},
		Commands: []*cli.Command{
			newScoreCommand(),
			newSubmitCommand(),
			newChallengesCommand(),
			newRankingCommand(),
			newLadderCommand(),
			newSimulateCommand(),
		},
	}
}

func urlFlag() cli.Flag {
	return &cli.StringFlag{Name: "url", Value: defaultURL, EnvVars: []string{"CODEGOLF_URL"}, Usage: "service base URL"}
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{Name: "timeout", Value: defaultTimeout}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		urlFlag(),
		timeoutFlag(),
		&cli.StringFlag{Name: "source", Value: sourceServer, Usage: "server or remote"},
		&cli.StringFlag{Name: "catalog-url", EnvVars: []string{"CODEGOLF_CATALOG_BASE_URL"}, Usage: "competition site base URL"},
	}
}

func newScoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "compute the score a submission would earn",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "difficulty", Required: true},
			&cli.IntFlag{Name: "min", Required: true, Usage: "current minimum byte length"},
			&cli.IntFlag{Name: "bytes"},
			&cli.StringFlag{Name: "file", Usage: "read code from file, - for stdin"},
		},
		Action: func(c *cli.Context) error {
			n := c.Int("bytes")
			if path := c.String("file"); path != "" {
				code, err := readCode(path)
				if err != nil {
					return err
				}
				if code == "" {
					return fmt.Errorf("%w: %s", errEmptyCode, path)
				}
				if n, err = scoring.ByteLength(code); err != nil {
					return err
				}
			}
			if n == 0 {
				return errNoCode
			}
			score, err := scoring.ComputeScore(c.Int("difficulty"), c.Int("min"), n)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, map[string]int{"byte_count": n, "min_bytes": c.Int("min"), "score": score})
		},
	}
}

func newSubmitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "submit code to a challenge",
		Flags: []cli.Flag{
			urlFlag(),
			timeoutFlag(),
			&cli.IntFlag{Name: "challenge", Required: true},
			&cli.StringFlag{Name: "handle", Required: true},
			&cli.StringFlag{Name: "file", Required: true, Usage: "read code from file, - for stdin"},
			&cli.StringFlag{Name: "id", Usage: "submission id for safe retries"},
		},
		Action: func(c *cli.Context) error {
			code, err := readCode(c.String("file"))
			if err != nil {
				return err
			}
			client := loadgen.NewClient(c.String("url"), c.Duration("timeout"))
			res, err := client.Submit(c.Context, c.Int("challenge"), loadgen.SubmitRequest{
				SubmissionID: c.String("id"),
				Handle:       c.String("handle"),
				Code:         code,
			})
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, res)
		},
	}
}

func newChallengesCommand() *cli.Command {
	return &cli.Command{
		Name:  "challenges",
		Usage: "list challenges",
		Flags: sourceFlags(),
		Action: func(c *cli.Context) error {
			var out []model.Challenge
			err := withSource(c,
				func(s *loadgen.Client) (err error) { out, err = s.Challenges(c.Context); return err },
				func(r *catalog.Client) (err error) { out, err = r.FetchChallenges(c.Context); return err },
			)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, out)
		},
	}
}

func newRankingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ranking",
		Usage: "show a challenge ranking",
		Flags: append(sourceFlags(),
			&cli.IntFlag{Name: "challenge", Required: true},
			&cli.IntFlag{Name: "limit"},
		),
		Action: func(c *cli.Context) error {
			id, limit := c.Int("challenge"), c.Int("limit")
			var out []model.RankingEntry
			err := withSource(c,
				func(s *loadgen.Client) (err error) { out, err = s.Ranking(c.Context, id, limit); return err },
				func(r *catalog.Client) (err error) { out, err = r.FetchRanking(c.Context, id); return err },
			)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, truncate(out, limit))
		},
	}
}

func newLadderCommand() *cli.Command {
	return &cli.Command{
		Name:  "ladder",
		Usage: "show the ladder",
		Flags: append(sourceFlags(),
			&cli.IntFlag{Name: "limit"},
			&cli.StringFlag{Name: "handle", Usage: "show one submitter (server only)"},
		),
		Action: func(c *cli.Context) error {
			if h := c.String("handle"); h != "" {
				entry, err := loadgen.NewClient(c.String("url"), c.Duration("timeout")).LadderEntry(c.Context, h)
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, entry)
			}
			limit := c.Int("limit")
			var out []model.LadderEntry
			err := withSource(c,
				func(s *loadgen.Client) (err error) { out, err = s.Ladder(c.Context, limit); return err },
				func(r *catalog.Client) (err error) { out, err = r.FetchLadder(c.Context); return err },
			)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, truncate(out, limit))
		},
	}
}

func newSimulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "post generated submissions and verify rankings and ladder",
		Flags: []cli.Flag{
			urlFlag(),
			timeoutFlag(),
			&cli.IntFlag{Name: "submitters", Value: loadgen.DefaultSubmitters},
			&cli.IntFlag{Name: "submissions", Value: loadgen.DefaultSubmissions},
			&cli.IntFlag{Name: "replays", Usage: "extra submissions reusing an earlier id"},
			&cli.IntFlag{Name: "workers", Value: loadgen.DefaultWorkers},
			&cli.IntFlag{Name: "limit", Value: loadgen.DefaultLimit},
			&cli.Int64Flag{Name: "seed", Usage: "0 picks a time based seed"},
		},
		Action: func(c *cli.Context) error {
			stats, err := loadgen.Run(c.Context, loadgen.Config{
				BaseURL:     c.String("url"),
				Submitters:  c.Int("submitters"),
				Submissions: c.Int("submissions"),
				Replays:     c.Int("replays"),
				Workers:     c.Int("workers"),
				Timeout:     c.Duration("timeout"),
				Limit:       c.Int("limit"),
				Seed:        c.Int64("seed"),
			})
			if stats != nil {
				if perr := printJSON(c.App.Writer, stats); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}
}

// withSource runs server against the service or remote against the
// competition site, depending on --source.
func withSource(c *cli.Context, server func(*loadgen.Client) error, remote func(*catalog.Client) error) error {
	switch c.String("source") {
	case sourceServer:
		return server(loadgen.NewClient(c.String("url"), c.Duration("timeout")))
	case sourceRemote:
		rc, err := catalog.New(c.String("catalog-url"), catalog.WithTimeout(c.Duration("timeout")))
		if err != nil {
			return err
		}
		return remote(rc)
	default:
		return fmt.Errorf("unknown source %q", c.String("source"))
	}
}

func truncate[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

func readCode(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read code: %w", err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
