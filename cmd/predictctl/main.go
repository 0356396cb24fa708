// Command predictctl runs league maintenance against the server's database:
// leaderboard repairs, fixture imports and results, spreadsheet exports and
// admin grants.
//
//	predictctl --config config.yaml recalculate --group <id>
//	predictctl import-fixtures --file fixtures.json
//	predictctl export-leaderboard --group <id> --out standings.xlsx
//	predictctl complete-fixture --id 101 --home 2 --away 1
//	predictctl grant-admin --username alice
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sakif/prediction-league/internal/service"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "predictctl",
		Usage: "prediction league maintenance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Commands: []*cli.Command{
			recalculateCommand(),
			importFixturesCommand(),
			exportLeaderboardCommand(),
			resultCommand("complete-fixture", "record the final score and score all predictions",
				func(a *app) resultFunc { return a.fixtures.CompleteFixture }),
			resultCommand("correct-fixture", "correct a completed fixture's score and rescore",
				func(a *app) resultFunc { return a.fixtures.CorrectFixtureScores }),
			grantAdminCommand(),
		},
	}
}

func recalculateCommand() *cli.Command {
	return &cli.Command{
		Name:  "recalculate",
		Usage: "rebuild leaderboard totals and ranks",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "group", Usage: "group ID (repeatable); all groups when omitted"},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			var stats *service.RecalcStats
			if groups := c.StringSlice("group"); len(groups) > 0 {
				stats, err = a.board.Recalculate(c.Context, groups...)
			} else {
				stats, err = a.board.RecalculateAll(c.Context)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "groups: %d, users: %d, points: %d\n",
				stats.GroupsUpdated, stats.UsersUpdated, stats.TotalPointsAwarded)
			return nil
		},
	}
}

func importFixturesCommand() *cli.Command {
	return &cli.Command{
		Name:  "import-fixtures",
		Usage: "upsert fixtures from a .json or .xlsx schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Required: true},
		},
		Action: func(c *cli.Context) error {
			fixtures, err := loadFixtures(c.String("file"))
			if err != nil {
				return err
			}

			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.fixtures.ImportFixtures(c.Context, fixtures)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "imported %d fixtures\n", n)
			return nil
		},
	}
}

func exportLeaderboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "export-leaderboard",
		Usage: "write a group's standings to an .xlsx file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Required: true},
			&cli.StringFlag{Name: "out", Value: "leaderboard.xlsx"},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			groupID := c.String("group")
			group, err := a.groups.GetGroup(c.Context, groupID)
			if err != nil {
				return err
			}
			rows, err := a.board.GetLeaderboard(c.Context, groupID, "")
			if err != nil {
				return err
			}

			out, err := os.Create(c.String("out"))
			if err != nil {
				return err
			}
			if err := writeLeaderboard(out, group, rows); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "wrote %d rows to %s\n", len(rows), c.String("out"))
			return nil
		},
	}
}

func resultCommand(name, usage string, pick func(a *app) resultFunc) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "id", Required: true},
			&cli.IntFlag{Name: "home", Required: true},
			&cli.IntFlag{Name: "away", Required: true},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := pick(a)(c.Context, c.Int64("id"), c.Int("home"), c.Int("away"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "fixture %d: %d predictions scored, %d locked, %d groups updated\n",
				res.Fixture.ID, res.PredictionsScored, res.PredictionsLocked, res.GroupsUpdated)
			return nil
		},
	}
}

func grantAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "grant-admin",
		Usage: "give a user admin rights",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.BoolFlag{Name: "revoke", Usage: "remove admin rights instead"},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.auth.GrantAdmin(c.Context, c.String("username"), !c.Bool("revoke"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s admin=%t\n", user.Username, user.IsAdmin)
			return nil
		},
	}
}
