// Command searchctl inspects entity descriptors and query plans without a
// running service or store.
package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "searchctl",
		Usage: "Inspect entity searches offline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "descriptors",
				Usage: "Directory with extra or overriding entity descriptors",
			},
		},
		Commands: []*cli.Command{
			BBoxCommand(),
			ExplainCommand(),
			EntitiesCommand(),
		},
	}
}
