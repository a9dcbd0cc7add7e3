package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"docquery-service/internal/catalog"
)

// EntitiesCommand creates the entities command
func EntitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "entities",
		Usage: "List the configured entities and their fields",
		Action: func(ctx context.Context, c *cli.Command) error {
			cat, err := catalog.Load(c.String("descriptors"))
			if err != nil {
				return err
			}

			out := c.Root().Writer
			for _, d := range cat.Entities() {
				fmt.Fprintln(out, titleStyle.Render(d.Entity))
				fmt.Fprint(out, row("collection", d.Collection))
				fmt.Fprint(out, row("search", list(d.SearchFieldNames())))
				fmt.Fprint(out, row("filters", list(d.FilterFieldNames())))
				fmt.Fprint(out, row("sorts", list(d.SortFieldNames())))
				if d.GeoSearchable() {
					fmt.Fprint(out, row("location", d.LocationField))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func list(names []string) string {
	if len(names) == 0 {
		return mutedStyle.Render("none")
	}
	return strings.Join(names, ", ")
}
