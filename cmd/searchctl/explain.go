package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/urfave/cli/v3"

	"docquery-service/internal/catalog"
	"docquery-service/internal/domain"
	"docquery-service/internal/geo"
	"docquery-service/internal/planner"
)

// ExplainCommand creates the explain command
func ExplainCommand() *cli.Command {
	return &cli.Command{
		Name:      "explain",
		Usage:     "Print the store plan a query string resolves to",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "entity", Usage: "Entity to search", Required: true},
			&cli.StringFlag{Name: "query", Usage: "Query string, e.g. parcelStatus=booked&sort=created"},
			&cli.BoolFlag{Name: "map", Usage: "Treat the query as a map search"},
			&cli.FloatFlag{Name: "lat", Usage: "Near search center latitude"},
			&cli.FloatFlag{Name: "lon", Usage: "Near search center longitude"},
			&cli.FloatFlag{Name: "radius", Usage: "Near search radius in kilometers", Value: 15},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cat, err := catalog.Load(c.String("descriptors"))
			if err != nil {
				return err
			}
			desc, err := cat.Get(c.String("entity"))
			if err != nil {
				return err
			}

			query := c.String("query")
			if query == "" {
				query = c.Args().First()
			}
			values, err := url.ParseQuery(query)
			if err != nil {
				return fmt.Errorf("parsing query: %w", err)
			}
			params := domain.Params(values)

			mapSearch := c.Bool("map")
			if c.IsSet("lat") || c.IsSet("lon") {
				box, err := geo.BoundingBox(geo.Point{Lat: c.Float("lat"), Lon: c.Float("lon")}, c.Float("radius"))
				if err != nil {
					return err
				}
				params = planner.WithBounds(params, box)
				mapSearch = true
			}

			return explain(c, desc, params, mapSearch)
		},
	}
}

func explain(c *cli.Command, desc *domain.Descriptor, params domain.Params, mapSearch bool) error {
	out := c.Root().Writer

	v, plan, err := planner.Prepare(desc, params, mapSearch)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintln(out, errorStyle.Render("invalid query"))
			for _, msg := range ve.Messages {
				fmt.Fprintln(out, "  - "+msg)
			}
		}
		return err
	}

	fmt.Fprintln(out, titleStyle.Render(desc.Entity))
	fmt.Fprint(out, row("collection", plan.Collection))
	fmt.Fprint(out, row("filter", fmt.Sprint(plan.Filter)))
	for _, cond := range v.Conditions {
		fmt.Fprint(out, row("condition", formatCondition(cond)))
	}
	fmt.Fprint(out, row("sort", formatOrder(plan.Order)))
	fmt.Fprint(out, row("page", fmt.Sprintf("%d (per page %d, skip %d, limit %d)", v.Page, v.PageSize, plan.Skip, plan.Limit)))
	for _, p := range plan.Populate {
		populate := p.Path + " <- " + p.Collection
		if len(p.Match) > 0 {
			populate += " where " + fmt.Sprint(domain.And(p.Match))
		}
		fmt.Fprint(out, row("populate", populate))
	}
	return nil
}

func formatCondition(cond planner.Condition) string {
	s := fmt.Sprintf("%s (%s)", cond.Field, cond.Type.Kind())
	if cond.JoinPath != "" {
		s += mutedStyle.Render(" via " + cond.JoinPath)
	}
	return s
}

func formatOrder(terms []domain.OrderTerm) string {
	if len(terms) == 0 {
		return mutedStyle.Render("insertion order")
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = fmt.Sprintf("%s %d", t.Path, t.Direction)
	}
	return strings.Join(parts, ", ")
}
