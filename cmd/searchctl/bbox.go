package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"docquery-service/internal/geo"
)

// BBoxCommand creates the bbox command
func BBoxCommand() *cli.Command {
	return &cli.Command{
		Name:  "bbox",
		Usage: "Print the bounding box around a point",
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "lat", Usage: "Center latitude", Required: true},
			&cli.FloatFlag{Name: "lon", Usage: "Center longitude", Required: true},
			&cli.FloatFlag{Name: "radius", Usage: "Radius in kilometers", Value: 15},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			center := geo.Point{Lat: c.Float("lat"), Lon: c.Float("lon")}
			box, err := geo.BoundingBox(center, c.Float("radius"))
			if err != nil {
				return err
			}

			out := c.Root().Writer
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%g km around %g,%g", c.Float("radius"), center.Lat, center.Lon)))
			fmt.Fprint(out, row("lat1", fmt.Sprintf("%g", box.MinLat)))
			fmt.Fprint(out, row("lon1", fmt.Sprintf("%g", box.MinLon)))
			fmt.Fprint(out, row("lat2", fmt.Sprintf("%g", box.MaxLat)))
			fmt.Fprint(out, row("lon2", fmt.Sprintf("%g", box.MaxLon)))
			fmt.Fprint(out, row("rectangle", fmt.Sprint(box.Rectangle())))
			if box.Wrapped() {
				fmt.Fprintln(out, mutedStyle.Render("crosses the antimeridian"))
			}
			return nil
		},
	}
}
