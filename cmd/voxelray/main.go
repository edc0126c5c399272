// The voxelray command builds compressed point-cloud caches from voxelized
// lattice point files and renders them to PNG frames with the CPU
// rasterizer.
package main

import (
	"os"

	"github.com/edaniels/golog"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/voxelray/voxelray"
	"github.com/voxelray/voxelray/octree"
	"github.com/voxelray/voxelray/palette"
	"github.com/voxelray/voxelray/render"
)

var logger = golog.NewLogger("voxelray")

var app = &cli.App{
	Name:            "voxelray",
	Usage:           "build and render compressed octree point clouds",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "load build configuration from `FILE`",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "build",
			Usage:     "build (or refresh) the compressed cache for a points file",
			ArgsUsage: "<points-file>",
			Action:    BuildAction,
		},
		{
			Name:      "render",
			Usage:     "render a points file to a PNG, building the cache if needed",
			ArgsUsage: "<points-file>",
			Action:    RenderAction,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "out",
					Aliases: []string{"o"},
					Value:   "frame.png",
					Usage:   "output PNG path",
				},
				&cli.IntFlag{Name: "width", Value: 512, Usage: "frame width (power of two)"},
				&cli.IntFlag{Name: "height", Value: 512, Usage: "frame height (power of two)"},
				&cli.Float64Flag{Name: "yaw", Value: 0.6, Usage: "camera yaw in radians"},
				&cli.Float64Flag{Name: "pitch", Value: 0.4, Usage: "camera pitch in radians"},
				&cli.Float64Flag{Name: "scale", Value: 4, Usage: "pixels per voxel"},
				&cli.IntFlag{Name: "lod", Value: 0, Usage: "LOD bias (0 finest, negative coarser)"},
			},
		},
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func loadCloud(c *cli.Context) (*voxelray.Cloud, error) {
	if c.Args().Len() != 1 {
		return nil, errors.New("expected exactly one points file argument")
	}
	source := c.Args().First()

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	return voxelray.LoadOrBuild(source, cfg.cachePath(source), cfg.options(),
		func() ([]octree.PointRecord, *palette.Palette, error) { return readPoints(source, cfg.PaletteSize) },
		logger)
}

// BuildAction builds the cache for a points file.
func BuildAction(c *cli.Context) error {
	cloud, err := loadCloud(c)
	if err != nil {
		return err
	}
	logger.Infof("cache ready: %d nodes, %d levels", cloud.Tree.NodeCount(), cloud.Tree.Levels)
	return nil
}

// RenderAction renders a points file to a PNG frame.
func RenderAction(c *cli.Context) error {
	cloud, err := loadCloud(c)
	if err != nil {
		return err
	}

	width, height := c.Int("width"), c.Int("height")
	frame, err := render.NewFrame(width, height)
	if err != nil {
		return err
	}
	frame.Clear(render.PackColor(16, 16, 24, 255))

	cam := render.NewCamera(width, height, c.Float64("yaw"), c.Float64("pitch"), c.Float64("scale"))
	cloud.Render(frame, cam, c.Int("lod"))

	ctx := gg.NewContextForRGBA(frame.Image())
	if err := ctx.SavePNG(c.String("out")); err != nil {
		return errors.Wrap(err, "saving frame")
	}
	logger.Infof("wrote %s", c.String("out"))
	return nil
}
