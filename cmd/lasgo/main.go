package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/alitto/pond"
	"github.com/urfave/cli/v2"

	"github.com/lasgo-project/lasgo"
	"github.com/lasgo-project/lasgo/encode"
	"github.com/lasgo-project/lasgo/pointcloud"
)

// openLas opens uri for reading, eagerly materializing the point view, and
// reports non-fatal warnings gathered along the way.
func openLas(uri, configURI string, inMemory bool) (*lasgo.LasFile, func() error, error) {
	stream, err := lasgo.OpenTileDBStream(uri, configURI, inMemory)
	if err != nil {
		return nil, nil, err
	}
	lf, err := lasgo.ReadLasFile(stream, lasgo.ReadOptions{ReadPoints: lasgo.ReadEager, Path: uri})
	if err != nil {
		stream.Close()
		return nil, nil, err
	}
	if !lf.Warnings.Empty() {
		log.Println("warnings while reading", uri, ":", lf.Warnings.Error())
	}
	return lf, stream.Close, nil
}

// infoLas decodes uri's header and VLR list and writes a JSON metadata
// summary alongside it.
func infoLas(uri, configURI, outdirURI string) error {
	dir, file := filepath.Split(uri)
	if outdirURI == "" {
		outdirURI = dir
	}

	log.Println("Processing LAS:", uri)
	lf, closeFn, err := openLas(uri, configURI, false)
	if err != nil {
		return err
	}
	defer closeFn()

	outURI := filepath.Join(outdirURI, file+"-metadata.json")
	log.Println("Writing metadata:", outURI)
	if _, err := encode.WriteHeaderSummary(lf, outURI, configURI); err != nil {
		return err
	}

	log.Println("Finished LAS:", uri)
	return nil
}

// infoLasList submits every named LAS file (path discovery is left to
// the caller's shell glob) to a fixed worker pool.
func infoLasList(items []string, configURI, outdirURI string) error {
	log.Println("Number of LAS files to process:", len(items))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	n := runtime.NumCPU() * 2
	pool := pond.New(n, 0, pond.MinWorkers(n), pond.Context(ctx))
	defer pool.StopAndWait()

	errs := make([]error, len(items))
	for i, name := range items {
		i, name := i, name
		pool.Submit(func() {
			errs[i] = infoLas(name, configURI, outdirURI)
		})
	}
	pool.StopAndWait()

	for i, err := range errs {
		if err != nil {
			log.Println("error processing", items[i], ":", err)
		}
	}
	return nil
}

// rasterizeLas builds a PointCloud from uri's x/y/z/intensity attributes
// and rasterizes it to a regular grid, reporting per-cell point counts.
func rasterizeLas(uri, configURI string, nx, ny int, radius float64, k int) error {
	lf, closeFn, err := openLas(uri, configURI, false)
	if err != nil {
		return err
	}
	defer closeFn()

	pc, err := pointcloud.FromLAS(lf, pointcloud.ConstructOptions{
		Attributes: []pointcloud.Extractor{
			{Name: "intensity", Extract: func(pr lasgo.PointRecord) lasgo.Scalar {
				return lasgo.UintScalar(uint64(pr.IntensityRaw))
			}},
		},
	})
	if err != nil {
		return err
	}

	opts := pointcloud.RasterOptions{NX: nx, NY: ny}
	switch {
	case k > 0:
		opts.Mode, opts.K = pointcloud.RasterKNN, k
	case radius > 0:
		opts.Mode, opts.R = pointcloud.Radius, radius
	default:
		opts.Mode = pointcloud.Footprint
	}

	raster, err := pointcloud.Rasterize(pc, opts)
	if err != nil {
		return err
	}

	for j := 0; j < raster.NY(); j++ {
		for i := 0; i < raster.NX(); i++ {
			fmt.Printf("%d ", len(raster.Cell(i, j)))
		}
		fmt.Println()
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "lasgo",
		Usage: "inspect and rasterize LAS/LAZ lidar point clouds",
		Commands: []*cli.Command{
			{
				Name:  "info",
				Usage: "decode a LAS file's header/VLRs and write a JSON metadata summary",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "las-uri", Usage: "URI or pathname to a LAS/LAZ file.", Required: true},
					&cli.StringFlag{Name: "config-uri", Usage: "URI or pathname to a TileDB config file."},
					&cli.StringFlag{Name: "outdir-uri", Usage: "URI or pathname to an output directory."},
				},
				Action: func(cCtx *cli.Context) error {
					return infoLas(cCtx.String("las-uri"), cCtx.String("config-uri"), cCtx.String("outdir-uri"))
				},
			},
			{
				Name:  "info-batch",
				Usage: "run info over a list of LAS files concurrently",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "las-uri", Usage: "URI or pathname to a LAS/LAZ file; may be repeated.", Required: true},
					&cli.StringFlag{Name: "config-uri", Usage: "URI or pathname to a TileDB config file."},
					&cli.StringFlag{Name: "outdir-uri", Usage: "URI or pathname to an output directory."},
				},
				Action: func(cCtx *cli.Context) error {
					return infoLasList(cCtx.StringSlice("las-uri"), cCtx.String("config-uri"), cCtx.String("outdir-uri"))
				},
			},
			{
				Name:  "rasterize",
				Usage: "rasterize a LAS file's points onto a regular grid and print per-cell counts",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "las-uri", Usage: "URI or pathname to a LAS/LAZ file.", Required: true},
					&cli.StringFlag{Name: "config-uri", Usage: "URI or pathname to a TileDB config file."},
					&cli.IntFlag{Name: "nx", Usage: "number of columns.", Value: 10},
					&cli.IntFlag{Name: "ny", Usage: "number of rows.", Value: 10},
					&cli.Float64Flag{Name: "radius", Usage: "radius-mode cell search distance; 0 disables radius mode."},
					&cli.IntFlag{Name: "k", Usage: "k-NN mode neighbor count; 0 disables k-NN mode."},
				},
				Action: func(cCtx *cli.Context) error {
					return rasterizeLas(cCtx.String("las-uri"), cCtx.String("config-uri"), cCtx.Int("nx"), cCtx.Int("ny"), cCtx.Float64("radius"), cCtx.Int("k"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
