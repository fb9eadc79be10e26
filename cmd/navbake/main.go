// Command navbake bakes triangle meshes into navigation mesh files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"navbake"
	"navbake/internal/config"
	"navbake/mesh"
)

func main() {
	root := &cobra.Command{
		Use:          "navbake",
		Short:        "navigation mesh baking tool",
		SilenceUsage: true,
	}
	root.AddCommand(buildCmd(), infoCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildCmd() *cobra.Command {
	var (
		configFile string
		outFile    string
		partition  string
	)
	c := &cobra.Command{
		Use:   "build [flags] mesh.obj",
		Short: "bake an OBJ mesh into a navmesh file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if partition != "" {
				p, err := navbake.ParsePartitionMethod(partition)
				if err != nil {
					return err
				}
				cfg.Build.Partition = p
			}
			log := cfg.NewLogger(true)
			defer log.Sync()

			tri, err := mesh.LoadOBJ(args[0])
			if err != nil {
				return err
			}
			comp, err := navbake.Build(tri, cfg.Build, log)
			if err != nil {
				return err
			}
			if comp.State() != navbake.StateReady {
				return fmt.Errorf("no navmesh generated (state %v)", comp.State())
			}
			if err := navbake.SaveNavMeshFile(outFile, comp.NavMesh()); err != nil {
				return err
			}
			log.Info("navmesh written",
				zap.String("path", outFile),
				zap.Int("polys", comp.PolyCount()))
			return nil
		},
	}
	c.Flags().StringVarP(&configFile, "config", "c", "", "bake config file (YAML)")
	c.Flags().StringVarP(&outFile, "out", "o", "out.nav", "output navmesh file")
	c.Flags().StringVarP(&partition, "partition", "p", "", "partition method: watershed, monotone or layer")
	return c
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info navmesh.nav",
		Short: "print summary information about a baked navmesh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := navbake.LoadNavMeshFile(args[0])
			if err != nil {
				return err
			}
			params := m.Params()
			fmt.Printf("origin:     (%g, %g, %g)\n", params.Orig[0], params.Orig[1], params.Orig[2])
			fmt.Printf("tile size:  %g x %g\n", params.TileWidth, params.TileHeight)
			fmt.Printf("max tiles:  %d\n", params.MaxTiles)
			fmt.Printf("polygons:   %d\n", m.PolyCount())
			return nil
		},
	}
}
