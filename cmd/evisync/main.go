package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/LdDl/evisync"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "evisync",
		Short: "Headless client which mirrors vehicles of an external traffic simulation",
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(hashCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		configPath  string
		logLevel    string
		scheme      string
		address     string
		port        int
		netFile     string
		egoName     string
		vehicleType string
		steering    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to EVI and run the synchronisation loop until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := evisync.DefaultConfig()
			if configPath != "" {
				loaded, err := evisync.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("scheme") {
				cfg.EVI.Scheme = scheme
			}
			if flags.Changed("address") {
				cfg.EVI.Address = address
			}
			if flags.Changed("port") {
				cfg.EVI.Port = port
			}
			if flags.Changed("net") {
				cfg.Scenario.NetFile = netFile
			}
			if flags.Changed("ego-name") {
				cfg.Ego.Name = egoName
			}
			if flags.Changed("vehicle-type") {
				cfg.Ego.VehicleType = vehicleType
			}
			if flags.Changed("steering") {
				cfg.Steering.Listen = steering
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runSession(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	cmd.Flags().StringVar(&scheme, "scheme", "tcp", "EVI transport scheme: tcp, ipc, ws, wss")
	cmd.Flags().StringVarP(&address, "address", "a", "localhost", "EVI address")
	cmd.Flags().IntVarP(&port, "port", "p", 12346, "EVI port")
	cmd.Flags().StringVarP(&netFile, "net", "n", "", "Road network: SUMO *.net.xml or OSM *.osm / *.osm.pbf")
	cmd.Flags().StringVar(&egoName, "ego-name", "ego-vehicle", "Name of local vehicle, hashed into its identifier")
	cmd.Flags().StringVar(&vehicleType, "vehicle-type", "CAR", "Local vehicle type: CAR, TRUCK, BICYCLE, BICYCLE_INTERFACE, BICYCLE_WITH_MINIMAP")
	cmd.Flags().StringVar(&steering, "steering", "", "UDP address of steering feed, e.g. ':15006'")
	return cmd
}

func runSession(cfg *evisync.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "Bad log level")
	}
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := evisync.NewSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()
	return session.Run(ctx)
}

func exportCmd() *cobra.Command {
	var (
		out     string
		format  string
		offsetX float64
		offsetY float64
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "export [net-file]",
		Short: "Convert road network to GeoJSON or CSV (WKT geometry)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			graph, err := evisync.BuildRoadGraph(args[0], evisync.WithVerbose(verbose), evisync.WithOffset(offsetX, offsetY))
			if err != nil {
				return err
			}
			switch strings.ToLower(format) {
			case "geojson":
				b, err := evisync.ExportGeoJSON(graph, nil)
				if err != nil {
					return err
				}
				return errors.Wrap(os.WriteFile(out, b, 0644), "Can't write GeoJSON")
			case "csv":
				return graph.ExportToCSV(out)
			default:
				return errors.Errorf("Unknown format '%s'. Expected values: geojson / csv", format)
			}
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "network.geojson", "Output file. For CSV two files are produced: '<name>_lanes.csv' and '<name>_junctions.csv'")
	cmd.Flags().StringVarP(&format, "format", "f", "geojson", "Output format. Expected values: geojson / csv")
	cmd.Flags().Float64Var(&offsetX, "offset-x", 0, "Scene offset X")
	cmd.Flags().Float64Var(&offsetY, "offset-y", 0, "Scene offset Y")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", true, "Print progress")
	return cmd
}

func routeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route [net-file] [from-junction] [to-junction]",
		Short: "Find the cheapest sequence of edges between two junctions",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			graph, err := evisync.BuildRoadGraph(args[0])
			if err != nil {
				return err
			}
			edges, cost, err := graph.Route(args[1], args[2])
			if err != nil {
				return err
			}
			ids := make([]string, len(edges))
			for i, edge := range edges {
				ids[i] = edge.ID
			}
			fmt.Printf("cost: %.3f m\n", cost)
			fmt.Printf("edges: %s\n", strings.Join(ids, " "))
			return nil
		},
	}
}

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [name...]",
		Short: "Print vehicle identifiers derived from names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			for _, name := range args {
				fmt.Printf("%s\t%d\n", name, evisync.VehicleID(name))
			}
			return nil
		},
	}
}
