package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fieldvault/internal/config"
	"fieldvault/internal/farm"
	"fieldvault/internal/geo"
	"fieldvault/internal/queue"
)

func newFarmCommand(ctx *commandContext) *cobra.Command {
	farmCmd := &cobra.Command{
		Use:   "farm",
		Short: "Manage registered farms",
	}

	farmCmd.AddCommand(newFarmAddCommand(ctx))
	farmCmd.AddCommand(newFarmListCommand(ctx))

	return farmCmd
}

func newFarmAddCommand(ctx *commandContext) *cobra.Command {
	var (
		name     string
		ref      string
		phone    string
		crop     string
		lat      float64
		lon      float64
		accuracy float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a farm with its boundary GPS point",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				registered, err := store.RegisterFarm(cmd.Context(), &farm.Farm{
					FarmerName:  name,
					FarmerRef:   ref,
					Phone:       phone,
					CropType:    crop,
					Location:    geo.Coordinate{Lat: lat, Lon: lon},
					GPSAccuracy: accuracy,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered farm %s for %s\n", registered.ID, registered.FarmerName)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Farmer name")
	cmd.Flags().StringVar(&ref, "ref", "", "Farmer reference number")
	cmd.Flags().StringVar(&phone, "phone", "", "Contact phone number")
	cmd.Flags().StringVar(&crop, "crop", "", "Crop type (e.g. maize)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Boundary point latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Boundary point longitude")
	cmd.Flags().Float64Var(&accuracy, "accuracy", 0, "GPS fix accuracy in meters")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("ref")
	_ = cmd.MarkFlagRequired("crop")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}

func newFarmListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered farms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				farms, err := store.ListFarms(cmd.Context())
				if err != nil {
					return err
				}
				if len(farms) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No farms registered")
					return nil
				}

				rows := make([][]string, 0, len(farms))
				for _, f := range farms {
					rows = append(rows, []string{
						f.ID,
						f.FarmerName,
						f.FarmerRef,
						f.CropType,
						fmt.Sprintf("%.5f, %.5f", f.Location.Lat, f.Location.Lon),
						f.RegisteredAt.Local().Format(time.DateOnly),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Farmer", "Ref", "Crop", "Location", "Registered"}, rows))
				return nil
			})
		},
	}
}
