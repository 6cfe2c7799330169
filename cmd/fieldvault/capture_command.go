package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fieldvault/internal/capture"
	"fieldvault/internal/classify"
	"fieldvault/internal/config"
	"fieldvault/internal/gate"
	"fieldvault/internal/geo"
	"fieldvault/internal/notifications"
	"fieldvault/internal/queue"
	"fieldvault/internal/sensor"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var (
		farmID    string
		imagePath string
		lat       float64
		lon       float64
		tilt      float64
		bearing   float64
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Validate, classify, and enqueue a field observation",
		Long: "Runs the full capture pipeline from the command line with a manually\n" +
			"supplied device pose. The capture is rejected unless the device tilt\n" +
			"and distance to the registered farm pass validation, exactly as on a\n" +
			"handset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				farm, err := store.GetFarm(cmd.Context(), farmID)
				if err != nil {
					return err
				}

				image, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}

				g := gate.New(cfg.Capture.MinTiltDegrees, cfg.Capture.GeofenceRadiusMeters)
				orientation := sensor.Orientation{
					TiltDegrees:    tilt,
					BearingDegrees: bearing,
					At:             time.Now().UTC(),
				}
				session := gate.NewManualSession(g, orientation, farm.Location)
				session.UpdateLocation(geo.Coordinate{Lat: lat, Lon: lon})

				decision := session.Decision()
				if !decision.Valid() {
					return fmt.Errorf("capture blocked: %s", decision.Reason)
				}

				classifier, err := classify.NewClient(cfg.Classifier.Endpoint,
					time.Duration(cfg.Classifier.TimeoutSeconds)*time.Second)
				if err != nil {
					return fmt.Errorf("classifier: %w", err)
				}

				assembler := capture.NewAssembler(classifier)
				record, err := assembler.Assemble(cmd.Context(), session, farm.ID, image)
				if err != nil {
					return err
				}

				item, err := store.Enqueue(cmd.Context(), record, image)
				if err != nil {
					return fmt.Errorf("enqueue capture: %w", err)
				}

				notifier := notifications.NewService(cfg)
				_ = notifier.NotifyCaptureEnqueued(cmd.Context(), farm.FarmerName, string(record.PrimaryLabel))

				printCaptureSummary(cmd, record, item, decision)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&farmID, "farm", "", "Registered farm id")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the photo to file")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Device latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Device longitude")
	cmd.Flags().Float64Var(&tilt, "tilt", 0, "Device tilt in degrees from horizontal")
	cmd.Flags().Float64Var(&bearing, "bearing", 0, "Compass bearing in degrees")
	_ = cmd.MarkFlagRequired("farm")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	_ = cmd.MarkFlagRequired("tilt")

	return cmd
}

func printCaptureSummary(cmd *cobra.Command, record *capture.Record, item *queue.Item, decision gate.Decision) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Capture %s queued\n", record.CaptureID)
	fmt.Fprintf(out, "  condition: %s (%.0f%% confidence)\n", record.PrimaryLabel, record.PrimaryConfidence*100)
	fmt.Fprintf(out, "  tilt:      %.1f°\n", record.Tilt)
	fmt.Fprintf(out, "  distance:  %.0f m from registered point\n", decision.DistanceMeters)
	fmt.Fprintf(out, "  payload:   %s encrypted at rest\n", formatSize(item.PayloadSizeBytes))
}
