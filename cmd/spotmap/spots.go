package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jengzang/spotmap-go/internal/models"
	"github.com/jengzang/spotmap-go/internal/spotstore"
	"github.com/jengzang/spotmap-go/internal/tracker"
)

const locateTimeout = 15 * time.Second

var (
	spotName        string
	spotDescription string
	spotType        string
	spotLat         float64
	spotLon         float64
	spotHere        bool
	spotPublic      bool
)

var spotsCmd = &cobra.Command{
	Use:   "spots",
	Short: "List and edit spots",
}

var spotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show private spots, numbered, and public spots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		private, public, err := a.store.LoadAll(cmd.Context())
		out := cmd.OutOrStdout()
		printSpots(out, "Private spots", private, true)
		if err != nil {
			fmt.Fprintln(out, notice(err))
			return nil
		}
		printSpots(out, "Public spots", public, false)
		return nil
	},
}

var spotsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a spot at the given coordinates or at the current position",
	Example: `  spotmap spots add --lat 46.81 --lon -71.21 --name "Bridge pool"
  spotmap spots add --here --public --type fishing`,
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := spotPosition(cmd)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// the new spot is appended to what is already stored
		if _, _, err := a.store.LoadAll(cmd.Context()); err != nil {
			logger.Warn("public spots unavailable", zap.Error(err))
		}

		req := spotstore.CreateRequest{
			At:          at,
			Name:        spotName,
			Description: spotDescription,
			Visibility:  models.VisibilityPrivate,
			User:        a.session.Email(),
		}
		if spotPublic {
			req.Visibility = models.VisibilityPublic
		}
		if spotType != "" {
			req.Type = &spotType
		}

		spot, err := a.store.Create(cmd.Context(), req)
		if err != nil && !errors.Is(err, spotstore.ErrRemoteReadFailed) {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s spot %q at %.6f, %.6f\n",
			spot.Visibility, spot.Name, spot.Latitude, spot.Longitude)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), notice(err))
		}
		return nil
	},
}

var spotsEditCmd = &cobra.Command{
	Use:   "edit <number>",
	Short: "Rename a private spot or change its description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid spot number %q", args[0])
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// public spots are not needed here
		private, _, _ := a.store.LoadAll(cmd.Context())
		if index >= 0 && index < len(private) {
			if !cmd.Flags().Changed("name") {
				spotName = private[index].Name
			}
			if !cmd.Flags().Changed("desc") {
				spotDescription = private[index].Description
			}
		}

		spot, err := a.store.Update(cmd.Context(), index, spotName, spotDescription)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %d: %s\n", index, spot.Name)
		return nil
	},
}

var spotsRmCmd = &cobra.Command{
	Use:     "rm <number>",
	Aliases: []string{"remove"},
	Short:   "Delete a private spot",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid spot number %q", args[0])
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		_, _, _ = a.store.LoadAll(cmd.Context())
		if err := a.store.Remove(cmd.Context(), index); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d\n", index)
		return nil
	},
}

func init() {
	spotsAddCmd.Flags().StringVar(&spotName, "name", "", "spot name (a default is used when blank)")
	spotsAddCmd.Flags().StringVar(&spotDescription, "desc", "", "description")
	spotsAddCmd.Flags().StringVar(&spotType, "type", "", "free-text tag, e.g. fishing")
	spotsAddCmd.Flags().Float64Var(&spotLat, "lat", 0, "latitude in decimal degrees")
	spotsAddCmd.Flags().Float64Var(&spotLon, "lon", 0, "longitude in decimal degrees")
	spotsAddCmd.Flags().BoolVar(&spotHere, "here", false, "use the current position from the tracker")
	spotsAddCmd.Flags().BoolVar(&spotPublic, "public", false, "publish the spot (requires sign-in)")
	spotsAddCmd.MarkFlagsMutuallyExclusive("here", "lat")
	spotsAddCmd.MarkFlagsMutuallyExclusive("here", "lon")
	spotsAddCmd.MarkFlagsRequiredTogether("lat", "lon")

	spotsEditCmd.Flags().StringVar(&spotName, "name", "", "new name")
	spotsEditCmd.Flags().StringVar(&spotDescription, "desc", "", "new description")

	spotsCmd.AddCommand(spotsListCmd, spotsAddCmd, spotsEditCmd, spotsRmCmd)
}

func spotPosition(cmd *cobra.Command) (models.Coordinates, error) {
	if spotHere {
		return currentPosition(cmd.Context())
	}
	if !cmd.Flags().Changed("lat") {
		return models.Coordinates{}, errors.New("give --lat and --lon, or --here")
	}
	return models.Coordinates{Latitude: spotLat, Longitude: spotLon}, nil
}

func currentPosition(ctx context.Context) (models.Coordinates, error) {
	provider, closeProvider := newProvider(cfg.Tracker)
	defer closeProvider()

	ctx, cancel := context.WithTimeout(ctx, locateTimeout)
	defer cancel()

	pos, err := tracker.New(provider, logger).Locate(ctx)
	if err != nil {
		return models.Coordinates{}, err
	}
	return pos.Coordinates(), nil
}

func printSpots(w io.Writer, title string, spots []models.Spot, numbered bool) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(spots))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, s := range spots {
		prefix := "-"
		if numbered {
			prefix = strconv.Itoa(i)
		}
		tag := ""
		if s.Type != nil {
			tag = "[" + *s.Type + "]"
		}
		owner := ""
		if s.Owner != nil {
			owner = *s.Owner
		}
		fmt.Fprintf(tw, "  %s\t%s\t%.6f, %.6f\t%s\t%s\t%s\n", prefix, s.Name, s.Latitude, s.Longitude, tag, owner, s.Description)
	}
	tw.Flush()
}
