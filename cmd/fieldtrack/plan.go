package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fieldtrack/internal/routeplan"
)

var (
	planDBPath      string
	planAddBranch   []string
	planSetHQ       string
	planReset       bool
	planMarkVisited bool
	planSpeedKmh    float64
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan multi-day branch visit routes",
	Long: "plan computes day routes over the unvisited branches, each starting and ending at the headquarters and capped at the daily distance budget. " +
		"Travel costs come from the Google Distance Matrix API when GOOGLE_MAPS_API_KEY is set, otherwise from great-circle estimates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := routeplan.OpenStore(planDBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		ctx := cmd.Context()

		if planSetHQ != "" {
			b, err := parseBranch(planSetHQ)
			if err != nil {
				return fmt.Errorf("--hq: %w", err)
			}
			b.IsHQ = true
			if _, err := store.Add(ctx, b); err != nil {
				return err
			}
		}
		for _, spec := range planAddBranch {
			b, err := parseBranch(spec)
			if err != nil {
				return fmt.Errorf("--add %q: %w", spec, err)
			}
			if _, err := store.Add(ctx, b); err != nil {
				return err
			}
		}
		if planReset {
			if err := store.ResetVisits(ctx); err != nil {
				return err
			}
		}

		hq, err := store.Headquarters(ctx)
		if err != nil {
			return err
		}
		branches, err := store.Unvisited(ctx)
		if err != nil {
			return err
		}
		if len(branches) == 0 {
			fmt.Println("All branches visited; nothing to plan.")
			return nil
		}

		coords := make([]routeplan.Coord, 0, len(branches)+1)
		coords = append(coords, routeplan.Coord{Lat: hq.Lat, Lng: hq.Lng})
		for _, b := range branches {
			coords = append(coords, routeplan.Coord{Lat: b.Lat, Lng: b.Lng})
		}

		var matrix routeplan.Matrix
		if key := os.Getenv("GOOGLE_MAPS_API_KEY"); key != "" {
			matrix, err = routeplan.NewMatrixClient(key).Build(ctx, coords)
			if err != nil {
				return err
			}
		} else {
			matrix = routeplan.HaversineMatrix(coords, planSpeedKmh)
		}

		days, err := routeplan.PlanDays(matrix)
		if err != nil {
			return err
		}

		for i, day := range days {
			fmt.Printf("Day %d  %.1fkm  ~%dmin\n", i+1, float64(day.DistanceM)/1000, day.TravelS/60)
			for _, stop := range day.Stops {
				if stop == 0 {
					fmt.Printf("  %s (HQ)\n", hq.Name)
					continue
				}
				b := branches[stop-1]
				fmt.Printf("  %s  (%.5f, %.5f)\n", b.Name, b.Lat, b.Lng)
			}
		}

		if planMarkVisited {
			ids := make([]int64, 0, len(branches))
			for _, b := range branches {
				ids = append(ids, b.ID)
			}
			if err := store.MarkVisited(ctx, ids...); err != nil {
				return err
			}
		}
		return nil
	},
}

// parseBranch parses "name,lat,lng[,address]".
func parseBranch(spec string) (routeplan.Branch, error) {
	parts := strings.SplitN(spec, ",", 4)
	if len(parts) < 3 {
		return routeplan.Branch{}, fmt.Errorf("expected name,lat,lng[,address]")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return routeplan.Branch{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return routeplan.Branch{}, err
	}
	b := routeplan.Branch{Name: strings.TrimSpace(parts[0]), Lat: lat, Lng: lng}
	if len(parts) == 4 {
		b.Address = strings.TrimSpace(parts[3])
	}
	return b, nil
}

func init() {
	planCmd.Flags().StringVar(&planDBPath, "db", "branches.db", "Path to branch SQLite database")
	planCmd.Flags().StringArrayVar(&planAddBranch, "add", nil, "Add a branch before planning (name,lat,lng[,address]); repeatable")
	planCmd.Flags().StringVar(&planSetHQ, "hq", "", "Register the headquarters (name,lat,lng[,address])")
	planCmd.Flags().BoolVar(&planReset, "reset", false, "Clear all visited flags before planning")
	planCmd.Flags().BoolVar(&planMarkVisited, "mark-visited", false, "Mark planned branches as visited after printing the plan")
	planCmd.Flags().Float64Var(&planSpeedKmh, "speed", 40, "Average speed for great-circle travel estimates (km/h)")
}
