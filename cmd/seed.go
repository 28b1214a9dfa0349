package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"macromap/services"
)

// topChains are the 50 largest US fast-food chains.
var topChains = []string{
	"Subway", "Starbucks", "McDonald's", "Dunkin'", "Burger King",
	"Taco Bell", "Wendy's", "Chick-fil-A", "Sonic Drive-In", "Domino's Pizza",
	"KFC", "Panera Bread", "Pizza Hut", "Chipotle", "Arby's",
	"Popeyes", "Dairy Queen", "Little Caesars", "Jimmy John's", "Panda Express",
	"Jack in the Box", "Hardee's", "Papa John's", "Jersey Mike's", "Firehouse Subs",
	"Five Guys", "Carl's Jr.", "Whataburger", "Culver's", "In-N-Out Burger",
	"Zaxby's", "Wingstop", "Papa Murphy's", "Checkers", "Raising Cane's",
	"White Castle", "Del Taco", "Baskin-Robbins", "Marco's Pizza", "Qdoba",
	"Moe's Southwest Grill", "Captain D's", "Church's Chicken", "Long John Silver's", "Bojangles",
	"El Pollo Loco", "Charleys Philly Steaks", "McAlister's Deli", "Jason's Deli", "Tropical Smoothie Cafe",
}

var (
	seedFile  string
	seedDelay time.Duration
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Prefetch menus for the top chains (or names from a file)",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "File with one restaurant name per line")
	seedCmd.Flags().DurationVar(&seedDelay, "delay", 2*time.Second, "Pause between restaurants")
}

func runSeed(cmd *cobra.Command, args []string) error {
	names := topChains
	if seedFile != "" {
		f, err := os.Open(seedFile)
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		names, err = readNames(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	stats := seed(cmd.Context(), a.menus, names, seedDelay)
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d/%d restaurants, %d items added\n", stats.Seeded, len(names), stats.Added)
	return nil
}

type seedStats struct {
	Seeded int
	Added  int
}

// seed refreshes names one at a time; failures are logged and skipped.
func seed(ctx context.Context, menus *services.MenuService, names []string, delay time.Duration) seedStats {
	var st seedStats
	for i, name := range names {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return st
			case <-time.After(delay):
			}
		}
		added, err := menus.RefreshRestaurant(ctx, name)
		switch {
		case errors.Is(err, services.ErrNoCandidate):
			log.Printf("[SEED] %s: no menu data", name)
			continue
		case err != nil:
			log.Printf("[SEED] %s: %v", name, err)
			continue
		}
		st.Seeded++
		st.Added += added
		log.Printf("[SEED] %s: +%d items", name, added)
	}
	return st
}

// readNames returns one name per non-blank line; # starts a comment.
func readNames(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return out, nil
}
