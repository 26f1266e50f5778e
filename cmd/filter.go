package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/events"
	"github.com/sells-group/lagekarte/internal/store"
)

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("category", nil, "keep events in any of these categories")
	cmd.Flags().String("weapon", "", "keep events with this weapon type")
	cmd.Flags().Bool("primary-only", false, "hide secondary members of incident groups")
	cmd.Flags().String("from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().String("search", "", "full-text search over titles and summaries")
	cmd.Flags().String("favorites", "", "keep events in this favourite list")
}

// filterFromFlags builds the event filter, resolving search and favourites
// through the store.
func filterFromFlags(ctx context.Context, cmd *cobra.Command, st store.Store) (events.Filter, error) {
	var f events.Filter
	f.Categories, _ = cmd.Flags().GetStringSlice("category")
	f.Weapon, _ = cmd.Flags().GetString("weapon")
	f.PrimaryOnly, _ = cmd.Flags().GetBool("primary-only")
	f.From, _ = cmd.Flags().GetString("from")
	f.To, _ = cmd.Flags().GetString("to")

	if q, _ := cmd.Flags().GetString("search"); strings.TrimSpace(q) != "" {
		ids, err := st.SearchEvents(ctx, q)
		if err != nil {
			return f, err
		}
		if ids == nil {
			ids = events.NewIDSet()
		}
		f.SearchIDs = ids
		zap.L().Debug("search resolved", zap.String("query", q), zap.Int("hits", len(ids)))
	}

	if list, _ := cmd.Flags().GetString("favorites"); list != "" {
		ids, err := st.Favorites(ctx, list)
		if err != nil {
			return f, err
		}
		f.FavoritesOnly = true
		f.Favorites = ids
	}
	return f, nil
}
