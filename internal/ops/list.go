package ops

import (
	"context"
	"strings"

	"github.com/soundbluemusic/dictgen/internal/db"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Pagination contains pagination metadata.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// ListEntriesInput contains parameters for the ListEntries operation.
// Exactly one of Partition and Category is set.
type ListEntriesInput struct {
	Partition string
	Category  string
	Limit     int
	Offset    int
}

// ListEntriesOutput contains the result of the ListEntries operation.
type ListEntriesOutput struct {
	Items      []db.EntrySummary `json:"items"`
	Pagination Pagination        `json:"pagination"`
}

// ListEntries pages through one partition or category of the offline database
// in merge order.
func ListEntries(ctx context.Context, rt *Runtime, input ListEntriesInput) (*ListEntriesOutput, error) {
	partition := strings.TrimSpace(input.Partition)
	category := strings.TrimSpace(input.Category)
	if (partition == "") == (category == "") {
		return nil, errors.NewInvalidConfig("partition", "exactly one of partition or category is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := max(input.Offset, 0)

	database, err := db.Open(db.Path(rt.Config.DataDir()))
	if err != nil {
		return nil, err
	}
	defer database.Close()

	var (
		items []db.EntrySummary
		total int
	)
	// Fetch one extra row to detect another page.
	if partition != "" {
		items, err = db.ListByPartition(ctx, database, partition, limit+1, offset)
		if err == nil {
			total, err = db.CountByPartition(ctx, database, partition)
		}
	} else {
		items, err = db.ListByCategory(ctx, database, category, limit+1, offset)
		if err == nil {
			total, err = db.CountByCategory(ctx, database, category)
		}
	}
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	if items == nil {
		items = []db.EntrySummary{}
	}

	return &ListEntriesOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: hasMore,
			Total:   total,
		},
	}, nil
}
