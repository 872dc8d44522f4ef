package reporting

import (
	"fmt"
	"strings"

	"promofeed/internal/domain"
)

// RenderCSV renders report buckets as CSV, one section per dimension.
func RenderCSV(r *domain.Report) string {
	var sb strings.Builder

	sb.WriteString("dimension,key,views,clicks,click_through_rate\n")

	writeBuckets(&sb, "daily", r.Daily)
	writeBuckets(&sb, "region", r.ByRegion)
	writeBuckets(&sb, "category", r.ByCategory)
	writeBuckets(&sb, "tier", r.ByTier)

	sb.WriteString(fmt.Sprintf("total,,%d,%d,%.6f\n", r.TotalViews, r.TotalClicks, r.ClickThroughRate))

	return sb.String()
}

func writeBuckets(sb *strings.Builder, dimension string, buckets []*domain.AggregateBucket) {
	for _, b := range buckets {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%.6f\n",
			dimension, b.Key, b.Views, b.Clicks, b.ClickThroughRate))
	}
}
