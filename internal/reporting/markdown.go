package reporting

import (
	"fmt"
	"strings"
	"time"

	"promofeed/internal/domain"
)

// RenderMarkdown renders a report as a Markdown document.
func RenderMarkdown(r *domain.Report, dataQualityErrors []string) string {
	var sb strings.Builder

	sb.WriteString("# Sponsored Listing Engagement Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.UnixMilli(r.GeneratedAt).UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Trailing window: %d day(s)\n\n", r.WindowDays))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Views | %d |\n", r.TotalViews))
	sb.WriteString(fmt.Sprintf("| Total Clicks | %d |\n", r.TotalClicks))
	sb.WriteString(fmt.Sprintf("| CTR | %.4f |\n", r.ClickThroughRate))
	sb.WriteString("\n")

	writeBucketSection(&sb, "Daily", r.Daily)
	writeBucketSection(&sb, "By Region", r.ByRegion)
	writeBucketSection(&sb, "By Category", r.ByCategory)
	writeBucketSection(&sb, "By Tier", r.ByTier)

	if len(dataQualityErrors) > 0 {
		sb.WriteString("## Data Quality\n\n")
		for _, msg := range dataQualityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", msg))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeBucketSection(sb *strings.Builder, title string, buckets []*domain.AggregateBucket) {
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))

	if len(buckets) == 0 {
		sb.WriteString("No events in window.\n\n")
		return
	}

	sb.WriteString("| Key | Views | Clicks | CTR |\n")
	sb.WriteString("|-----|-------|--------|-----|\n")
	for _, b := range buckets {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f |\n", b.Key, b.Views, b.Clicks, b.ClickThroughRate))
	}
	sb.WriteString("\n")
}
