package analytics

import (
	"context"
	"fmt"

	"github.com/zfogg/blog/backend/internal/models"
	"gorm.io/gorm"
)

// CTR is clicks/impressions as a percentage, 0 when there are no impressions.
func CTR(clicks, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return float64(clicks) / float64(impressions) * 100
}

// CTRMetric is one row of a CTR report.
type CTRMetric struct {
	PostID      string  `json:"post_id"`
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"click_through_rate"`
}

// TopPostsByCTR returns the posts with the highest stored click-through rate
// among those with at least minImpressions impressions.
func TopPostsByCTR(ctx context.Context, db *gorm.DB, minImpressions int64, limit int) ([]CTRMetric, error) {
	var rows []CTRMetric
	err := db.WithContext(ctx).
		Table(models.PostAnalytics{}.TableName()+" AS a").
		Select("a.post_id, p.slug, p.title, a.impressions, a.clicks, a.click_through_rate AS ctr").
		Joins("JOIN posts p ON p.id = a.post_id").
		Where("a.impressions >= ?", minImpressions).
		Order("a.click_through_rate DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load CTR report: %w", err)
	}
	return rows, nil
}
