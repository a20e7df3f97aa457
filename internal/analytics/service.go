package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/metrics"
	"github.com/zfogg/blog/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// AnomalyWindow and AnomalyThreshold bound how many interactions one
	// actor may log against one post.
	AnomalyWindow    = 10 * time.Minute
	AnomalyThreshold = 50

	commentWeight = 2.0
)

var (
	ErrInvalidInteractionType = errors.New("Invalid interaction type.")
	ErrCommentRequired        = errors.New("Interactions of type comment needs to have a comment associated.")
	ErrCommentNotAllowed      = errors.New("Interactions of type view, like or share should not have a comment associated.")
	ErrAnomalousBehavior      = errors.New("Anomalous behavior detected!")
	ErrAnalyticsNotFound      = errors.New("analytics row not found")
	ErrUnknownTarget          = errors.New("post or category does not exist")
)

// Interaction describes one event to append to the interaction log.
type Interaction struct {
	UserID    *string
	PostID    string
	CommentID *string
	Type      models.InteractionType
	IPAddress string
	Device    *models.DeviceType
}

// Validate checks the type/comment pairing rules.
func (i Interaction) Validate() error {
	if !i.Type.Valid() {
		return ErrInvalidInteractionType
	}
	if i.Type == models.InteractionComment && i.CommentID == nil {
		return ErrCommentRequired
	}
	if i.Type != models.InteractionComment && i.CommentID != nil {
		return ErrCommentNotAllowed
	}
	return nil
}

// Service owns the interaction log and the analytics counter rows. All
// counter writes are single-statement atomic updates.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates an analytics service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithTx returns a copy bound to tx so writes join the caller's transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, now: s.now}
}

// SetClock overrides the event clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CheckAnomaly returns ErrAnomalousBehavior when the actor logged more than
// AnomalyThreshold interactions on the post within AnomalyWindow. Anonymous
// actors are identified by IP.
func (s *Service) CheckAnomaly(ctx context.Context, userID *string, postID, ip string) error {
	q := s.db.WithContext(ctx).Model(&models.PostInteraction{}).
		Where("post_id = ? AND timestamp >= ?", postID, s.now().UTC().Add(-AnomalyWindow))
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	} else {
		q = q.Where("user_id IS NULL AND ip_address = ?", ip)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count recent interactions: %w", err)
	}
	if count > AnomalyThreshold {
		metrics.RecordAnomalyRejected()
		logger.Log.Warn("Anomalous interaction rate",
			logger.WithPostID(postID),
			logger.WithIP(ip),
			zap.Int64("recent", count),
		)
		return ErrAnomalousBehavior
	}
	return nil
}

// RecordInteraction validates, runs the anomaly guard and appends the event.
// A duplicate of an existing (user, post, type, comment) tuple is a no-op;
// the returned bool reports whether a row was written.
func (s *Service) RecordInteraction(ctx context.Context, in Interaction) (bool, error) {
	if err := in.Validate(); err != nil {
		return false, err
	}
	if err := s.CheckAnomaly(ctx, in.UserID, in.PostID, in.IPAddress); err != nil {
		return false, err
	}

	row := s.buildInteraction(in)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record interaction: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.RecordInteraction(string(in.Type))
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) buildInteraction(in Interaction) *models.PostInteraction {
	ts := s.now().UTC()
	row := &models.PostInteraction{
		UserID:              in.UserID,
		PostID:              in.PostID,
		CommentID:           in.CommentID,
		InteractionType:     in.Type,
		InteractionCategory: models.InteractionActive,
		Weight:              1.0,
		Timestamp:           ts,
		DeviceType:          in.Device,
		IPAddress:           in.IPAddress,
		HourOfDay:           ts.Hour(),
		DayOfWeek:           mondayFirst(ts.Weekday()),
	}
	if in.Type == models.InteractionView {
		row.InteractionCategory = models.InteractionPassive
	}
	if in.Type == models.InteractionComment {
		row.Weight = commentWeight
	}
	return row
}

// mondayFirst maps time.Weekday (Sunday = 0) to Monday = 0 numbering.
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// CreatePostAnalytics inserts the counter row for a new post. Call it in the
// transaction that creates the post.
func (s *Service) CreatePostAnalytics(ctx context.Context, postID string) error {
	row := &models.PostAnalytics{PostID: postID}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

// CreateCategoryAnalytics inserts the counter row for a new category.
func (s *Service) CreateCategoryAnalytics(ctx context.Context, categoryID string) error {
	row := &models.CategoryAnalytics{CategoryID: categoryID}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

// clickColumns adds n clicks and recomputes CTR from the post-update values.
// The right-hand sides of an UPDATE see the old row, hence the explicit "+ n".
func clickColumns(n int64) map[string]interface{} {
	return map[string]interface{}{
		"clicks":             gorm.Expr("clicks + ?", n),
		"click_through_rate": gorm.Expr("CASE WHEN impressions > 0 THEN (clicks + ?) * 100.0 / impressions ELSE 0 END", n),
	}
}

func impressionColumns(n int64) map[string]interface{} {
	return map[string]interface{}{
		"impressions":        gorm.Expr("impressions + ?", n),
		"click_through_rate": gorm.Expr("CASE WHEN impressions + ? > 0 THEN clicks * 100.0 / (impressions + ?) ELSE 0 END", n, n),
	}
}

// clampedAdd adds delta to col without going below zero.
func clampedAdd(col string, delta int64) clause.Expr {
	return gorm.Expr(fmt.Sprintf("CASE WHEN %s + ? < 0 THEN 0 ELSE %s + ? END", col, col), delta, delta)
}

func (s *Service) updatePost(ctx context.Context, postID string, columns map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.PostAnalytics{}).
		Where("post_id = ?", postID).
		UpdateColumns(columns)
	if res.Error != nil {
		return fmt.Errorf("failed to update post analytics: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Rows predating explicit construction are created on first touch.
		if err := s.requireExists(ctx, &models.Post{}, postID); err != nil {
			return err
		}
		if err := s.CreatePostAnalytics(ctx, postID); err != nil {
			return err
		}
		return s.db.WithContext(ctx).Model(&models.PostAnalytics{}).
			Where("post_id = ?", postID).
			UpdateColumns(columns).Error
	}
	return nil
}

func (s *Service) updateCategory(ctx context.Context, categoryID string, columns map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.CategoryAnalytics{}).
		Where("category_id = ?", categoryID).
		UpdateColumns(columns)
	if res.Error != nil {
		return fmt.Errorf("failed to update category analytics: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := s.requireExists(ctx, &models.Category{}, categoryID); err != nil {
			return err
		}
		if err := s.CreateCategoryAnalytics(ctx, categoryID); err != nil {
			return err
		}
		return s.db.WithContext(ctx).Model(&models.CategoryAnalytics{}).
			Where("category_id = ?", categoryID).
			UpdateColumns(columns).Error
	}
	return nil
}

func (s *Service) requireExists(ctx context.Context, model interface{}, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrUnknownTarget
	}
	return nil
}

// PostAnalytics loads the counter row of a post.
func (s *Service) PostAnalytics(ctx context.Context, postID string) (*models.PostAnalytics, error) {
	var row models.PostAnalytics
	err := s.db.WithContext(ctx).Where("post_id = ?", postID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnalyticsNotFound
	}
	return &row, err
}

// CategoryAnalytics loads the counter row of a category.
func (s *Service) CategoryAnalytics(ctx context.Context, categoryID string) (*models.CategoryAnalytics, error) {
	var row models.CategoryAnalytics
	err := s.db.WithContext(ctx).Where("category_id = ?", categoryID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnalyticsNotFound
	}
	return &row, err
}

// IncrementPostClicks adds n clicks and returns the updated row.
func (s *Service) IncrementPostClicks(ctx context.Context, postID string, n int64) (*models.PostAnalytics, error) {
	if err := s.updatePost(ctx, postID, clickColumns(n)); err != nil {
		return nil, err
	}
	return s.PostAnalytics(ctx, postID)
}

// IncrementPostImpressions adds n impressions.
func (s *Service) IncrementPostImpressions(ctx context.Context, postID string, n int64) error {
	return s.updatePost(ctx, postID, impressionColumns(n))
}

// IncrementCategoryClicks adds n clicks and returns the updated row.
func (s *Service) IncrementCategoryClicks(ctx context.Context, categoryID string, n int64) (*models.CategoryAnalytics, error) {
	if err := s.updateCategory(ctx, categoryID, clickColumns(n)); err != nil {
		return nil, err
	}
	return s.CategoryAnalytics(ctx, categoryID)
}

// IncrementCategoryImpressions adds n impressions.
func (s *Service) IncrementCategoryImpressions(ctx context.Context, categoryID string, n int64) error {
	return s.updateCategory(ctx, categoryID, impressionColumns(n))
}

func (s *Service) AddLikes(ctx context.Context, postID string, delta int64) error {
	return s.updatePost(ctx, postID, map[string]interface{}{"likes": clampedAdd("likes", delta)})
}

func (s *Service) AddShares(ctx context.Context, postID string, delta int64) error {
	return s.updatePost(ctx, postID, map[string]interface{}{"shares": clampedAdd("shares", delta)})
}

// AddComments moves the comment counter. Creation adds one, deactivation
// subtracts one; edits never touch it.
func (s *Service) AddComments(ctx context.Context, postID string, delta int64) error {
	return s.updatePost(ctx, postID, map[string]interface{}{"comments": clampedAdd("comments", delta)})
}

// RecountComments overwrites the counter with the number of active comments.
// Used by repair tooling only.
func (s *Service) RecountComments(ctx context.Context, postID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ? AND is_active = ?", postID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	err := s.updatePost(ctx, postID, map[string]interface{}{"comments": count})
	return count, err
}

// RegisterPostView records a unique view keyed by (post, user, ip). Only a
// first view logs a view interaction and bumps the views counter. Returns
// whether the view was new.
func (s *Service) RegisterPostView(ctx context.Context, postID string, userID *string, ip string, device *models.DeviceType) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view := &models.PostView{PostID: postID, IPAddress: ip}
		if userID != nil {
			view.UserID = *userID
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(view)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		txs := s.WithTx(tx)
		if _, err := txs.RecordInteraction(ctx, Interaction{
			UserID:    userID,
			PostID:    postID,
			Type:      models.InteractionView,
			IPAddress: ip,
			Device:    device,
		}); err != nil && !errors.Is(err, ErrAnomalousBehavior) {
			return err
		}
		return txs.updatePost(ctx, postID, map[string]interface{}{"views": gorm.Expr("views + 1")})
	})
	if err != nil {
		return false, fmt.Errorf("failed to register post view: %w", err)
	}
	if created {
		metrics.RecordViewRegistered("post")
	}
	return created, nil
}

// RegisterCategoryView records a unique view of a category keyed by IP.
func (s *Service) RegisterCategoryView(ctx context.Context, categoryID, ip string) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CategoryView{CategoryID: categoryID, IPAddress: ip})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return s.WithTx(tx).updateCategory(ctx, categoryID, map[string]interface{}{"views": gorm.Expr("views + 1")})
	})
	if err != nil {
		return false, fmt.Errorf("failed to register category view: %w", err)
	}
	if created {
		metrics.RecordViewRegistered("category")
	}
	return created, nil
}

// Summary aggregates the interaction log of a post by type.
type Summary struct {
	InteractionType models.InteractionType `json:"interaction_type"`
	Count           int64                  `json:"count"`
	Weight          float64                `json:"weight"`
}

// InteractionSummary groups the log of a post by interaction type.
func (s *Service) InteractionSummary(ctx context.Context, postID string) ([]Summary, error) {
	var rows []Summary
	err := s.db.WithContext(ctx).Model(&models.PostInteraction{}).
		Select("interaction_type, COUNT(*) AS count, SUM(weight) AS weight").
		Where("post_id = ?", postID).
		Group("interaction_type").
		Order("interaction_type").
		Scan(&rows).Error
	return rows, err
}
