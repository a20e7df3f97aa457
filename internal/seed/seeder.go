// Package seed fills a database with fake users, categories, posts and
// engagement for development and demos.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zfogg/blog/backend/internal/analytics"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EditorUsername owns every generated post.
const EditorUsername = "testeditor"

// DefaultPostCount is how many posts one generate_posts call creates.
const DefaultPostCount = 100

// DevPassword is the password of every seeded account.
const DevPassword = "password123"

var (
	ErrNoCategories = errors.New("No categories availables for posts")
	ErrNoPosts      = errors.New("No posts availables for analytics")
	ErrNoEditor     = errors.New("The testeditor account does not exist.")
)

// Seeder handles database seeding operations
type Seeder struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	cost  int
}

// NewSeeder creates a seeder with a randomly seeded faker.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db, faker: gofakeit.New(0), cost: bcrypt.DefaultCost}
}

// NewSeederWithSeed creates a seeder whose output is reproducible.
func NewSeederWithSeed(db *gorm.DB, seed uint64) *Seeder {
	return &Seeder{db: db, faker: gofakeit.New(seed), cost: bcrypt.MinCost}
}

// SeedDev creates the editor, a few readers, a category tree, posts with
// random analytics, and some comments and likes.
func (s *Seeder) SeedDev(ctx context.Context) error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating users...")
	readers, err := s.seedUsers(ctx, 10)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	log("Creating categories...")
	if err := s.seedCategories(ctx); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	log("Creating posts...")
	if _, err := s.GeneratePosts(ctx, DefaultPostCount); err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	log("Creating analytics...")
	if _, err := s.GenerateAnalytics(ctx); err != nil {
		return fmt.Errorf("failed to seed analytics: %w", err)
	}

	log("Creating comments and likes...")
	if err := s.seedEngagement(ctx, readers, 200); err != nil {
		return fmt.Errorf("failed to seed engagement: %w", err)
	}
	return nil
}

// EnsureEditor returns the testeditor account, creating it when missing.
func (s *Seeder) EnsureEditor(ctx context.Context) (*models.User, error) {
	return s.ensureUser(ctx, EditorUsername, models.RoleEditor)
}

func (s *Seeder) ensureUser(ctx context.Context, username string, role models.Role) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DevPassword), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user = models.User{
		Email:        username + "@example.com",
		Username:     username,
		FirstName:    s.faker.FirstName(),
		LastName:     s.faker.LastName(),
		PasswordHash: string(hash),
		Role:         role,
		Verified:     true,
		Profile:      &models.UserProfile{Biography: s.faker.HipsterSentence()},
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return &user, nil
}

func (s *Seeder) seedUsers(ctx context.Context, readers int) ([]models.User, error) {
	if _, err := s.EnsureEditor(ctx); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, readers)
	for i := 0; i < readers; i++ {
		username := strings.ToLower(s.faker.Username())
		user, err := s.ensureUser(ctx, username, models.RoleCustomer)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	logger.Log.Info("Seed users ready", zap.Int("readers", len(users)))
	return users, nil
}

var categoryTree = map[string][]string{
	"Technology": {"Golang", "DevOps", "Databases"},
	"Lifestyle":  {"Travel", "Food"},
	"Business":   {"Startups"},
}

func (s *Seeder) seedCategories(ctx context.Context) error {
	for root, children := range categoryTree {
		parent, err := s.ensureCategory(ctx, root, nil)
		if err != nil {
			return err
		}
		for _, child := range children {
			if _, err := s.ensureCategory(ctx, child, &parent.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) ensureCategory(ctx context.Context, name string, parentID *string) (*models.Category, error) {
	slug := util.Slugify(name)
	var category models.Category
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	category = models.Category{
		ParentID:    parentID,
		Name:        name,
		Title:       name,
		Description: s.faker.HipsterSentence(),
		Slug:        slug,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&category).Error; err != nil {
			return err
		}
		return analytics.NewService(tx).CreateCategoryAnalytics(ctx, category.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create category %s: %w", name, err)
	}
	return &category, nil
}

// GeneratePosts creates n published posts by testeditor in random existing
// categories, each with an analytics row and headings taken from its body.
func (s *Seeder) GeneratePosts(ctx context.Context, n int) (int, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Find(&categories).Error; err != nil {
		return 0, err
	}
	if len(categories) == 0 {
		return 0, ErrNoCategories
	}

	var editor models.User
	err := s.db.WithContext(ctx).Where("username = ?", EditorUsername).First(&editor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNoEditor
	}
	if err != nil {
		return 0, err
	}

	created := 0
	for i := 0; i < n; i++ {
		title := s.fakeTitle()
		content := s.fakeContent()
		post := models.Post{
			UserID:      editor.ID,
			CategoryID:  categories[s.faker.Number(0, len(categories)-1)].ID,
			Title:       title,
			Description: s.faker.HipsterSentence(),
			Content:     content,
			Keywords:    strings.Join(s.fakeWords(5), ", "),
			Slug:        fmt.Sprintf("%s-%d", util.Slugify(title), s.faker.Number(100000, 999999)),
			Status:      models.PostStatusPublished,
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&post).Error; err != nil {
				return err
			}
			for _, h := range util.ExtractHeadings(content) {
				h.PostID = post.ID
				if err := tx.Create(&h).Error; err != nil {
					return err
				}
			}
			return analytics.NewService(tx).CreatePostAnalytics(ctx, post.ID)
		})
		if err != nil {
			return created, fmt.Errorf("failed to create post: %w", err)
		}
		created++
	}

	logger.Log.Info("Generated posts", zap.Int("count", created))
	return created, nil
}

func (s *Seeder) fakeContent() string {
	var b strings.Builder
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "<h2>%s</h2>", strings.Join(s.fakeWords(3), " "))
		fmt.Fprintf(&b, "<p>%s %s %s</p>", s.faker.HipsterSentence(), s.faker.HipsterSentence(), s.faker.HipsterSentence())
	}
	return b.String()
}

func (s *Seeder) fakeTitle() string {
	title := strings.TrimSuffix(s.faker.HipsterSentence(), ".")
	if len(title) > 100 {
		title = strings.TrimSpace(title[:100])
	}
	return title
}

func (s *Seeder) fakeWords(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = s.faker.Word()
	}
	return words
}

// GenerateAnalytics overwrites the counters of every post with random
// plausible values: views 50..1000, impressions views+100..2000, clicks
// 0..views and 10..300 seconds on page.
func (s *Seeder) GenerateAnalytics(ctx context.Context) (int, error) {
	var postIDs []string
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Pluck("id", &postIDs).Error; err != nil {
		return 0, err
	}
	if len(postIDs) == 0 {
		return 0, ErrNoPosts
	}

	service := analytics.NewService(s.db)
	for _, postID := range postIDs {
		if err := service.CreatePostAnalytics(ctx, postID); err != nil {
			return 0, err
		}

		views := int64(s.faker.Number(50, 1000))
		impressions := views + int64(s.faker.Number(100, 2000))
		clicks := int64(s.faker.Number(0, int(views)))
		avg := math.Round(s.faker.Float64Range(10, 300)*100) / 100

		err := s.db.WithContext(ctx).Model(&models.PostAnalytics{}).
			Where("post_id = ?", postID).
			Updates(map[string]interface{}{
				"views":              views,
				"impressions":        impressions,
				"clicks":             clicks,
				"avg_time_on_page":   avg,
				"click_through_rate": analytics.CTR(clicks, impressions),
			}).Error
		if err != nil {
			return 0, fmt.Errorf("failed to update analytics: %w", err)
		}
	}

	logger.Log.Info("Generated analytics", zap.Int("count", len(postIDs)))
	return len(postIDs), nil
}

// seedEngagement adds comments and likes from readers to random posts and
// keeps the analytics counters in step.
func (s *Seeder) seedEngagement(ctx context.Context, readers []models.User, count int) error {
	if len(readers) == 0 {
		return nil
	}
	var posts []models.Post
	if err := s.db.WithContext(ctx).Scopes(models.Published).Find(&posts).Error; err != nil {
		return err
	}
	if len(posts) == 0 {
		return nil
	}

	service := analytics.NewService(s.db)
	for i := 0; i < count; i++ {
		reader := readers[s.faker.Number(0, len(readers)-1)]
		post := posts[s.faker.Number(0, len(posts)-1)]

		if s.faker.Bool() {
			comment := models.Comment{UserID: reader.ID, PostID: post.ID, Content: "<p>" + s.faker.HipsterSentence() + "</p>"}
			if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
				return fmt.Errorf("failed to create comment: %w", err)
			}
			if err := service.AddComments(ctx, post.ID, 1); err != nil {
				return err
			}
			continue
		}

		like := models.PostLike{PostID: post.ID, UserID: reader.ID}
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
		if res.Error != nil {
			return fmt.Errorf("failed to create like: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			if err := service.AddLikes(ctx, post.ID, 1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clean removes all content and accounts (use with caution!)
func (s *Seeder) Clean(ctx context.Context) error {
	tables := []string{
		"post_interactions", "post_views", "post_shares", "post_likes", "comments",
		"headings", "post_analytics", "posts", "category_views", "category_analytics",
		"categories", "user_profiles", "users",
	}
	for _, table := range tables {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}
