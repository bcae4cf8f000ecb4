// Package seed creates demo users and posts for development and for
// exercising the engagement jobs against a realistic population.
package seed

import (
	"context"
	"fmt"
	"time"

	"pulse/internal/engagement"
	"pulse/internal/models"
	"pulse/internal/observability"
	"pulse/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
)

// Options controls what Run creates.
type Options struct {
	Users int
	Posts int
	// MaxDays bounds how far back approvals are spread.
	MaxDays int
	// Seed makes the generated data reproducible. Zero picks a random seed.
	Seed   int64
	DryRun bool
}

// Result reports what Run created.
type Result struct {
	Users []models.User
	Posts []models.Post
}

// Factory builds domain entities and persists them through the repositories.
type Factory struct {
	posts repository.PostRepository
	users repository.UserRepository
	opts  Options
	faker *gofakeit.Faker
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to the given repositories.
func NewFactory(posts repository.PostRepository, users repository.UserRepository, opts Options) *Factory {
	if opts.MaxDays <= 0 {
		opts.MaxDays = 10
	}
	return &Factory{
		posts:  posts,
		users:  users,
		opts:   opts,
		faker:  gofakeit.New(opts.Seed),
		nextID: 1000,
	}
}

// BuildUser returns an unsaved user with a plausible login history: most
// logged in within the last day, some lapsed. Milestone badges match the
// streak they would have been earned on.
func (f *Factory) BuildUser(now time.Time, overrides ...func(*models.User)) models.User {
	user := models.User{
		Username: f.faker.Username() + fmt.Sprintf("%d", f.faker.Number(100, 999)),
		Email:    f.faker.Email(),
	}

	lapsed := f.faker.Number(1, 100) <= 25
	if lapsed {
		user.LastLogin = now.Add(-time.Duration(f.faker.Number(25, 240)) * time.Hour)
	} else {
		user.LastLogin = now.Add(-time.Duration(f.faker.Number(0, 23*60)) * time.Minute)
	}
	user.StreakDays = f.faker.Number(0, 400)
	user.XP = f.faker.Number(0, 40) * 5

	for _, m := range engagement.DefaultRules().Milestones {
		if user.StreakDays >= m.Days {
			user.Badges = user.Badges.With(m.Badge)
		}
	}

	for _, override := range overrides {
		override(&user)
	}
	return user
}

// BuildPost returns an unsaved post by user. Four in five posts are
// approved at a random point in the last MaxDays days with a baseline hot
// score.
func (f *Factory) BuildPost(user models.User, now time.Time, overrides ...func(*models.Post)) models.Post {
	post := models.Post{
		UserID:  user.ID,
		Title:   f.faker.Sentence(5),
		Content: f.faker.Paragraph(1, 3, 5, "\n"),
	}
	age := time.Duration(f.faker.Number(0, f.opts.MaxDays*24*60)) * time.Minute
	post.CreatedAt = now.Add(-age - time.Hour)

	if f.faker.Number(1, 5) != 1 {
		post.Approve(now.Add(-age), f.faker.Number(2, 20)*5)
	} else {
		post.HotScore = f.faker.Number(1, 10) * 5
	}

	for _, override := range overrides {
		override(&post)
	}
	return post
}

// Run creates opts.Users users and opts.Posts posts spread across them.
func (f *Factory) Run(ctx context.Context, now time.Time) (Result, error) {
	var res Result
	for i := 0; i < f.opts.Users; i++ {
		u := f.BuildUser(now)
		if err := f.createUser(ctx, &u); err != nil {
			return res, fmt.Errorf("create user %d: %w", i, err)
		}
		res.Users = append(res.Users, u)
	}
	if len(res.Users) == 0 && f.opts.Posts > 0 {
		return res, fmt.Errorf("cannot seed %d posts without users", f.opts.Posts)
	}

	for i := 0; i < f.opts.Posts; i++ {
		author := res.Users[f.faker.Number(0, len(res.Users)-1)]
		p := f.BuildPost(author, now)
		if err := f.createPost(ctx, &p); err != nil {
			return res, fmt.Errorf("create post %d: %w", i, err)
		}
		res.Posts = append(res.Posts, p)
	}

	observability.GlobalLogger.InfoContext(ctx, "seed completed",
		"users", len(res.Users),
		"posts", len(res.Posts),
		"dry_run", f.opts.DryRun,
	)
	return res, nil
}

func (f *Factory) createUser(ctx context.Context, u *models.User) error {
	if f.opts.DryRun {
		f.nextID++
		u.ID = f.nextID
		return nil
	}
	return f.users.Create(ctx, u)
}

func (f *Factory) createPost(ctx context.Context, p *models.Post) error {
	if f.opts.DryRun {
		f.nextID++
		p.ID = f.nextID
		return nil
	}
	return f.posts.Create(ctx, p)
}
