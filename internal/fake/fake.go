// Package fake fills a development database with generated users and
// posts.
package fake

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/iliyamo/flasky/internal/logger"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
)

var (
	firstNames = []string{"john", "susan", "david", "maria", "li", "omar", "anna", "pedro", "yuki", "fatima", "lars", "nina"}
	lastNames  = []string{"smith", "garcia", "chen", "khan", "muller", "rossi", "sato", "silva", "novak", "olsen"}
	cities     = []string{"Lisbon", "Osaka", "Denver", "Nairobi", "Tallinn", "Quito", "Perth", "Bergen"}
	words      = strings.Fields(`lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod
		tempor incididunt ut labore et dolore magna aliqua enim ad minim veniam quis nostrud
		exercitation ullamco laboris nisi aliquip ex ea commodo consequat`)
)

// Generator produces fake rows from its random source.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

func New(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng, now: time.Now}
}

func (g *Generator) pick(xs []string) string { return xs[g.rng.IntN(len(xs))] }

func (g *Generator) sentence(n int) string {
	ws := make([]string, n)
	for i := range ws {
		ws[i] = g.pick(words)
	}
	s := strings.Join(ws, " ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// past returns a moment within the last year.
func (g *Generator) past() time.Time {
	return g.now().UTC().Add(-time.Duration(g.rng.Int64N(int64(365 * 24 * time.Hour))))
}

func (g *Generator) user(cost int) (*model.User, error) {
	first, last := g.pick(firstNames), g.pick(lastNames)
	n := g.rng.IntN(1000)
	u := &model.User{
		Username:  fmt.Sprintf("%s.%s%d", first, last, n),
		Confirmed: true,
		Name:      strings.ToUpper(first[:1]) + first[1:] + " " + strings.ToUpper(last[:1]) + last[1:],
		Location:  g.pick(cities),
		AboutMe:   g.sentence(8),
	}
	u.SetEmail(fmt.Sprintf("%s.%s%d@example.com", first, last, n))
	if err := u.SetPassword("password", cost); err != nil {
		return nil, err
	}
	u.MemberSince = g.past()
	u.LastSeen = u.MemberSince
	return u, nil
}

// Users inserts count confirmed users. A generated email or username that
// already exists rolls back that user and another one is drawn. It gives
// up after count*10 attempts and reports how many users were created.
func (g *Generator) Users(ctx context.Context, store *repository.Store, count, cost int) (int, error) {
	created := 0
	for attempts := 0; created < count && attempts < count*10; attempts++ {
		u, err := g.user(cost)
		if err != nil {
			return created, err
		}
		if err := store.CreateUser(ctx, u, ""); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				logger.Debugf("fake: skipping duplicate %s", u.Username)
				continue
			}
			return created, err
		}
		created++
	}
	if created < count {
		return created, fmt.Errorf("fake: created %d of %d users", created, count)
	}
	return created, nil
}

// Posts attaches count posts to randomly chosen existing users.
func (g *Generator) Posts(ctx context.Context, store *repository.Store, count int) (int, error) {
	users, err := store.Users.Count(ctx)
	if err != nil {
		return 0, err
	}
	if users == 0 {
		return 0, errors.New("fake: no users to write posts")
	}
	for i := 0; i < count; i++ {
		author, err := store.Users.Nth(ctx, g.rng.IntN(users))
		if err != nil {
			return i, err
		}
		paragraphs := make([]string, 1+g.rng.IntN(3))
		for j := range paragraphs {
			paragraphs[j] = g.sentence(5 + g.rng.IntN(15))
		}
		p, err := model.NewPost(author.ID, strings.Join(paragraphs, "\n\n"), g.past())
		if err != nil {
			return i, err
		}
		if err := store.Posts.Create(ctx, p); err != nil {
			return i, err
		}
	}
	return count, nil
}

// Users and Posts with a randomly seeded generator.
func Users(ctx context.Context, store *repository.Store, count, cost int) (int, error) {
	return New(nil).Users(ctx, store, count, cost)
}

func Posts(ctx context.Context, store *repository.Store, count int) (int, error) {
	return New(nil).Posts(ctx, store, count)
}
