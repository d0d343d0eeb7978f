package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Kosench/tinylink/internal/errors"
	"github.com/Kosench/tinylink/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runLinkRepositoryContract проверяет общий контракт хранилища для любого бэкенда.
// newRepo должен возвращать пустое хранилище.
func runLinkRepositoryContract(t *testing.T, newRepo func(t *testing.T) LinkRepository) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		repo := newRepo(t)
		before := time.Now().Add(-time.Second)

		created, err := repo.Create(ctx, "docs123", "https://example.com/a")
		require.NoError(t, err)

		assert.NotZero(t, created.ID)
		assert.Equal(t, "docs123", created.ShortCode)
		assert.Equal(t, "https://example.com/a", created.TargetURL)
		assert.Zero(t, created.TotalClicks)
		assert.Nil(t, created.LastClickedTime)
		assert.True(t, created.CreatedAt.After(before), "created_at %s is too old", created.CreatedAt)

		found, err := repo.FindByCode(ctx, "docs123")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, created.TargetURL, found.TargetURL)
		assert.Nil(t, found.LastClickedTime)
		assert.WithinDuration(t, created.CreatedAt, found.CreatedAt, time.Millisecond)
	})

	t.Run("find unknown code", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.FindByCode(ctx, "nothere")
		assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
	})

	t.Run("duplicate code conflicts", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Create(ctx, "dup1234", "https://example.com/1")
		require.NoError(t, err)

		_, err = repo.Create(ctx, "dup1234", "https://example.com/2")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrShortCodeExists)
		require.NotNil(t, apperrors.GetConflictError(err))
		assert.Equal(t, "dup1234", apperrors.GetConflictError(err).ShortCode)

		// первая запись не перезаписана
		found, err := repo.FindByCode(ctx, "dup1234")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/1", found.TargetURL)
	})

	t.Run("concurrent creates with same code", func(t *testing.T) {
		repo := newRepo(t)

		const workers = 20
		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			conflicts atomic.Int32
		)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Create(ctx, "race123", "https://example.com/race")
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, apperrors.ErrShortCodeExists):
					conflicts.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, successes.Load())
		assert.EqualValues(t, workers-1, conflicts.Load())
	})

	t.Run("register click", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Create(ctx, "click12", "https://example.com/c")
		require.NoError(t, err)

		clicked, err := repo.RegisterClick(ctx, created.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, clicked.TotalClicks)
		require.NotNil(t, clicked.LastClickedTime)
		assert.False(t, clicked.LastClickedTime.Before(clicked.CreatedAt))

		clicked, err = repo.RegisterClick(ctx, created.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, clicked.TotalClicks)

		found, err := repo.FindByCode(ctx, "click12")
		require.NoError(t, err)
		assert.EqualValues(t, 2, found.TotalClicks)
		require.NotNil(t, found.LastClickedTime)
	})

	t.Run("register click on unknown id", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.RegisterClick(ctx, 987654)
		assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
	})

	t.Run("concurrent clicks are not lost", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Create(ctx, "hot1234", "https://example.com/hot")
		require.NoError(t, err)

		const clicks = 50
		var wg sync.WaitGroup
		for i := 0; i < clicks; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.RegisterClick(ctx, created.ID); err != nil {
					t.Errorf("RegisterClick() error = %v", err)
				}
			}()
		}
		wg.Wait()

		found, err := repo.FindByCode(ctx, "hot1234")
		require.NoError(t, err)
		assert.EqualValues(t, clicks, found.TotalClicks)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Create(ctx, "gone123", "https://example.com/gone")
		require.NoError(t, err)

		require.NoError(t, repo.DeleteByCode(ctx, "gone123"))

		_, err = repo.FindByCode(ctx, "gone123")
		assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)

		err = repo.DeleteByCode(ctx, "gone123")
		assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
	})

	t.Run("code is reusable after delete", func(t *testing.T) {
		repo := newRepo(t)

		first, err := repo.Create(ctx, "again12", "https://example.com/1")
		require.NoError(t, err)
		require.NoError(t, repo.DeleteByCode(ctx, "again12"))

		second, err := repo.Create(ctx, "again12", "https://example.com/2")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		_, err = repo.RegisterClick(ctx, first.ID)
		assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := newRepo(t)

		links, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, links)
		assert.Empty(t, links)

		for _, code := range []string{"first12", "second1", "third12"} {
			_, err := repo.Create(ctx, code, "https://example.com/"+code)
			require.NoError(t, err)
		}

		links, err = repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"third12", "second1", "first12"}, codesOf(links))
	})

	t.Run("ping", func(t *testing.T) {
		repo := newRepo(t)
		assert.NoError(t, repo.Ping(ctx))
	})
}

func codesOf(links []*model.Link) []string {
	codes := make([]string, 0, len(links))
	for _, link := range links {
		codes = append(codes, link.ShortCode)
	}
	return codes
}
