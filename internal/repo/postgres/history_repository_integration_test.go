//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/leasepull/internal/domain"
	pgrepo "github.com/Gunvolt24/leasepull/internal/repo/postgres"
	"github.com/Gunvolt24/leasepull/internal/testutil"
)

func TestHistoryRepo_SaveListRecent_TC(t *testing.T) {
	// длинный контекст — только на подъём контейнера
	ctxStart, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelStart()

	pg, stopPG, err := testutil.StartPostgresTC(ctxStart)
	require.NoError(t, err)
	defer func() { _ = stopPG(context.Background()) }()

	require.NoError(t, testutil.ApplyMigrationsGoose(pg.DSN))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgrepo.NewPool(ctx, pg.DSN, 4)
	require.NoError(t, err)
	defer pool.Close()

	repo := pgrepo.NewHistoryRepository(pool)

	base := time.Now().UTC().Truncate(time.Millisecond)
	recs := testutil.MakeDeliveryHistory("m-1", base,
		domain.StatusHandlerFailed, domain.StatusAbandonedExpired, domain.StatusAcked)
	for i := range recs {
		require.NoError(t, repo.Save(ctx, &recs[i]))
	}
	other := testutil.MakeDeliveryHistory("m-2", base.Add(time.Minute), domain.StatusAckLost)
	require.NoError(t, repo.Save(ctx, &other[0]))

	got, err := repo.ListByMessage(ctx, "m-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, domain.StatusAcked, got[0].Status, "newest first")
	require.Equal(t, 3, got[0].Attempt)
	require.True(t, recs[2].OccurredAt.Equal(got[0].OccurredAt))

	limited, err := repo.ListByMessage(ctx, "m-1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "m-2", recent[0].MessageID)

	none, err := repo.ListByMessage(ctx, "missing", 10)
	require.NoError(t, err)
	require.Empty(t, none)

	// Неизвестный статус отклоняет ограничение таблицы.
	bad := domain.DeliveryRecord{MessageID: "m-3", Consumer: "c", Status: "weird"}
	require.Error(t, repo.Save(ctx, &bad))
	require.Error(t, repo.Save(ctx, &domain.DeliveryRecord{}))
}

func TestHistoryRepo_SaveTwiceKeepsOneRow_TC(t *testing.T) {
	ctxStart, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelStart()

	pg, stopPG, err := testutil.StartPostgresTC(ctxStart)
	require.NoError(t, err)
	defer func() { _ = stopPG(context.Background()) }()

	require.NoError(t, testutil.ApplyMigrationsGoose(pg.DSN))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgrepo.NewPool(ctx, pg.DSN, 2)
	require.NoError(t, err)
	defer pool.Close()

	repo := pgrepo.NewHistoryRepository(pool)

	// Одна и та же запись, прочитанная sink'ом дважды.
	rec := testutil.MakeDeliveryHistory("dup-1", time.Now().UTC().Truncate(time.Microsecond), domain.StatusAcked)[0]
	require.NoError(t, repo.Save(ctx, &rec))
	require.NoError(t, repo.Save(ctx, &rec))

	got, err := repo.ListByMessage(ctx, "dup-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Следующая попытка той же доставки — отдельная строка.
	next := rec
	next.Attempt++
	next.OccurredAt = rec.OccurredAt.Add(time.Second)
	require.NoError(t, repo.Save(ctx, &next))

	got, err = repo.ListByMessage(ctx, "dup-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
}
