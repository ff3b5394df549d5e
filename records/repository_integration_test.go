package records

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrollaudit/db"
)

// TestStore_Integration connects to a real PostgreSQL via DATABASE_URL and
// verifies upsert identity and archive de-duplication end to end.
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = db.Migrate(ctx, pool)
	require.NoError(t, err)

	person := fmt.Sprintf("ITS%09d", time.Now().UnixNano()%1_000_000_000)
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM registros_laborales WHERE rfc = $1`, person)
		pool.Exec(ctx2, `DELETE FROM laboral WHERE rfc = $1`, person)
	})

	hire := time.Date(2023, 1, 16, 0, 0, 0, 0, time.UTC)
	rec := Record{
		PersonID:     person,
		EntityKey:    "ENTE_1_2",
		FullName:     "Persona de Prueba",
		Position:     "Analista",
		HireDate:     &hire,
		Amount:       12345.5,
		Periods:      NewPeriodSet(1, 2),
		PeriodValues: map[Period]string{1: "5000", 2: "5000"},
	}

	store := NewStore(pool, nil)

	res, err := store.Upsert(ctx, []Record{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	first, err := store.ListByPerson(ctx, person)
	require.NoError(t, err)
	require.Len(t, first, 1)

	res, err = store.Upsert(ctx, []Record{rec})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 1, res.Updated)

	second, err := store.ListByPerson(ctx, person)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].LoadedAt, second[0].LoadedAt, "identity is preserved across re-ingestion")
	assert.True(t, second[0].UpdatedAt.After(second[0].LoadedAt))
	assert.Equal(t, rec.Periods, second[0].Periods)
	assert.Equal(t, "5000", second[0].PeriodValues[2])
	require.NotNil(t, second[0].HireDate)
	assert.True(t, hire.Equal(*second[0].HireDate))
	assert.Nil(t, second[0].TerminationDate)

	counts, err := store.CountWorkersPerEntity(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts["ENTE_1_2"], 1)

	entry := ArchiveEntry{Category: CategoryCrossReference, PersonID: person, Payload: map[string]any{"entes": []string{"E1", "E2"}}}
	ar, err := store.ArchiveIfNew(ctx, []ArchiveEntry{entry})
	require.NoError(t, err)
	assert.Equal(t, ArchiveResult{New: 1}, ar)

	ar, err = store.ArchiveIfNew(ctx, []ArchiveEntry{entry})
	require.NoError(t, err)
	assert.Equal(t, ArchiveResult{Duplicates: 1}, ar)

	list, total, err := store.ListArchive(ctx, ArchiveFilter{PersonID: person})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, CategoryCrossReference, list[0].Category)
}
