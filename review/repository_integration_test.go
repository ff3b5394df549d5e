package review

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

// TestReview_Integration runs the cascade, history and publication gate
// against a real PostgreSQL given by DATABASE_URL.
func TestReview_Integration(t *testing.T) {
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

	person := fmt.Sprintf("REV%09d", time.Now().UnixNano()%1_000_000_000)
	svc := NewService(pool, nil)

	before, err := svc.Publication(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM prevalidaciones WHERE rfc = $1`, person)
		pool.Exec(ctx2, `DELETE FROM prevalidaciones_historial WHERE rfc = $1`, person)
		pool.Exec(ctx2, `DELETE FROM solventaciones WHERE rfc = $1`, person)
		pool.Exec(ctx2, `UPDATE publicacion SET publicado = $1 WHERE id = 1`, before.Published)
	})

	res, err := svc.SetPrevalidation(ctx, admin, Decision{
		PersonID:      person,
		EntityKey:     "E_B",
		State:         StateResolved,
		CatalogReason: "Reintegro",
	}, []string{"E_A", "E_B", "E_C"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.RowsAffected)

	_, err = svc.SetPrevalidation(ctx, admin, Decision{PersonID: person, EntityKey: "E_A"}, []string{"E_A", "E_B", "E_C"})
	require.NoError(t, err)

	history, err := svc.History(ctx, person)
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, ActionPrevalidate, history[0].Action)
	assert.Equal(t, ActionCancelResolution, history[5].Action)
	assert.Equal(t, StateResolved, history[5].PreviousState)

	pre, err := svc.Prevalidations(ctx, person)
	require.NoError(t, err)
	p, ok := pre.Get(person, "E_C")
	require.True(t, ok)
	assert.Equal(t, StateUnassessed, p.State)
	assert.Empty(t, p.CatalogReason)

	n, err := svc.SetResolution(ctx, admin, Decision{PersonID: person, EntityKey: "E_A", State: StateResolved, CatalogReason: "Reintegro"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = svc.SetResolution(ctx, admin, Decision{PersonID: person, EntityKey: "E_A", State: StateUnresolved, CatalogReason: "Sin soporte"})
	require.NoError(t, err)

	resolutions, err := svc.Resolutions(ctx, person)
	require.NoError(t, err)
	r, ok := resolutions.Get(person, "E_A")
	require.True(t, ok)
	assert.Equal(t, StateUnresolved, r.State)

	require.NoError(t, svc.PublishFindings(ctx, admin))
	published, err := svc.IsPublished(ctx)
	require.NoError(t, err)
	assert.True(t, published)

	require.NoError(t, svc.UnpublishFindings(ctx, admin))
	published, err = svc.IsPublished(ctx)
	require.NoError(t, err)
	assert.False(t, published)
}
