package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikelady/showcase/internal/services"
)

var publicationRowColumns = []string{
	"id", "order_id", "external_post_id", "permalink", "image_url", "caption",
	"publish_path", "state", "is_simulated", "failure_reason", "takedown_reason", "created_by",
	"published_at", "taken_down_at", "deleted", "deleted_at", "created_at", "updated_at",
}

func publishedRow(id, orderID string, now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(publicationRowColumns).
		AddRow(id, orderID, "1789", "https://www.instagram.com/p/Abc/", "https://lh3.googleusercontent.com/d/x", "caption",
			"automated", "published", false, "", "", "admin",
			&now, nil, false, nil, now, now)
}

func TestPublicationStore_NewPublicationStoreWithDB(t *testing.T) {
	mock := NewMockPool(t)
	require.NotNil(t, NewPublicationStoreWithDB(mock))
}

func TestPublicationStore_CreatePublication_Success(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	now := time.Now().Truncate(time.Microsecond)
	mock.ExpectQuery(`INSERT INTO publications`).
		WithArgs("order-1", "1789", "https://www.instagram.com/p/Abc/", "https://lh3.googleusercontent.com/d/x", "caption",
			"automated", "published", false, "", "", "admin", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(publishedRow("pub-1", "order-1", now))

	saved, err := store.CreatePublication(context.Background(), &services.Publication{
		OrderID:        "order-1",
		ExternalPostID: "1789",
		Permalink:      "https://www.instagram.com/p/Abc/",
		ImageURL:       "https://lh3.googleusercontent.com/d/x",
		Caption:        "caption",
		Path:           services.PathAutomated,
		State:          services.StatePublished,
		CreatedBy:      "admin",
		PublishedAt:    &now,
	})

	require.NoError(t, err)
	assert.Equal(t, "pub-1", saved.ID)
	assert.Equal(t, services.StatePublished, saved.State)
	assert.Equal(t, services.PathAutomated, saved.Path)
	require.NotNil(t, saved.PublishedAt)
	assert.Equal(t, now, *saved.PublishedAt)
	assert.Nil(t, saved.TakenDownAt)
	assert.False(t, saved.Deleted)
}

func TestPublicationStore_CreatePublication_Duplicate(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	mock.ExpectQuery(`INSERT INTO publications`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uniq_publications_active_order"})

	saved, err := store.CreatePublication(context.Background(), &services.Publication{
		OrderID: "order-1",
		Path:    services.PathManual,
		State:   services.StatePendingManual,
	})

	assert.ErrorIs(t, err, services.ErrDuplicatePublication)
	assert.Nil(t, saved)
}

func TestPublicationStore_CreatePublication_CheckViolation(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	mock.ExpectQuery(`INSERT INTO publications`).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "publications_published_at_check"})

	_, err := store.CreatePublication(context.Background(), &services.Publication{
		OrderID: "order-1",
		Path:    services.PathAutomated,
		State:   services.StatePublished,
	})

	assert.ErrorIs(t, err, services.ErrInvalidTransition)
}

func TestPublicationStore_CreatePublication_RejectsDraft(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	_, err := store.CreatePublication(context.Background(), &services.Publication{
		OrderID: "order-1",
		State:   services.StateDraft,
	})

	assert.ErrorIs(t, err, services.ErrInvalidTransition)
}

func TestPublicationStore_GetPublication(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	now := time.Now().Truncate(time.Microsecond)
	mock.ExpectQuery(`SELECT .* FROM publications WHERE id::text = \$1`).
		WithArgs("pub-1").
		WillReturnRows(publishedRow("pub-1", "order-1", now))

	p, err := store.GetPublication(context.Background(), "pub-1")

	require.NoError(t, err)
	assert.Equal(t, "order-1", p.OrderID)
	assert.Equal(t, "1789", p.ExternalPostID)
}

func TestPublicationStore_GetPublication_NotFound(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	mock.ExpectQuery(`SELECT .* FROM publications WHERE id::text = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	p, err := store.GetPublication(context.Background(), "missing")

	assert.ErrorIs(t, err, services.ErrPublicationNotFound)
	assert.Nil(t, p)
}

func TestPublicationStore_GetActivePublicationByOrder(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	now := time.Now().Truncate(time.Microsecond)
	mock.ExpectQuery(`WHERE order_id = \$1 AND NOT deleted`).
		WithArgs("order-1").
		WillReturnRows(publishedRow("pub-1", "order-1", now))
	mock.ExpectQuery(`WHERE order_id = \$1 AND NOT deleted`).
		WithArgs("order-2").
		WillReturnError(pgx.ErrNoRows)

	p, err := store.GetActivePublicationByOrder(context.Background(), "order-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "pub-1", p.ID)

	p, err = store.GetActivePublicationByOrder(context.Background(), "order-2")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPublicationStore_UpdatePublicationState_Success(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	now := time.Now().Truncate(time.Microsecond)
	mock.ExpectQuery(`UPDATE publications`).
		WithArgs("published", "Abc123", "https://www.instagram.com/p/Abc123/", "", "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "pub-1", "pendingManual").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(now))

	p := &services.Publication{
		ID:             "pub-1",
		State:          services.StatePublished,
		ExternalPostID: "Abc123",
		Permalink:      "https://www.instagram.com/p/Abc123/",
		PublishedAt:    &now,
	}
	err := store.UpdatePublicationState(context.Background(), p, services.StatePendingManual)

	require.NoError(t, err)
	assert.Equal(t, now, p.UpdatedAt)
}

func TestPublicationStore_UpdatePublicationState_LostRace(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	mock.ExpectQuery(`UPDATE publications`).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("pub-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.UpdatePublicationState(context.Background(),
		&services.Publication{ID: "pub-1", State: services.StateFailed}, services.StatePendingManual)

	assert.ErrorIs(t, err, services.ErrInvalidTransition)
}

func TestPublicationStore_UpdatePublicationState_NotFound(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	mock.ExpectQuery(`UPDATE publications`).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("pub-9").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.UpdatePublicationState(context.Background(),
		&services.Publication{ID: "pub-9", State: services.StateTakenDown}, services.StatePublished)

	assert.ErrorIs(t, err, services.ErrPublicationNotFound)
}

func TestPublicationStore_SetPublicationDeleted(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	now := time.Now()
	mock.ExpectExec(`UPDATE publications SET deleted = \$1`).
		WithArgs(true, &now, "pub-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SetPublicationDeleted(context.Background(), "pub-1", &now))
}

func TestPublicationStore_SetPublicationDeleted_RestoreConflict(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	mock.ExpectExec(`UPDATE publications SET deleted = \$1`).
		WithArgs(false, pgxmock.AnyArg(), "pub-1").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.SetPublicationDeleted(context.Background(), "pub-1", nil)
	assert.ErrorIs(t, err, services.ErrDuplicatePublication)
}

func TestPublicationStore_SetPublicationDeleted_NotFound(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	mock.ExpectExec(`UPDATE publications SET deleted = \$1`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetPublicationDeleted(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, services.ErrPublicationNotFound)
}

func TestPublicationStore_ListPublications_Filters(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	now := time.Now().Truncate(time.Microsecond)
	rows := publishedRow("pub-2", "order-1", now)
	rows.AddRow("pub-1", "order-1", "", "", "https://lh3.googleusercontent.com/d/y", "",
		"manual", "published", false, "", "", "", &now, nil, true, &now, now, now)

	mock.ExpectQuery(`FROM publications WHERE order_id = \$1 AND state = \$2 ORDER BY created_at DESC, id LIMIT \$3 OFFSET \$4`).
		WithArgs("order-1", "published", 10, 5).
		WillReturnRows(rows)

	list, err := store.ListPublications(context.Background(), services.ListFilter{
		OrderID:        "order-1",
		State:          services.StatePublished,
		IncludeDeleted: true,
		Limit:          10,
		Offset:         5,
	})

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pub-2", list[0].ID)
	assert.True(t, list[1].Deleted)
	assert.NotNil(t, list[1].DeletedAt)
}

func TestPublicationStore_ListPublications_DefaultsExcludeDeleted(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	mock.ExpectQuery(`FROM publications WHERE NOT deleted ORDER BY created_at DESC, id LIMIT \$1 OFFSET \$2`).
		WithArgs(services.DefaultListLimit, 0).
		WillReturnRows(pgxmock.NewRows(publicationRowColumns))

	list, err := store.ListPublications(context.Background(), services.ListFilter{})

	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPublicationStore_ListPublications_QueryError(t *testing.T) {
	mock := NewMockPool(t)
	store := NewPublicationStoreWithDB(mock)

	mock.ExpectQuery(`FROM publications`).WillReturnError(errors.New("connection reset"))

	_, err := store.ListPublications(context.Background(), services.ListFilter{})
	assert.Error(t, err)
}
