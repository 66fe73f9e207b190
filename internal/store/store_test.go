package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kilnworks-backend/internal/db"
	"kilnworks-backend/internal/firing"
	"kilnworks-backend/internal/model"
)

const studio = "studio-1"

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteDB returns a migrated in-memory database private to the test.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

func seedKiln(t *testing.T, s Store) *model.Kiln {
	t.Helper()
	kiln := &model.Kiln{
		StudioID: studio,
		Name:     "Big Blue",
		Type:     model.KilnTypeElectric,
		MaxTemp:  2350,
		Specifications: datatypes.NewJSONType(model.Specifications{
			Electric: &model.ElectricSpec{Voltage: 240, Amperage: 48, Phase: 1, ElementCount: 6},
		}),
	}
	require.NoError(t, s.CreateKiln(context.Background(), kiln))
	return kiln
}

func TestGormStore_ListKilns_Mock(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "kilns" WHERE studio_id = $1 ORDER BY id`)).
		WithArgs(studio).
		WillReturnRows(sqlmock.NewRows([]string{"id", "studio_id", "name", "type", "status", "total_firings"}).
			AddRow(1, studio, "Big Blue", "electric", "available", 12).
			AddRow(2, studio, "Anagama", "wood", "maintenance", 3))

	kilns, err := s.ListKilns(context.Background(), studio)
	require.NoError(t, err)
	require.Len(t, kilns, 2)
	assert.Equal(t, model.KilnTypeWood, kilns[1].Type)
	assert.Equal(t, model.KilnStatusMaintenance, kilns[1].StoredStatus)
	assert.Equal(t, 12, kilns[0].TotalFirings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ListFirings_MockError(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "firings" WHERE studio_id = $1`)).
		WithArgs(studio).
		WillReturnError(fmt.Errorf("connection reset"))

	_, err := s.ListFirings(context.Background(), studio)
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreateKiln(t *testing.T) {
	s := NewGormStore(newSQLiteDB(t), zap.NewNop())
	kiln := seedKiln(t, s)
	assert.NotZero(t, kiln.ID)
	assert.Equal(t, model.KilnStatusAvailable, kiln.StoredStatus)

	kilns, err := s.ListKilns(context.Background(), studio)
	require.NoError(t, err)
	require.Len(t, kilns, 1)
	spec := kilns[0].Specifications.Data()
	require.NotNil(t, spec.Electric)
	assert.Equal(t, 240, spec.Electric.Voltage)

	err = s.CreateKiln(context.Background(), &model.Kiln{StudioID: studio, Name: "x", Type: "plasma"})
	assert.ErrorIs(t, err, firing.ErrInvalidRequest)

	err = s.CreateKiln(context.Background(), &model.Kiln{
		StudioID:       studio,
		Name:           "mismatch",
		Type:           model.KilnTypeGas,
		Specifications: datatypes.NewJSONType(model.Specifications{Raku: &model.RakuSpec{Fuel: "propane"}}),
	})
	assert.ErrorIs(t, err, firing.ErrInvalidRequest)

	other, err := s.ListKilns(context.Background(), "studio-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGormStore_CreateFiring(t *testing.T) {
	s := NewGormStore(newSQLiteDB(t), zap.NewNop())
	ctx := context.Background()
	kiln := seedKiln(t, s)
	now := time.Now().UTC()

	scheduled := &model.Firing{ID: "s1", KilnID: kiln.ID, Name: "Glaze", Status: model.FiringStatusScheduled, ScheduledStart: &now, RackNumbers: []string{"A1"}}
	_, err := s.CreateFiring(ctx, studio, scheduled)
	require.NoError(t, err)

	// Another scheduled firing never conflicts.
	_, err = s.CreateFiring(ctx, studio, &model.Firing{ID: "s2", KilnID: kiln.ID, Name: "Bisque", Status: model.FiringStatusScheduled})
	require.NoError(t, err)

	_, err = s.CreateFiring(ctx, studio, &model.Firing{ID: "a1", KilnID: kiln.ID, Name: "Quick", Status: model.FiringStatusLoading, ActualStart: &now})
	require.NoError(t, err)

	_, err = s.CreateFiring(ctx, studio, &model.Firing{ID: "a2", KilnID: kiln.ID, Name: "Second", Status: model.FiringStatusLoading, ActualStart: &now})
	assert.ErrorIs(t, err, firing.ErrKilnBusy)

	_, err = s.CreateFiring(ctx, studio, &model.Firing{ID: "x", KilnID: 999, Name: "Nowhere", Status: model.FiringStatusLoading})
	assert.ErrorIs(t, err, firing.ErrNotFound)

	_, err = s.CreateFiring(ctx, "studio-2", &model.Firing{ID: "y", KilnID: kiln.ID, Name: "Wrong studio", Status: model.FiringStatusScheduled})
	assert.ErrorIs(t, err, firing.ErrNotFound)

	firings, err := s.ListFirings(ctx, studio)
	require.NoError(t, err)
	require.Len(t, firings, 3)
	for _, f := range firings {
		if f.ID == "s1" {
			assert.Equal(t, []string{"A1"}, []string(f.RackNumbers))
			assert.Equal(t, studio, f.StudioID)
		}
	}
}

func TestGormStore_UniqueIndexBacksUpTheCheck(t *testing.T) {
	gormDB := newSQLiteDB(t)
	s := NewGormStore(gormDB, zap.NewNop())
	kiln := seedKiln(t, s)

	require.NoError(t, gormDB.Create(&model.Firing{ID: "a1", StudioID: studio, KilnID: kiln.ID, Name: "one", Status: model.FiringStatusFiring}).Error)
	err := gormDB.Create(&model.Firing{ID: "a2", StudioID: studio, KilnID: kiln.ID, Name: "two", Status: model.FiringStatusCooling}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Terminal firings are outside the index.
	require.NoError(t, gormDB.Create(&model.Firing{ID: "c1", StudioID: studio, KilnID: kiln.ID, Name: "old", Status: model.FiringStatusCompleted}).Error)
	require.NoError(t, gormDB.Create(&model.Firing{ID: "c2", StudioID: studio, KilnID: kiln.ID, Name: "older", Status: model.FiringStatusCompleted}).Error)
}

func TestGormStore_UpdateFiring(t *testing.T) {
	s := NewGormStore(newSQLiteDB(t), zap.NewNop())
	ctx := context.Background()
	kiln := seedKiln(t, s)
	now := time.Now().UTC().Truncate(time.Second)

	_, err := s.CreateFiring(ctx, studio, &model.Firing{ID: "f1", KilnID: kiln.ID, Name: "Glaze", Status: model.FiringStatusScheduled})
	require.NoError(t, err)
	_, err = s.CreateFiring(ctx, studio, &model.Firing{ID: "f2", KilnID: kiln.ID, Name: "Bisque", Status: model.FiringStatusScheduled})
	require.NoError(t, err)

	updated, err := s.UpdateFiring(ctx, studio, "f1", firing.FiringPatch{
		ExpectedStatus: model.FiringStatusScheduled,
		Status:         model.FiringStatusLoading,
		ActualStart:    &now,
	})
	require.NoError(t, err)
	assert.Equal(t, model.FiringStatusLoading, updated.Status)
	require.NotNil(t, updated.ActualStart)
	assert.True(t, now.Equal(*updated.ActualStart))

	t.Run("stale expected status", func(t *testing.T) {
		_, err := s.UpdateFiring(ctx, studio, "f1", firing.FiringPatch{
			ExpectedStatus: model.FiringStatusScheduled,
			Status:         model.FiringStatusLoading,
		})
		assert.ErrorIs(t, err, firing.ErrInvalidTransition)
	})

	t.Run("second firing cannot become active", func(t *testing.T) {
		_, err := s.UpdateFiring(ctx, studio, "f2", firing.FiringPatch{
			ExpectedStatus: model.FiringStatusScheduled,
			Status:         model.FiringStatusLoading,
		})
		assert.ErrorIs(t, err, firing.ErrKilnBusy)
	})

	t.Run("active firing may keep progressing", func(t *testing.T) {
		f, err := s.UpdateFiring(ctx, studio, "f1", firing.FiringPatch{
			ExpectedStatus: model.FiringStatusLoading,
			Status:         model.FiringStatusFiring,
		})
		require.NoError(t, err)
		assert.Equal(t, model.FiringStatusFiring, f.Status)
	})

	t.Run("unknown firing", func(t *testing.T) {
		_, err := s.UpdateFiring(ctx, studio, "nope", firing.FiringPatch{ExpectedStatus: model.FiringStatusLoading, Status: model.FiringStatusFiring})
		assert.ErrorIs(t, err, firing.ErrNotFound)
		_, err = s.UpdateFiring(ctx, "studio-2", "f1", firing.FiringPatch{ExpectedStatus: model.FiringStatusFiring, Status: model.FiringStatusCooling})
		assert.ErrorIs(t, err, firing.ErrNotFound)
	})
}

func TestGormStore_UpdateKiln(t *testing.T) {
	s := NewGormStore(newSQLiteDB(t), zap.NewNop())
	ctx := context.Background()
	kiln := seedKiln(t, s)
	now := time.Now().UTC().Truncate(time.Second)

	capacity, shelves := 64, 4
	updated, err := s.UpdateKiln(ctx, studio, kiln.ID, firing.KilnPatch{
		Capacity:   &capacity,
		ShelfCount: &shelves,
		ShelfConfiguration: []model.Shelf{
			{Level: 1, Height: 8, Capacity: 16},
			{Level: 2, Height: 8, Capacity: 16},
			{Level: 3, Height: 8, Capacity: 16},
			{Level: 4, Height: 8, Capacity: 16},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 64, updated.Capacity)
	assert.Equal(t, 4, updated.ShelfCount)
	assert.Len(t, updated.ShelfConfiguration, 4)

	for i := 0; i < 2; i++ {
		updated, err = s.UpdateKiln(ctx, studio, kiln.ID, firing.KilnPatch{IncrementTotalFirings: true, LastFired: &now})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, updated.TotalFirings)
	require.NotNil(t, updated.LastFired)
	assert.True(t, now.Equal(*updated.LastFired))
	assert.Equal(t, 64, updated.Capacity, "untouched fields survive")

	_, err = s.UpdateKiln(ctx, "studio-2", kiln.ID, firing.KilnPatch{IncrementTotalFirings: true})
	assert.ErrorIs(t, err, firing.ErrNotFound)
}

func TestGormStore_CompleteFiring(t *testing.T) {
	s := NewGormStore(newSQLiteDB(t), zap.NewNop())
	ctx := context.Background()
	kiln := seedKiln(t, s)
	now := time.Now().UTC().Truncate(time.Second)

	f, err := s.CreateFiring(ctx, studio, &model.Firing{ID: "f1", StudioID: studio, KilnID: kiln.ID, Name: "Bisque", Status: model.FiringStatusCooling})
	require.NoError(t, err)

	patch := firing.FiringPatch{ExpectedStatus: model.FiringStatusCooling, Status: model.FiringStatusCompleted, ActualEnd: &now}
	kilnPatch := firing.KilnPatch{IncrementTotalFirings: true, LastFired: &now}

	updated, k, err := s.CompleteFiring(ctx, studio, f.ID, patch, kilnPatch)
	require.NoError(t, err)
	assert.Equal(t, model.FiringStatusCompleted, updated.Status)
	assert.Equal(t, 1, k.TotalFirings)
	require.NotNil(t, k.LastFired)
	assert.True(t, now.Equal(*k.LastFired))

	_, _, err = s.CompleteFiring(ctx, studio, f.ID, patch, kilnPatch)
	assert.ErrorIs(t, err, firing.ErrInvalidTransition)
	kilns, err := s.ListKilns(ctx, studio)
	require.NoError(t, err)
	assert.Equal(t, 1, kilns[0].TotalFirings, "a rejected completion does not count")
}

func TestGormStore_CompleteFiring_RollsBack(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, zap.NewNop())
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "firings" WHERE id = \$1 AND studio_id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "studio_id", "kiln_id", "status"}).
			AddRow("f1", studio, 7, "cooling"))
	mock.ExpectExec(`UPDATE "firings" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "firings" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "studio_id", "kiln_id", "status"}).
			AddRow("f1", studio, 7, "completed"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "kilns"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	_, _, err := s.CompleteFiring(context.Background(), studio, "f1",
		firing.FiringPatch{ExpectedStatus: model.FiringStatusCooling, Status: model.FiringStatusCompleted, ActualEnd: &now},
		firing.KilnPatch{IncrementTotalFirings: true, LastFired: &now})
	assert.ErrorIs(t, err, firing.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ConcurrentStartsBookOnce(t *testing.T) {
	s := NewGormStore(newSQLiteDB(t), zap.NewNop())
	kiln := seedKiln(t, s)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateFiring(context.Background(), studio, &model.Firing{
				ID:     fmt.Sprintf("q%d", i),
				KilnID: kiln.ID,
				Name:   "quick",
				Status: model.FiringStatusLoading,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, firing.ErrKilnBusy)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestGormStore_Subscriptions(t *testing.T) {
	s := NewGormStore(newSQLiteDB(t), zap.NewNop())
	ctx := context.Background()
	k1 := seedKiln(t, s)
	k2 := seedKiln(t, s)
	foreign := &model.Kiln{StudioID: "studio-2", Name: "Theirs", Type: model.KilnTypeGas}
	require.NoError(t, s.CreateKiln(ctx, foreign))

	sub := &model.KilnSubscription{Endpoint: "https://push.example/abc", StudioID: studio, P256DH: "key", Auth: "auth"}
	require.NoError(t, s.PutSubscription(ctx, sub, []int64{k1.ID, foreign.ID}))

	got, err := s.GetSubscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	require.Len(t, got.Kilns, 1)
	assert.Equal(t, k1.ID, got.Kilns[0].ID)

	subs, err := s.SubscriptionsForKiln(ctx, k1.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	// Replacing moves the mapping.
	require.NoError(t, s.PutSubscription(ctx, &model.KilnSubscription{Endpoint: sub.Endpoint, StudioID: studio, P256DH: "key2", Auth: "auth"}, []int64{k2.ID}))
	subs, err = s.SubscriptionsForKiln(ctx, k1.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
	subs, err = s.SubscriptionsForKiln(ctx, k2.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "key2", subs[0].P256DH)

	// Another studio cannot take the endpoint over.
	err = s.PutSubscription(ctx, &model.KilnSubscription{Endpoint: sub.Endpoint, StudioID: "studio-2", P256DH: "stolen", Auth: "auth"}, []int64{foreign.ID})
	assert.ErrorIs(t, err, firing.ErrNotFound)
	got, err = s.GetSubscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	assert.Equal(t, studio, got.StudioID)
	assert.Equal(t, "key2", got.P256DH)
	require.Len(t, got.Kilns, 1)
	assert.Equal(t, k2.ID, got.Kilns[0].ID)

	require.NoError(t, s.DeleteSubscription(ctx, sub.Endpoint))
	_, err = s.GetSubscription(ctx, sub.Endpoint)
	assert.ErrorIs(t, err, firing.ErrNotFound)
}
