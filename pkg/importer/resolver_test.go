package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/logging"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
)

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sundsvall := store.addMunicipality("Sundsvall")
	r := NewResolver(store.municipalityStore(), logging.NewNopLogger())

	t.Run("explicit id wins", func(t *testing.T) {
		m, err := r.Resolve(ctx, store, sundsvall.ID, "Timrå")
		require.NoError(t, err)
		assert.Equal(t, sundsvall.ID, m.ID)
	})

	t.Run("unknown id falls back to name", func(t *testing.T) {
		m, err := r.Resolve(ctx, store, "missing", " Sundsvall ")
		require.NoError(t, err)
		assert.Equal(t, sundsvall.ID, m.ID)
	})

	t.Run("unknown name is created", func(t *testing.T) {
		m, err := r.Resolve(ctx, store, "", "Timrå")
		require.NoError(t, err)
		assert.Equal(t, "Timrå", m.Name)
		assert.Len(t, store.municipalities, 2)

		again, err := r.Resolve(ctx, store, "", "Timrå")
		require.NoError(t, err)
		assert.Equal(t, m.ID, again.ID)
		assert.Len(t, store.municipalities, 2)
	})

	t.Run("nothing to go on", func(t *testing.T) {
		_, err := r.Resolve(ctx, store, "missing", "  ")
		var resolutionErr *ResolutionError
		require.ErrorAs(t, err, &resolutionErr)
		assert.True(t, IsPrecondition(err))
	})
}

func TestResolver_LookupNeverCreates(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store.municipalityStore(), logging.NewNopLogger())

	m, err := r.Lookup(context.Background(), store, "Ånge")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Empty(t, store.municipalities)

	m, err = r.Lookup(context.Background(), store, "")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestLedger_StartAndFinish(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := NewLedger(store.batchStore(), logging.NewNopLogger())
	l.now = func() time.Time { return fixedNow }

	batch, err := l.Start(ctx, store, StartBatch{
		MunicipalityID: "muni-1",
		FileNames:      []string{"a.json", "b.jsonl"},
		Mode:           models.ImportModeUpdate,
		ImportedBy:     "user-1",
		ImportedByName: "Anna",
		TotalRecords:   4,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, "a.json, b.jsonl", batch.FileName)
	assert.Equal(t, 2, batch.FileCount)
	assert.Equal(t, models.ImportStatusProcessing, batch.Status)
	assert.Equal(t, fixedNow, batch.CreatedAt)
	assert.NotNil(t, batch.Errors.Data)
	assert.Nil(t, batch.CompletedAt)

	require.NoError(t, l.Finish(ctx, store, batch, models.ImportStatusCompleted))
	stored := store.batches[batch.ID]
	assert.Equal(t, models.ImportStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, fixedNow, *stored.CompletedAt)
}

func TestLedger_Errors(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := NewLedger(store.batchStore(), logging.NewNopLogger())

	store.failBatchStart = errors.New("insert failed")
	_, err := l.Start(ctx, store, StartBatch{MunicipalityID: "muni-1"})
	assert.EqualError(t, err, "insert failed")

	store.failBatchStart = nil
	batch, err := l.Start(ctx, store, StartBatch{MunicipalityID: "muni-1"})
	require.NoError(t, err)

	store.failFinalize = errors.New("update failed")
	assert.EqualError(t, l.Finish(ctx, store, batch, models.ImportStatusFailed), "update failed")
	assert.Equal(t, models.ImportStatusProcessing, store.batches[batch.ID].Status)
}

func TestScrapeRunCache(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.scrapeRuns["run-1"] = true
	cache := NewScrapeRunCache(store, store, logging.NewNopLogger())

	assert.Equal(t, "run-1", *cache.Resolve(ctx, ptr(" run-1 ")))
	assert.Equal(t, "run-1", *cache.Resolve(ctx, ptr("run-1")))
	assert.Nil(t, cache.Resolve(ctx, ptr("stale")))
	assert.Nil(t, cache.Resolve(ctx, ptr("stale")))
	assert.Nil(t, cache.Resolve(ctx, ptr("  ")))
	assert.Nil(t, cache.Resolve(ctx, nil))

	assert.Equal(t, 1, store.scrapeRunChecks["run-1"])
	assert.Equal(t, 1, store.scrapeRunChecks["stale"])
	assert.Len(t, cache.resolved, 2)
}

func TestScrapeRunCache_LookupFailureDropsReference(t *testing.T) {
	store := newMemStore()
	store.scrapeRuns["run-1"] = true
	store.failExists = errors.New("db down")
	cache := NewScrapeRunCache(store, store, logging.NewNopLogger())

	assert.Nil(t, cache.Resolve(context.Background(), ptr("run-1")))
}
