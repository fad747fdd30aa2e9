package eventlog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"gorm.io/gorm"

	"scavenger/core/types"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	store.now = func() time.Time { return time.Unix(1_740_800_000, 0) }
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReceipt(height uint64, signer string, evts ...types.Event) *types.Receipt {
	return &types.Receipt{
		CallID: fmt.Sprintf("0x%02x", height),
		Method: "custody_submit",
		Signer: signer,
		Height: height,
		Root:   "0xroot",
		Events: evts,
	}
}

func TestStoreAppendAndList(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	submitted := types.Event{
		Type:       "custody.material.submitted",
		Topics:     []string{"material:1", "principal:scv1alice"},
		Attributes: map[string]string{"materialId": "1", "weight": "2000"},
	}
	paid := types.Event{
		Type:       "custody.reward.paid",
		Topics:     []string{"material:1", "principal:scv1bob"},
		Attributes: map[string]string{"amount": "5"},
	}
	require.NoError(t, store.Append(ctx, sampleReceipt(1, "scv1alice", submitted)))
	require.NoError(t, store.Append(ctx, sampleReceipt(2, "scv1bob", paid, paid)))
	require.NoError(t, store.Append(ctx, sampleReceipt(3, "scv1bob")))

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, uint64(1), all[0].Height)
	require.Equal(t, []string{"material:1", "principal:scv1alice"}, all[0].TopicList())
	attrs, err := all[0].AttributeMap()
	require.NoError(t, err)
	require.Equal(t, "2000", attrs["weight"])
	require.Equal(t, 0, all[1].Position)
	require.Equal(t, 1, all[2].Position)
	require.NotEqual(t, all[1].ID, all[2].ID)

	byType, err := store.List(ctx, Filter{Type: "custody.reward.paid"})
	require.NoError(t, err)
	require.Len(t, byType, 2)

	bySigner, err := store.List(ctx, Filter{Signer: "scv1alice"})
	require.NoError(t, err)
	require.Len(t, bySigner, 1)

	byTopic, err := store.List(ctx, Filter{Topic: "principal:scv1bob"})
	require.NoError(t, err)
	require.Len(t, byTopic, 2)

	// A topic prefix must not match a longer topic.
	none, err := store.List(ctx, Filter{Topic: "material:"})
	require.NoError(t, err)
	require.Empty(t, none)

	ranged, err := store.List(ctx, Filter{FromHeight: 2, ToHeight: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	require.Equal(t, uint64(2), ranged[0].Height)

	resumed, err := store.List(ctx, Filter{after: &cursor{height: 2, position: 0}})
	require.NoError(t, err)
	require.Len(t, resumed, 1)
	require.Equal(t, 1, resumed[0].Position)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "root@/events")
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestExportParquet(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	for h := uint64(1); h <= 4; h++ {
		evt := types.Event{Type: "custody.material.verified", Topics: []string{fmt.Sprintf("material:%d", h)}}
		require.NoError(t, store.Append(ctx, sampleReceipt(h, "scv1carol", evt)))
	}

	path := filepath.Join(t.TempDir(), "events.parquet")
	written, err := store.ExportParquet(ctx, Filter{FromHeight: 2}, path)
	require.NoError(t, err)
	require.Equal(t, 3, written)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(3), pr.GetNumRows())

	rows := make([]parquetRow, 3)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(2), rows[0].Height)
	require.Equal(t, " material:4 ", rows[2].Topics)
	require.Equal(t, "scv1carol", rows[1].Signer)
	require.Equal(t, "2025-03-01T03:33:20Z", rows[0].CreatedAt)
}
