package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryNewestFirstAndBounded(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(3)
	rec := NewRecorder(repo)
	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		rec.Record(ctx, Entry{Operation: OpMerge, OutputName: fmt.Sprintf("m%d.pdf", i), CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	list, err := rec.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "m4.pdf", list[0].OutputName)
	require.Equal(t, "m2.pdf", list[2].OutputName)
	require.NotEmpty(t, list[0].ID)
	require.Equal(t, StatusOK, list[0].Status)
}

func TestMemoryRepositoryFiltersByUser(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(NewMemoryRepository(10))
	rec.Record(ctx, Entry{Operation: OpConvert, UserID: "1"})
	rec.Record(ctx, Entry{Operation: OpSplit, UserID: "2"})
	rec.Record(ctx, Entry{Operation: OpCompress, UserID: "1"})

	list, err := rec.List(ctx, "1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, OpCompress, list[0].Operation)

	got, err := rec.Repo.Get(ctx, list[1].ID)
	require.NoError(t, err)
	require.Equal(t, OpConvert, got.Operation)

	_, err = rec.Repo.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

type failingRepo struct{ MemoryRepository }

func (f *failingRepo) Add(context.Context, *Entry) error { return errors.New("down") }

func TestRecordSwallowsErrors(t *testing.T) {
	rec := NewRecorder(&failingRepo{})
	rec.Record(context.Background(), Entry{Operation: OpConvert})

	var nilRec *Recorder
	nilRec.Record(context.Background(), Entry{Operation: OpConvert})
	list, err := nilRec.List(context.Background(), "", 5)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestFinish(t *testing.T) {
	e := Finish(OpConvert, time.Now().Add(-time.Second), errors.New("conversion failed: boom"))
	require.Equal(t, StatusError, e.Status)
	require.Equal(t, "conversion failed: boom", e.Error)
	require.GreaterOrEqual(t, e.Duration, time.Second)

	require.Equal(t, StatusOK, Finish(OpMerge, time.Now(), nil).Status)
}

func TestRecorderGetChecksOwner(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(NewMemoryRepository(10))
	rec.Record(ctx, Entry{ID: "a", Operation: OpConvert, UserID: "1"})
	rec.Record(ctx, Entry{ID: "b", Operation: OpMerge})

	got, err := rec.Get(ctx, "1", "a")
	require.NoError(t, err)
	require.Equal(t, OpConvert, got.Operation)

	_, err = rec.Get(ctx, "2", "a")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = rec.Get(ctx, "", "b")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = rec.Get(ctx, "1", "")
	require.ErrorIs(t, err, ErrNotFound)

	var none *Recorder
	_, err = none.Get(ctx, "1", "a")
	require.ErrorIs(t, err, ErrNotFound)
}
