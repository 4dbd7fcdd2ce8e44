//go:build integration

package kafka_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ikafka "github.com/Gunvolt24/kafka2hec/internal/kafka"
	"github.com/Gunvolt24/kafka2hec/internal/ports"
	"github.com/Gunvolt24/kafka2hec/internal/testutil"
	"github.com/Gunvolt24/kafka2hec/pkg/logger"
)

var reUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func safe(t *testing.T) string { return reUnsafe.ReplaceAllString(t.Name(), "-") }

func fetchN(ctx context.Context, t *testing.T, src ports.RecordSource, n int) []ports.Record {
	t.Helper()
	out := make([]ports.Record, 0, n)
	for len(out) < n {
		rec, err := src.Fetch(ctx)
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

// 1) Fetch отдаёт записи в порядке оффсетов, Commit фиксирует позицию группы.
func TestSource_FetchCommit_TC(t *testing.T) {
	// длинный контекст только на старт контейнера
	ctxStart, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelStart()

	kf, stopKF, err := testutil.StartKafkaTC(ctxStart)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stopKF(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	topic, group := testutil.UniqueTopicAndGroup("bridge-itc-" + safe(t))
	require.NoError(t, testutil.EnsureTopic(ctx, kf.Brokers[0], topic))
	require.NoError(t, testutil.ProduceRecords(ctx, kf.Brokers[0], topic, "a", "b", "c"))

	logg, cleanup, err := logger.NewZapLogger(false, "warn")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	opener := ikafka.NewOpener(&ikafka.SourceConfig{
		Brokers:     kf.Brokers,
		Topic:       topic,
		GroupID:     group,
		StartOffset: "first",
	}, logg)

	src, err := opener.Open(ctx)
	require.NoError(t, err)

	recs := fetchN(ctx, t, src, 3)
	require.Equal(t, "a", string(recs[0].Value))
	require.Equal(t, "b", string(recs[1].Value))
	require.Equal(t, "c", string(recs[2].Value))
	require.Less(t, recs[0].Offset, recs[2].Offset)

	require.NoError(t, src.Commit(ctx))
	require.NoError(t, src.Close())

	// после коммита группа продолжает с новой позиции
	require.NoError(t, testutil.ProduceRecords(ctx, kf.Brokers[0], topic, "d"))

	src2, err := opener.Open(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src2.Close() })

	next := fetchN(ctx, t, src2, 1)
	require.Equal(t, "d", string(next[0].Value))
}

// 2) Без коммита закрытие источника приводит к повторной выдаче.
func TestSource_RedeliveryWithoutCommit_TC(t *testing.T) {
	ctxStart, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelStart()

	kf, stopKF, err := testutil.StartKafkaTC(ctxStart)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stopKF(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	topic, group := testutil.UniqueTopicAndGroup("bridge-itc-" + safe(t))
	require.NoError(t, testutil.EnsureTopic(ctx, kf.Brokers[0], topic))
	require.NoError(t, testutil.ProduceRecords(ctx, kf.Brokers[0], topic, "a", "b"))

	logg, cleanup, err := logger.NewZapLogger(false, "warn")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	opener := ikafka.NewOpener(&ikafka.SourceConfig{
		Brokers:     kf.Brokers,
		Topic:       topic,
		GroupID:     group,
		StartOffset: "first",
	}, logg)

	src, err := opener.Open(ctx)
	require.NoError(t, err)

	got := fetchN(ctx, t, src, 2)
	require.Equal(t, "a", string(got[0].Value))
	// оффсеты не зафиксированы
	require.NoError(t, src.Close())

	src2, err := opener.Open(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src2.Close() })

	again := fetchN(ctx, t, src2, 2)
	require.Equal(t, "a", string(again[0].Value))
	require.Equal(t, "b", string(again[1].Value))
}
