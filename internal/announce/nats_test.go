package announce_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dom/stream-games/internal/announce"
	"github.com/dom/stream-games/internal/metrics"
	"github.com/nats-io/nats.go"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcNats "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startNATS(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping NATS container test in short mode")
	}

	ctx := context.Background()
	container, err := tcNats.Run(ctx, "nats:2.10-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Server is ready"),
				wait.ForListeningPort("4222/tcp"),
			).WithDeadline(45*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return url
}

func TestNATSAnnouncer_PublishesParts(t *testing.T) {
	url := startNATS(t)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 10)
	s, err := sub.ChanSubscribe("chat.announce", msgs)
	require.NoError(t, err)
	defer s.Unsubscribe()
	require.NoError(t, sub.Flush())

	m := metrics.New()
	a, err := announce.NewNATSAnnouncer(url, "chat.announce", slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Check(context.Background()))

	long := strings.Repeat("palavra ", 100)
	require.NoError(t, a.Announce(context.Background(), long))

	want := announce.Split(long, announce.MaxMessageLen)
	for i, part := range want {
		select {
		case msg := <-msgs:
			assert.Equal(t, part, string(msg.Data), "part %d", i)
		case <-time.After(5 * time.Second):
			t.Fatalf("part %d not received", i)
		}
	}
	assert.Equal(t, float64(len(want)), promtest.ToFloat64(m.Announcements.WithLabelValues("sent")))
}
