package faults

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFault() domain.PermissionFault {
	return domain.PermissionFault{
		Path:           "organizations/acme/clients/c1",
		Operation:      domain.OperationCreate,
		RequestData:    map[string]interface{}{"name": "Acme Inc."},
		Reason:         "role viewer may not write clients",
		OrganizationID: "acme",
		UserID:         "u1",
		OccurredAt:     time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestLocalBridge_NoConsumerDropsSilently(t *testing.T) {
	bridge := NewLocalBridge(logger.NewNop())

	assert.NotPanics(t, func() {
		bridge.ReportPermissionFault(context.Background(), sampleFault())
	})
	assert.Equal(t, 0, bridge.Subscribers())
}

func TestLocalBridge_DeliversToSubscribers(t *testing.T) {
	bridge := NewLocalBridge(logger.NewNop())

	var got []domain.PermissionFault
	unsubscribe := bridge.Subscribe(func(f domain.PermissionFault) { got = append(got, f) })

	bridge.ReportPermissionFault(context.Background(), sampleFault())
	require.Len(t, got, 1)
	assert.Equal(t, "organizations/acme/clients/c1", got[0].Path)
	assert.Equal(t, "Acme Inc.", got[0].RequestData["name"])

	unsubscribe()
	unsubscribe()
	bridge.ReportPermissionFault(context.Background(), sampleFault())
	assert.Len(t, got, 1, "no replay after unsubscribing")
	assert.Equal(t, 0, bridge.Subscribers())
}

func TestLocalBridge_FaultsBeforeSubscribeAreNotReplayed(t *testing.T) {
	bridge := NewLocalBridge(logger.NewNop())
	bridge.ReportPermissionFault(context.Background(), sampleFault())

	calls := 0
	defer bridge.Subscribe(func(domain.PermissionFault) { calls++ })()
	assert.Equal(t, 0, calls)
}

func TestLocalBridge_PanickingConsumerIsContained(t *testing.T) {
	bridge := NewLocalBridge(logger.NewNop())
	bridge.Subscribe(func(domain.PermissionFault) { panic("boom") })

	calls := 0
	bridge.Subscribe(func(domain.PermissionFault) { calls++ })

	assert.NotPanics(t, func() {
		bridge.ReportPermissionFault(context.Background(), sampleFault())
	})
	assert.Equal(t, 1, calls)
}

func TestDecodeFault(t *testing.T) {
	payload, err := json.Marshal(sampleFault())
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"requestResourceData"`)

	fault, err := decodeFault(string(payload))
	require.NoError(t, err)
	assert.Equal(t, sampleFault().Reason, fault.Reason)
	assert.Equal(t, domain.OperationCreate, fault.Operation)

	_, err = decodeFault(`{"operation":"create"}`)
	assert.Error(t, err)
	_, err = decodeFault(`not json`)
	assert.Error(t, err)
}

// Requires a reachable Redis; set REDIS_URL to run.
func TestRedisBridge_RoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	defer client.Close()

	local := NewLocalBridge(logger.NewNop())
	bridge := NewRedisBridge(client, local, logger.NewNop())

	received := make(chan domain.PermissionFault, 1)
	defer bridge.Subscribe(func(f domain.PermissionFault) { received <- f })()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)

	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, bridge.channel).Result()
		return err == nil && n[bridge.channel] > 0
	}, 5*time.Second, 50*time.Millisecond)

	bridge.ReportPermissionFault(ctx, sampleFault())

	select {
	case f := <-received:
		assert.Equal(t, sampleFault().Path, f.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("fault was not forwarded")
	}
}
