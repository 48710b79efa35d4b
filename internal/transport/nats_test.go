package transport

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupitervolta/ds1054z/internal/command"
	"github.com/jupitervolta/ds1054z/internal/config"
	"github.com/jupitervolta/ds1054z/internal/device"
	"github.com/jupitervolta/ds1054z/internal/logger"
	"github.com/jupitervolta/ds1054z/internal/persist"
	"github.com/jupitervolta/ds1054z/internal/scope/fake"
	"github.com/jupitervolta/ds1054z/internal/telemetry"
)

const testSubject = "jvber.test.oscope"

func runNATSServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func startBridge(t *testing.T) (*nats.Conn, *NATSBridge) {
	t.Helper()

	srv := runNATSServer(t)

	conn, err := Connect(config.TransportConfig{NATSURL: srv.ClientURL(), Name: "oscope-test"}, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	q := NewQueue(4)
	d := command.NewDispatcher(device.NewHandle(fake.NewFakeDevice()), persist.Shares{HDDRoot: t.TempDir()}, logger.NewTestLogger())
	bridge := NewNATSBridge(conn, testSubject, q, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = Serve(ctx, q, d, logger.NewTestLogger())
	}()
	go func() {
		defer wg.Done()
		_ = bridge.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	client, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(client.Close)

	// Wait for the bridge subscription to be live.
	require.Eventually(t, func() bool {
		_, err := client.Request(testSubject, []byte(`{"api":"hasattr","args":["idn"]}`), 200*time.Millisecond)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	return client, bridge
}

func TestNATSRequestReply(t *testing.T) {
	client, _ := startBridge(t)

	msg, err := client.Request(testSubject, []byte(`{"api":"getattr","args":["trigger_level"],"id":"n-1"}`), 2*time.Second)
	require.NoError(t, err)

	resp, err := DecodePacket(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, "n-1", resp.ID())
	assert.JSONEq(t, `["trigger_level", 0.5]`, string(resp[FieldResult]))
}

func TestNATSPublishWithoutReply(t *testing.T) {
	client, _ := startBridge(t)

	results := make(chan *nats.Msg, 1)
	sub, err := client.ChanSubscribe(testSubject+ResultSuffix, results)
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, client.Flush())

	require.NoError(t, client.Publish(testSubject, []byte(`{"api":"force_trigger"}`)))

	select {
	case msg := <-results:
		resp, err := DecodePacket(msg.Data)
		require.NoError(t, err)
		assert.JSONEq(t, `true`, string(resp[FieldResult]))
		assert.JSONEq(t, `"force_trigger"`, string(resp[FieldAPI]))
	case <-time.After(2 * time.Second):
		t.Fatal("no response on result subject")
	}
}

func TestNATSUndecodablePayload(t *testing.T) {
	client, _ := startBridge(t)

	msg, err := client.Request(testSubject, []byte(`not json`), 2*time.Second)
	require.NoError(t, err)

	var resp struct {
		Result command.ErrorEnvelope `json:"result"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &resp))
	assert.Equal(t, command.CodeBadRequest, resp.Result.Code)
}

func TestNATSPublishEvent(t *testing.T) {
	client, bridge := startBridge(t)

	events := make(chan *nats.Msg, 1)
	sub, err := client.ChanSubscribe(testSubject+EventsSuffix, events)
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, client.Flush())

	require.NoError(t, bridge.PublishEvent(telemetry.Event{ID: 3, Type: telemetry.EventCaptured, Data: map[string]interface{}{"stamp": "2024-03-09_14-05-07"}}))

	select {
	case msg := <-events:
		var event telemetry.Event
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, telemetry.EventCaptured, event.Type)
		assert.Equal(t, int64(3), event.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event on events subject")
	}
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect(config.TransportConfig{NATSURL: "nats://127.0.0.1:1", Name: "x"}, logger.NewTestLogger())
	assert.Error(t, err)
}
