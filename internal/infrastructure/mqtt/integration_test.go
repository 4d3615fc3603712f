//go:build integration

package mqtt

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/r2upnpav/internal/infrastructure/config"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := unitConfig()
	cfg.Broker.ClientID = clientID
	cfg.TopicPrefix = "r2upnpav-int"
	return cfg
}

func TestIntegration_Connect(t *testing.T) {
	client, err := Connect(integrationConfig("r2upnpav-int-connect"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := client.Publish(client.Topics().Health(), []byte("{}"), 1, true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish after Close error = %v, want ErrNotConnected", err)
	}
}

func TestIntegration_BrokerRefused(t *testing.T) {
	cfg := integrationConfig("r2upnpav-int-refused")
	cfg.Broker.Port = 19998

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_GeneratedClientID(t *testing.T) {
	client, err := Connect(integrationConfig(""))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if len(client.ClientID()) != len("r2upnpav-")+8 {
		t.Errorf("ClientID() = %q", client.ClientID())
	}
}

func TestIntegration_CommandRoundtrip(t *testing.T) {
	pub, err := Connect(integrationConfig("r2upnpav-int-pub"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	sub, err := Connect(integrationConfig("r2upnpav-int-sub"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	received := make(chan string, 1)
	err = sub.Subscribe(sub.Topics().Command(), 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if got := subscribedTopics(sub); !slices.Equal(got, []string{sub.Topics().Command()}) {
		t.Error("subscription not tracked")
	}

	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(pub.Topics().Command(), []byte("VolumeUp"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-received:
		if payload != "VolumeUp" {
			t.Errorf("payload = %q, want VolumeUp", payload)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}

	if err := sub.Unsubscribe(sub.Topics().Command()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if len(subscribedTopics(sub)) != 0 {
		t.Error("subscription still tracked after Unsubscribe")
	}
}

func TestIntegration_RetainedRendererState(t *testing.T) {
	pub, err := Connect(integrationConfig("r2upnpav-int-retain-pub"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer pub.Close()

	topic := pub.Topics().Renderer("Test - Sonos Play:1")
	if err := pub.PublishRetained(topic, []byte(`{"muted":false,"volume":12}`)); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}
	defer func() { _ = pub.ClearRetained(topic) }()

	sub, err := Connect(integrationConfig("r2upnpav-int-retain-sub"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer sub.Close()

	var mu sync.Mutex
	var got []string
	err = sub.Subscribe(sub.Topics().root()+"/renderer/+", 1, func(_ string, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(payload))
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 || got[0] != `{"muted":false,"volume":12}` {
		t.Errorf("retained payloads = %v", got)
	}
}
