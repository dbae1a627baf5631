package transport

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/fahrprobe/fahrprobe-cli/internal/encoding"
	"github.com/fahrprobe/fahrprobe-cli/internal/models"
)

func startUDP(t *testing.T) (*UDPServer, *net.UDPAddr) {
	t.Helper()
	server := NewUDPServer("127.0.0.1", 0, encoding.NewJSONEncoder())
	if err := server.Listen(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go server.Serve(ctx)

	return server, server.LocalAddr()
}

func TestUDPServer_Broadcast(t *testing.T) {
	server, serverAddr := startUDP(t)

	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	client.WriteToUDP([]byte("subscribe"), serverAddr)
	waitFor(t, func() bool { return server.GetClientCount() == 1 })

	frame := models.Frame{
		SchemaVersion: models.FrameSchema,
		FrameID:       "udp-test-1",
		Session:       models.Session{Scenario: "udp-scenario"},
	}
	if err := server.Broadcast(frame); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	buf := make([]byte, 2048)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("failed to receive: %v", err)
	}

	if !strings.Contains(string(buf[:n]), "udp-scenario") {
		t.Errorf("expected frame data, got: %s", string(buf[:n]))
	}
}

func TestUDPServer_ClientCount(t *testing.T) {
	server, serverAddr := startUDP(t)

	if server.GetClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", server.GetClientCount())
	}

	client, err := net.DialUDP("udp", nil, serverAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	client.Write([]byte("subscribe"))
	waitFor(t, func() bool { return server.GetClientCount() == 1 })

	client.Write([]byte("unsubscribe"))
	waitFor(t, func() bool { return server.GetClientCount() == 0 })
}

func TestUDPServer_Address(t *testing.T) {
	server := NewUDPServer("127.0.0.1", 9999, encoding.NewJSONEncoder())
	if addr := server.GetAddress(); addr != "udp://127.0.0.1:9999" {
		t.Errorf("wrong address: %s", addr)
	}
	if server.LocalAddr() != nil {
		t.Error("LocalAddr should be nil before Listen")
	}
}
