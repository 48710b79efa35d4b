package scopemock

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startTestServer(t *testing.T) (*Server, net.Addr) {
	t.Helper()

	cfg := createTestConfig()
	st := NewState(cfg)
	server := NewServer(cfg, st, zerolog.Nop())
	addr, err := server.Listen()
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go server.Serve()

	t.Cleanup(func() {
		server.Close()
		st.Close()
	})
	return server, addr
}

func TestNewServer(t *testing.T) {
	cfg := createTestConfig()
	st := NewState(cfg)
	defer st.Close()
	server := NewServer(cfg, st, zerolog.Nop())

	if server.config != cfg {
		t.Error("Expected server config to be set")
	}
	if server.state != st {
		t.Error("Expected server state to be set")
	}
	if server.stopChan == nil {
		t.Error("Expected stopChan to be initialized")
	}
}

func TestServerRoundTrip(t *testing.T) {
	_, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	reader := bufio.NewReader(conn)

	// Commands produce nothing, so the next line read belongs to the query.
	if _, err := conn.Write([]byte(":SINGle\n*IDN?\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !strings.Contains(line, "DS1054Z") {
		t.Errorf("Expected identity reply, got %q", line)
	}

	if _, err := conn.Write([]byte(":DISP:DATA? ON,OFF,PNG\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	header := make([]byte, 2)
	if _, err := io.ReadFull(reader, header); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(header) != "#9" {
		t.Errorf("Expected block header, got %q", header)
	}
}

func TestServerCloseDropsClients(t *testing.T) {
	server, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// Make sure the handler is registered before closing.
	conn.Write([]byte("*IDN?\n"))
	bufio.NewReader(conn).ReadString('\n')

	if err := server.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("Expected connection to be closed by the server")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SCOPEMOCK_PORT", "6000")
	t.Setenv("SCOPEMOCK_ARM_DELAY_MS", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Network.Port != 6000 {
		t.Errorf("Expected port 6000, got %d", cfg.Network.Port)
	}
	if cfg.Timing.ArmDelayMs != 10 {
		t.Errorf("Expected arm delay 10, got %d", cfg.Timing.ArmDelayMs)
	}
}

func TestLoadConfigRejectsBadEnv(t *testing.T) {
	t.Setenv("SCOPEMOCK_POINTS", "lots")

	if _, err := Load(); err == nil {
		t.Error("Expected error for malformed SCOPEMOCK_POINTS")
	}
}
