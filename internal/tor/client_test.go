package tor

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// serveOnce accepts a single connection on a loopback listener and hands
// it to handle. It returns the listener address.
func serveOnce(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return listener.Addr().String()
}

// socks5Proxy is a minimal no-auth SOCKS5 server that supports CONNECT
// to IPv4 and domain targets and pipes bytes in both directions.
func socks5Proxy(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start proxy: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go relay(conn)
		}
	}()
	return listener.Addr().String()
}

func relay(conn net.Conn) {
	defer conn.Close()

	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return
	}
	if _, err := io.ReadFull(conn, make([]byte, greeting[1])); err != nil {
		return
	}
	if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
		return
	}

	head := make([]byte, 4)
	if _, err := io.ReadFull(conn, head); err != nil {
		return
	}
	var host string
	switch head[3] {
	case 0x01:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case 0x03:
		n := make([]byte, 1)
		if _, err := io.ReadFull(conn, n); err != nil {
			return
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	default:
		return
	}
	portBytes := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBytes); err != nil {
		return
	}
	port := binary.BigEndian.Uint16(portBytes)

	upstream, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(port)))) //nolint:noctx // test code
	if err != nil {
		_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	defer upstream.Close()
	if _, err := conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 127, 0, 0, 1, 0, 0}); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() { _, _ = io.Copy(upstream, conn); done <- struct{}{} }()
	go func() { _, _ = io.Copy(conn, upstream); done <- struct{}{} }()
	<-done
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "ip and port", address: "127.0.0.1:9050"},
		{name: "hostname and port", address: "localhost:9150"},
		{name: "bracketed ipv6", address: "[::1]:9050"},
		{name: "empty address", address: "", wantErr: true},
		{name: "missing port", address: "127.0.0.1", wantErr: true},
		{name: "empty host", address: ":9050", wantErr: true},
		{name: "empty port", address: "127.0.0.1:", wantErr: true},
		{name: "port zero", address: "127.0.0.1:0", wantErr: true},
		{name: "port out of range", address: "127.0.0.1:65536", wantErr: true},
		{name: "non numeric port", address: "127.0.0.1:tor", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(tt.address, time.Second)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidProxyAddress) {
					t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.ProxyAddress() != tt.address {
				t.Errorf("ProxyAddress() = %q", client.ProxyAddress())
			}
		})
	}
}

func TestHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("configuration", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 45*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		hc := client.HTTPClient()
		if hc.Timeout != 45*time.Second {
			t.Errorf("Timeout = %v", hc.Timeout)
		}
		if hc.Jar == nil {
			t.Error("expected cookie jar")
		}
		tr, ok := hc.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("unexpected transport %T", hc.Transport)
		}
		if tr.TLSClientConfig.InsecureSkipVerify {
			t.Error("TLS verification must be on by default")
		}
		if !tr.DisableCompression {
			t.Error("expected compression to be disabled")
		}
	})

	t.Run("insecure TLS for onion services", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", time.Second, WithInsecureTLS())
		if err != nil {
			t.Fatal(err)
		}
		tr, ok := client.HTTPClient().Transport.(*http.Transport)
		if !ok || !tr.TLSClientConfig.InsecureSkipVerify {
			t.Error("expected InsecureSkipVerify")
		}
	})

	t.Run("requests go through the proxy", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "through the proxy")
		}))
		t.Cleanup(srv.Close)

		client, err := NewClient(socks5Proxy(t), 5*time.Second)
		if err != nil {
			t.Fatal(err)
		}

		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.HTTPClient().Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != "through the proxy" {
			t.Errorf("body = %q", body)
		}
	})
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ProxyStatus
		str    string
		err    error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not Tor)", ErrProxyNotTor},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			t.Parallel()

			if tt.status.String() != tt.str {
				t.Errorf("String() = %q", tt.status.String())
			}
			if !errors.Is(tt.status.Err(), tt.err) {
				t.Errorf("Err() = %v, want %v", tt.status.Err(), tt.err)
			}
		})
	}

	if ProxyStatus(99).String() != "unknown" || ProxyStatus(99).Err() == nil {
		t.Error("unknown status should describe itself and carry an error")
	}
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	check := func(t *testing.T, addr string) ProxyStatus {
		t.Helper()
		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		return client.CheckConnection(context.Background())
	}

	t.Run("returns CannotConnect for closed port", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := listener.Addr().String()
		listener.Close()

		if got := check(t, addr); got != ProxyStatusCannotConnect {
			t.Errorf("expected ProxyStatusCannotConnect, got %v", got)
		}
	})

	t.Run("returns WrongType for HTTP server", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			_, _ = conn.Read(make([]byte, 3))
			_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		})
		if got := check(t, addr); got != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", got)
		}
	})

	t.Run("returns WrongType when auth is required", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			_, _ = conn.Read(make([]byte, 3))
			_, _ = conn.Write([]byte{0x05, 0xFF})
		})
		if got := check(t, addr); got != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", got)
		}
	})

	t.Run("returns OK for SOCKS5 failure reply", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			_, _ = conn.Read(make([]byte, 3))
			_, _ = conn.Write([]byte{0x05, 0x00})
			_, _ = conn.Read(make([]byte, 256))
			_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		})
		if got := check(t, addr); got != ProxyStatusOK {
			t.Errorf("expected ProxyStatusOK, got %v", got)
		}
	})

	t.Run("returns OK for a relaying proxy", func(t *testing.T) {
		t.Parallel()

		if got := check(t, socks5Proxy(t)); got != ProxyStatusOK {
			t.Errorf("expected ProxyStatusOK, got %v", got)
		}
	})

	t.Run("returns WrongType for bad CONNECT version", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			_, _ = conn.Read(make([]byte, 3))
			_, _ = conn.Write([]byte{0x05, 0x00})
			_, _ = conn.Read(make([]byte, 256))
			_, _ = conn.Write([]byte{0x04, 0x00, 0x00, 0x01})
		})
		if got := check(t, addr); got != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", got)
		}
	})

	t.Run("handles canceled context", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		status := client.CheckConnection(ctx)
		if status != ProxyStatusCannotConnect && status != ProxyStatusTimeout {
			t.Errorf("expected CannotConnect or Timeout, got %v", status)
		}
	})
}
