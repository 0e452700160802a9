package netclient

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		address string
		wantErr error
	}{
		{"direct", "", nil},
		{"localhost", "127.0.0.1:9050", nil},
		{"hostname", "proxy.internal:1080", nil},
		{"missing port", "127.0.0.1", ErrInvalidProxyAddress},
		{"port zero", "127.0.0.1:0", ErrInvalidProxyAddress},
		{"port too large", "127.0.0.1:70000", ErrInvalidProxyAddress},
		{"non numeric port", "127.0.0.1:abc", ErrInvalidProxyAddress},
		{"missing host", ":9050", ErrInvalidProxyAddress},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, err := NewClient(tc.address, time.Second)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got error %v, expected %v", err, tc.wantErr)
			}
			if err == nil && c.ProxyAddress() != tc.address {
				t.Errorf("got %q, expected %q", c.ProxyAddress(), tc.address)
			}
		})
	}
}

func TestHeaderInjection(t *testing.T) {
	t.Parallel()

	var gotCookie, gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient("", 5*time.Second, WithUserAgent("cssfp-test"))
	if err != nil {
		t.Fatal(err)
	}
	hc := c.HTTPClientWithConfig("session=abc", map[string]string{"Authorization": "Bearer x"})

	if _, err := Fetch(t.Context(), hc, srv.URL, "", 1024); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotCookie != "session=abc" {
		t.Errorf("cookie: got %q, expected %q", gotCookie, "session=abc")
	}
	if gotAuth != "Bearer x" {
		t.Errorf("authorization: got %q, expected %q", gotAuth, "Bearer x")
	}
	if gotUA != "cssfp-test" {
		t.Errorf("user agent: got %q, expected %q", gotUA, "cssfp-test")
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok.css", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/css" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write([]byte(".a{color:red}")) //nolint:errcheck
	})
	mux.HandleFunc("/big.css", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 64))) //nolint:errcheck
	})
	mux.HandleFunc("/moved.css", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok.css", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient("", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	hc := c.NewHTTPClient()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		resp, err := Fetch(t.Context(), hc, srv.URL+"/ok.css", "text/css", 1024)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(resp.Body) != ".a{color:red}" {
			t.Errorf("got %q", resp.Body)
		}
		if !AllowsOrigin(resp.Header, "https://anything.example") {
			t.Error("wildcard ACAO should allow any origin")
		}
	})

	t.Run("redirect keeps final url", func(t *testing.T) {
		t.Parallel()
		resp, err := Fetch(t.Context(), hc, srv.URL+"/moved.css", "text/css", 1024)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if resp.URL != srv.URL+"/ok.css" {
			t.Errorf("got %q, expected %q", resp.URL, srv.URL+"/ok.css")
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		_, err := Fetch(t.Context(), hc, srv.URL+"/missing.css", "", 1024)
		if !errors.Is(err, ErrHTTPStatus) {
			t.Errorf("got %v, expected ErrHTTPStatus", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		_, err := Fetch(t.Context(), hc, srv.URL+"/big.css", "", 16)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("got %v, expected ErrBodyTooLarge", err)
		}
	})
}

func TestAllowsOrigin(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		acao   string
		origin string
		want   bool
	}{
		{"missing", "", "https://a.example", false},
		{"wildcard", "*", "https://a.example", true},
		{"exact", "https://a.example", "https://a.example", true},
		{"case insensitive", "HTTPS://A.example", "https://a.example", true},
		{"other origin", "https://b.example", "https://a.example", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := http.Header{}
			if tc.acao != "" {
				h.Set("Access-Control-Allow-Origin", tc.acao)
			}
			if got := AllowsOrigin(h, tc.origin); got != tc.want {
				t.Errorf("got %v, expected %v", got, tc.want)
			}
		})
	}
}

func TestCheckProxy(t *testing.T) {
	t.Parallel()

	t.Run("direct", func(t *testing.T) {
		t.Parallel()
		c, _ := NewClient("", time.Second) //nolint:errcheck
		if err := c.CheckProxy(t.Context()); err != nil {
			t.Errorf("direct client: got %v, expected nil", err)
		}
	})

	t.Run("socks5 greeting", func(t *testing.T) {
		t.Parallel()
		ln := fakeProxy(t, []byte{0x05, 0x00})
		c, err := NewClient(ln.Addr().String(), time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if err := c.CheckProxy(t.Context()); err != nil {
			t.Errorf("got %v, expected nil", err)
		}
	})

	t.Run("not socks5", func(t *testing.T) {
		t.Parallel()
		ln := fakeProxy(t, []byte("HT"))
		c, err := NewClient(ln.Addr().String(), time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if err := c.CheckProxy(t.Context()); !errors.Is(err, ErrProxyNotSOCKS5) {
			t.Errorf("got %v, expected ErrProxyNotSOCKS5", err)
		}
	})
}

// fakeProxy accepts one connection, reads the greeting and answers reply.
func fakeProxy(t *testing.T, reply []byte) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		_, _ = conn.Write(reply) //nolint:errcheck
	}()
	return ln
}
