package httptransport

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marmos91/syncmld/internal/dsync/ports"
)

func TestClientServerRoundTrip(t *testing.T) {
	reg := NewRegistry(func(remoteDevice string, transport *ServerTransport) {
		go func() {
			ctx := context.Background()
			data, ct, err := transport.Receive(ctx)
			if err != nil {
				t.Errorf("server receive: %v", err)
				return
			}
			if string(data) != "client-hello" {
				t.Errorf("server got %q, want client-hello", data)
			}
			if ct != ports.ContentXML {
				t.Errorf("server got content type %v, want ContentXML", ct)
			}
			if err := transport.SendSyncML(ctx, []byte("server-reply"), ports.ContentXML); err != nil {
				t.Errorf("server send: %v", err)
			}
		}()
	}, 1<<20, 1<<20)

	srv := httptest.NewServer(Router(reg, time.Now()))
	defer srv.Close()

	client := NewClientTransport(srv.URL+"/syncml/device-1", 1<<20, 1<<20, 3, 10*time.Millisecond, "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.SendSyncML(ctx, []byte("client-hello"), ports.ContentXML); err != nil {
		t.Fatalf("client send: %v", err)
	}

	data, ct, err := client.Receive(ctx)
	if err != nil {
		t.Fatalf("client receive: %v", err)
	}
	if string(data) != "server-reply" {
		t.Errorf("client got %q, want server-reply", data)
	}
	if ct != ports.ContentXML {
		t.Errorf("client got content type %v, want ContentXML", ct)
	}
}

func TestClientTransportRejectsOversizedOutbound(t *testing.T) {
	client := NewClientTransport("http://example.invalid", 4, 1<<20, 0, time.Millisecond, "", 0)

	err := client.SendSyncML(context.Background(), []byte("too big"), ports.ContentXML)
	if err == nil {
		t.Fatal("expected an error for an outbound message over max tx size")
	}
}

func TestClientTransportSendSANUnsupported(t *testing.T) {
	client := NewClientTransport("http://example.invalid", 1<<20, 1<<20, 0, time.Millisecond, "", 0)

	if err := client.SendSAN(context.Background(), []byte("san")); err == nil {
		t.Fatal("expected SendSAN to be rejected on the client role")
	}
}

func TestRegistryReusesTransportForSameDevice(t *testing.T) {
	var starts int
	reg := NewRegistry(func(remoteDevice string, transport *ServerTransport) {
		starts++
	}, 1<<20, 1<<20)

	first := reg.transportFor("device-1")
	second := reg.transportFor("device-1")
	if first != second {
		t.Fatal("expected the same transport for repeated requests from one device")
	}
	if starts != 1 {
		t.Fatalf("expected factory to run once, ran %d times", starts)
	}

	reg.Forget("device-1")
	third := reg.transportFor("device-1")
	if third == first {
		t.Fatal("expected a fresh transport after Forget")
	}
	if starts != 2 {
		t.Fatalf("expected factory to run again after Forget, ran %d times", starts)
	}
}
