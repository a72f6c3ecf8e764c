// SPDX-License-Identifier: MIT
package wire

import (
	"fmt"
	"net"
	"testing"
	"time"
)

// chanListener signals routed parameter changes so tests can wait on
// real socket delivery.
type chanListener struct {
	recordingListener
	got chan float32
}

func (c *chanListener) HandleParameterChange(name string, value float32) {
	c.got <- value
}

func sendTo(t *testing.T, port int, msg Message) {
	t.Helper()
	conn, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := conn.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitValue(t *testing.T, ch chan float32, want float32) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Errorf("routed value = %v, expected %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestReceiverDeliversMessages(t *testing.T) {
	l := &chanListener{got: make(chan float32, 4)}
	r := NewReceiver(l)
	if err := r.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { r.Stop() })

	port := r.Port()
	if port == 0 {
		t.Fatal("Port() = 0 after Start")
	}

	sendTo(t, port, NewMessage(AddrSetParameter, "gain", float32(-3)))
	waitValue(t, l.got, -3)
}

func TestReceiverSurvivesMalformedDatagrams(t *testing.T) {
	l := &chanListener{got: make(chan float32, 4)}
	r := NewReceiver(l)
	if err := r.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { r.Stop() })

	conn, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", r.Port()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte{0xde, 0xad, 0xbe, 0xef}); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	// The loop must keep reading after a decode failure.
	sendTo(t, r.Port(), NewMessage(AddrSetParameter, "gain", float32(-6)))
	waitValue(t, l.got, -6)
}

func TestReceiverRebind(t *testing.T) {
	l := &chanListener{got: make(chan float32, 4)}
	r := NewReceiver(l)
	if err := r.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { r.Stop() })

	oldPort := r.Port()
	if err := r.Rebind(0); err != nil {
		t.Fatalf("Rebind: %v", err)
	}
	newPort := r.Port()
	if newPort == 0 || newPort == oldPort {
		t.Fatalf("Rebind port = %d (old %d)", newPort, oldPort)
	}

	sendTo(t, newPort, NewMessage(AddrSetParameter, "gain", float32(-9)))
	waitValue(t, l.got, -9)
}

func TestReceiverLifecycleErrors(t *testing.T) {
	r := NewReceiver(&recordingListener{})

	if err := r.Rebind(0); err != ErrReceiverNotStarted {
		t.Errorf("Rebind before Start = %v, expected %v", err, ErrReceiverNotStarted)
	}

	if err := r.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(0); err == nil {
		t.Error("second Start succeeded, expected error")
	}

	if err := r.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if err := r.Start(0); err != ErrReceiverClosed {
		t.Errorf("Start after Stop = %v, expected %v", err, ErrReceiverClosed)
	}
	if r.Port() != 0 {
		t.Errorf("Port() after Stop = %d, expected 0", r.Port())
	}
}

// Binding a second receiver on an in-use port must fail; the
// negotiator's bind verification relies on this.
func TestReceiverPortExclusive(t *testing.T) {
	r1 := NewReceiver(&recordingListener{})
	if err := r1.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { r1.Stop() })

	r2 := NewReceiver(&recordingListener{})
	if err := r2.Start(r1.Port()); err == nil {
		r2.Stop()
		t.Fatal("second receiver bound an in-use port")
	}
}
