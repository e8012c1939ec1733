package httpapi

import (
	"context"
	"testing"
	"time"
)

func TestJoinContexts_CancelsWhenEitherDone(t *testing.T) {
	for _, first := range []string{"a", "b"} {
		a, ac := context.WithCancel(context.Background())
		b, bc := context.WithCancel(context.Background())
		j, cancelJ := joinContexts(a, b)
		if first == "a" {
			ac()
		} else {
			bc()
		}
		select {
		case <-j.Done():
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("joined context did not cancel when %s canceled", first)
		}
		cancelJ()
		ac()
		bc()
	}
}

func TestJoinContexts_CancelReleases(t *testing.T) {
	j, cancel := joinContexts(context.Background(), context.Background())
	cancel()
	select {
	case <-j.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("cancel did not release joined context")
	}
}
