package metrics

import (
	"context"
	"testing"
)

func TestStartServer_Disabled(t *testing.T) {
	for _, addr := range []string{"", "  ", "off", "Disabled", "false"} {
		srv, errCh := StartServer(context.Background(), addr)
		if srv != nil || errCh != nil {
			t.Fatalf("StartServer(%q) started a listener", addr)
		}
	}
}
