package proxyerr

import (
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindRoutingMiss:    http.StatusNotFound,
		KindNoTarget:       http.StatusServiceUnavailable,
		KindConnectFailure: http.StatusBadGateway,
		KindTimeout:        http.StatusGatewayTimeout,
	}
	for kind, want := range cases {
		if got := kind.Status(); got != want {
			t.Fatalf("Kind(%d).Status() = %d, want %d", kind, got, want)
		}
	}
}
