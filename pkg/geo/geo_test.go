package geo

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatic_Country(t *testing.T) {
	t.Run("fixed code", func(t *testing.T) {
		code, ok := Static{Code: "US"}.Country(net.ParseIP("8.8.8.8"))

		assert.True(t, ok)
		assert.Equal(t, "US", code)
	})

	t.Run("empty code never resolves", func(t *testing.T) {
		_, ok := Static{}.Country(net.ParseIP("8.8.8.8"))

		assert.False(t, ok)
	})
}

func TestUnroutable(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		want bool
	}{
		{name: "loopback v4", ip: "127.0.0.1", want: true},
		{name: "loopback v6", ip: "::1", want: true},
		{name: "private 10", ip: "10.1.2.3", want: true},
		{name: "private 192.168", ip: "192.168.1.10", want: true},
		{name: "private 172.16", ip: "172.16.0.1", want: true},
		{name: "unspecified", ip: "0.0.0.0", want: true},
		{name: "link local", ip: "169.254.1.1", want: true},
		{name: "public v4", ip: "93.184.216.34", want: false},
		{name: "public v6", ip: "2606:4700:4700::1111", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unroutable(net.ParseIP(tt.ip)))
		})
	}
}

func TestUnroutable_InvalidIP(t *testing.T) {
	assert.True(t, Unroutable(nil))
	assert.True(t, Unroutable(net.ParseIP("not-an-ip")))
}
