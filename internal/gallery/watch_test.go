package gallery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWSEndpoint(t *testing.T) {
	cases := map[string]string{
		"http://rover.local:5000":  "ws://rover.local:5000/api/gallery/events",
		"https://rover.local":      "wss://rover.local/api/gallery/events",
		"http://rover.local:5000/": "ws://rover.local:5000/api/gallery/events",
	}
	for in, want := range cases {
		assert.Equal(t, want, wsEndpoint(in))
	}
}
