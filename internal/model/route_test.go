package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouteHash(t *testing.T) {
	route := &Route{
		ChatID:     -1001234567890,
		TopicID:    7,
		WebhookURL: "https://discord.example/api/webhooks/1/secret",
		Note:       "ops channel",
	}

	hash, err := route.Hash()
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	// Hashing is stable for identical content.
	hash2, err := route.Hash()
	require.NoError(t, err)
	require.Equal(t, hash, hash2)

	// Meta fields do not participate in the hash.
	route.ID = 99
	hash3, err := route.Hash()
	require.NoError(t, err)
	require.Equal(t, hash, hash3)

	// Routed content does.
	route.WebhookURL = "https://discord.example/api/webhooks/2/other"
	hash4, err := route.Hash()
	require.NoError(t, err)
	require.NotEqual(t, hash, hash4)
}

func TestRouteOriginKey(t *testing.T) {
	testcases := []struct {
		Name     string
		Route    Route
		Expected string
	}{
		{
			Name:     "Topic route",
			Route:    Route{ChatID: -1001234567890, TopicID: 1},
			Expected: "-1001234567890:1",
		},
		{
			Name:     "Topic-less route",
			Route:    Route{ChatID: -987654, TopicID: NoTopic},
			Expected: "-987654:0",
		},
	}

	for _, testcase := range testcases {
		t.Run(testcase.Name, func(t *testing.T) {
			require.Equal(t, testcase.Expected, testcase.Route.OriginKey())
			require.Equal(t, testcase.Expected, OriginKey(testcase.Route.ChatID, testcase.Route.TopicID))
		})
	}
}

func TestRouteHasTopic(t *testing.T) {
	require.True(t, (&Route{TopicID: 3}).HasTopic())
	require.False(t, (&Route{TopicID: NoTopic}).HasTopic())
}
