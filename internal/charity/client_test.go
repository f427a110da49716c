package charity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Vrajp222/Donation-Tracker/internal/charity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/animals", r.URL.Path)
		assert.Equal(t, "pk_test", r.URL.Query().Get("apiKey"))

		json.NewEncoder(w).Encode(map[string]any{
			"nonprofits": []map[string]any{
				{
					"name":        "Best Friends Animal Society",
					"location":    "Kanab, UT",
					"description": "Save them all.",
					"website":     "https://bestfriends.org",
					"slug":        "best-friends",
				},
				{
					"name":     "Humane Society",
					"location": "Washington, DC",
					"ein":      "53-0225390",
				},
			},
		})
	}))
	defer server.Close()

	client := charity.NewClient(server.URL, "pk_test")
	nonprofits, err := client.Search(context.Background(), "animals")

	require.NoError(t, err)
	require.Len(t, nonprofits, 2)
	assert.Equal(t, "Best Friends Animal Society", nonprofits[0].Name)
	assert.Equal(t, "best-friends", nonprofits[0].Slug)
	assert.Equal(t, "53-0225390", nonprofits[1].EIN)
}

func TestSearchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusForbidden)
	}))
	defer server.Close()

	client := charity.NewClient(server.URL, "bad-key")
	_, err := client.Search(context.Background(), "animals")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFilter(t *testing.T) {
	nonprofits := []charity.Nonprofit{
		{Name: "Red Cross"},
		{Name: "UNICEF"},
		{Name: "International Red Cross"},
	}

	assert.Len(t, charity.Filter(nonprofits, ""), 3)
	assert.Len(t, charity.Filter(nonprofits, "red cross"), 2)

	matched := charity.Filter(nonprofits, "unicef")
	require.Len(t, matched, 1)
	assert.Equal(t, "UNICEF", matched[0].Name)
}
