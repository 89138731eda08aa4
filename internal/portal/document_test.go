package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/h2non/gock.v1"

	"github.com/calcourts/portal-scraper/internal/scraper"
)

func TestDocumentClientFetchDocument(t *testing.T) {
	defer gock.Off()

	gock.New("https://portal.test").
		Get("/api/doc/base64/doc").
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"bytes": "JVBERi0xLjQ="}})

	client := NewDocumentClient(testClientConfig(), zap.NewNop())
	got, err := client.FetchDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, "JVBERi0xLjQ=", got)
	require.True(t, gock.IsDone())
}

func TestDocumentClientDecodesEscapedID(t *testing.T) {
	defer gock.Off()

	// The portal hands out ids with percent-encoded base64 padding; the
	// request must carry the restored characters, re-escaped once.
	gock.New("https://portal.test").
		Get("/api/doc/base64/doc").
		MatchParam("docId", `^abc\+def=$`).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"bytes": "JVBERi0="}})

	client := NewDocumentClient(testClientConfig(), zap.NewNop())
	got, err := client.FetchDocument(context.Background(), "abc%2Bdef%3D")
	require.NoError(t, err)
	require.Equal(t, "JVBERi0=", got)
	require.True(t, gock.IsDone())
}

func TestDocumentClientEmptyContentIsNotFound(t *testing.T) {
	defer gock.Off()

	gock.New("https://portal.test").
		Get("/api/doc/base64/doc").
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"bytes": ""}})

	client := NewDocumentClient(testClientConfig(), zap.NewNop())
	_, err := client.FetchDocument(context.Background(), "doc-empty")
	require.ErrorIs(t, err, scraper.ErrNotFound)
}

func TestDocumentClientServerError(t *testing.T) {
	defer gock.Off()

	gock.New("https://portal.test").
		Get("/api/doc/base64/doc").
		Reply(500)

	client := NewDocumentClient(testClientConfig(), zap.NewNop())
	_, err := client.FetchDocument(context.Background(), "doc-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, scraper.ErrNotFound)
}
