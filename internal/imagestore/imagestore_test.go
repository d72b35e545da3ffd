package imagestore

import (
	"context"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), Config{
		Bucket:    "post-images",
		Region:    "us-east-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestNewKey_Layout(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time { return time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC) }

	key := s.NewKey()

	assert.Regexp(t, regexp.MustCompile(`^posts/2024/3/7/[0-9a-f-]{36}$`), key)
	assert.NotEqual(t, key, s.NewKey(), "keys must be unique")
}

// Presigning is a purely local signing step, so no storage server is needed.
func TestPresignUpload(t *testing.T) {
	s := newTestStore(t)

	up, err := s.PresignUpload(context.Background())
	require.NoError(t, err)

	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", u.Host)
	assert.Equal(t, "/post-images/"+up.Key, u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
