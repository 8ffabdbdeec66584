package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotBucket_PresignedURL(t *testing.T) {
	// 指定 Region 后签名在本地完成，不访问服务端。
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)

	bucket := NewSnapshotBucket(client, "shop-catalog", "categories/forest.json")
	raw, err := bucket.PresignedURL(context.Background(), 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/shop-catalog/categories/forest.json", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}
