// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"shop-catalog/internal/config"
	"shop-catalog/pkg/log"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	log.Info("MinIO 客户端初始化成功")

	ctx := context.Background()
	bucketName := cfg.BucketName
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}

	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
		if err = MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", bucketName)
	}
}

// SnapshotBucket 把分类森林的 JSON 快照写到固定对象名下，并签发下载链接。
type SnapshotBucket struct {
	client     *minio.Client
	bucketName string
	objectName string
}

// NewSnapshotBucket 创建一个新的 SnapshotBucket 实例。
func NewSnapshotBucket(client *minio.Client, bucketName, objectName string) *SnapshotBucket {
	return &SnapshotBucket{client: client, bucketName: bucketName, objectName: objectName}
}

// PutSnapshot 覆盖写入最新快照。
func (b *SnapshotBucket) PutSnapshot(ctx context.Context, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucketName, b.objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("上传分类快照失败: %w", err)
	}
	return nil
}

// PresignedURL 为最新快照生成有时效的下载链接。
func (b *SnapshotBucket) PresignedURL(ctx context.Context, expiry time.Duration) (string, error) {
	presignedURL, err := b.client.PresignedGetObject(ctx, b.bucketName, b.objectName, expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}
