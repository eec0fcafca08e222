package uploader

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"balkly_rewards/internal/pkg/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
)

// Uploader 对象存储，返回可公开访问的 URL
type Uploader interface {
	Upload(prefix, filename string, body io.Reader) (string, error)
}

type AliyunOSSUploader struct {
	bucket *oss.Bucket
	config config.OSSConfig
}

// NewAliyunOSSUploader 未配置 OSS 时返回 (nil, nil)
func NewAliyunOSSUploader(cfg config.OSSConfig) (*AliyunOSSUploader, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, nil
	}

	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("init oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("open oss bucket: %w", err)
	}

	return &AliyunOSSUploader{bucket: bucket, config: cfg}, nil
}

// Upload 对象名: <prefix>/YYYYMMDD/<uuid><ext>
func (u *AliyunOSSUploader) Upload(prefix, filename string, body io.Reader) (string, error) {
	key := ObjectKey(prefix, filename, time.Now())

	if err := u.bucket.PutObject(key, body); err != nil {
		return "", err
	}

	// bucket 为公共读（或前置 CDN）
	return fmt.Sprintf("https://%s.%s/%s", u.config.BucketName, u.config.Endpoint, key), nil
}

// ObjectKey 生成不可预测的对象名，保留原扩展名
func ObjectKey(prefix, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(strings.Trim(prefix, "/"), now.Format("20060102"), uuid.New().String()+ext)
}
