package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3Config mirrors the teacher's storage.S3Factory field set
// (storage/persistence-s3.go), generalized from shard/log object layout
// to one JSON object per document.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
}

// S3Factory opens an S3Driver per collection, each scoped to its own key
// prefix under the bucket.
type S3Factory struct{ cfg S3Config }

func NewS3Factory(cfg S3Config) *S3Factory { return &S3Factory{cfg: cfg} }

func (f *S3Factory) Open(collection string) (Driver, error) {
	pfx := strings.TrimSuffix(f.cfg.Prefix, "/")
	if pfx != "" {
		pfx = pfx + "/" + collection
	} else {
		pfx = collection
	}
	return &S3Driver{cfg: f.cfg, prefix: pfx}, nil
}

// S3Driver stores one document per object, key `<prefix>/<id>.json`,
// grounded on storage/persistence-s3.go's "one object per logical unit"
// layout and lazy client construction (ensureOpen).
type S3Driver struct {
	cfg    S3Config
	prefix string

	mu     sync.Mutex
	client *s3.Client
	opened bool
}

func (d *S3Driver) ensureOpen(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return nil
	}
	var opts []func(*config.LoadOptions) error
	if d.cfg.Region != "" {
		opts = append(opts, config.WithRegion(d.cfg.Region))
	}
	if d.cfg.AccessKeyID != "" && d.cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(d.cfg.AccessKeyID, d.cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("docstore: load aws config: %w", err)
	}
	var s3Opts []func(*s3.Options)
	if d.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(d.cfg.Endpoint) })
	}
	if d.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	d.client = s3.NewFromConfig(awsCfg, s3Opts...)
	d.opened = true
	return nil
}

func (d *S3Driver) key(id string) string {
	return d.prefix + "/" + id + ".json"
}

func (d *S3Driver) Query(ctx context.Context, id string, projection []string) (Document, bool, error) {
	if err := d.ensureOpen(ctx); err != nil {
		return nil, false, err
	}
	resp, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(d.key(id)),
	})
	if err != nil {
		var nf *smithyhttp.ResponseError
		if errors.As(err, &nf) && nf.HTTPStatusCode() == 404 {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("docstore: s3 get %s: %w", id, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("docstore: decode %s: %w", id, err)
	}
	return projected(doc, projection), true, nil
}

func (d *S3Driver) Insert(ctx context.Context, id string, doc Document) error {
	if _, ok, err := d.Query(ctx, id, nil); err != nil {
		return err
	} else if ok {
		return ErrDuplicateKey
	}
	return d.put(ctx, id, doc)
}

func (d *S3Driver) Upsert(ctx context.Context, id string, doc Document) error {
	return d.put(ctx, id, doc)
}

func (d *S3Driver) put(ctx context.Context, id string, doc Document) error {
	if err := d.ensureOpen(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(d.key(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("docstore: s3 put %s: %w", id, err)
	}
	return nil
}
