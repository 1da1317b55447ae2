package checkpoint

import (
	"bytes"
	"context"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/flint-toolkit/flintcore/internal/flog"
)

// RemoteMirror optionally uploads newly-written objects to an
// S3-compatible bucket as a checkpoint create runs (SPEC_FULL.md §9: this
// recovers the source tool's "push project to shared storage" capability
// behind a narrower, locally-decided interface). A tripped circuit
// breaker only stops future mirror attempts — it never fails or blocks
// the local checkpoint.
type RemoteMirror struct {
	Bucket string
	Prefix string

	client  *s3.Client
	breaker *gobreaker.CircuitBreaker
}

// NewRemoteMirror wraps an S3 client for mirroring objects under
// bucket/prefix/objects/<xx>/<hash>.
func NewRemoteMirror(client *s3.Client, bucket, prefix string) *RemoteMirror {
	settings := gobreaker.Settings{
		Name:        "checkpoint-mirror",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &RemoteMirror{
		Bucket:  bucket,
		Prefix:  prefix,
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// enqueue mirrors one object synchronously within Create's hashing
// worker; failures are logged and swallowed, never surfaced to the
// caller (spec.md: a mirror is a best-effort convenience, not part of the
// local checkpoint's success contract).
func (m *RemoteMirror) enqueue(hash, localPath string) {
	log := flog.Default("checkpoint-mirror")
	_, err := m.breaker.Execute(func() (interface{}, error) {
		return nil, m.upload(hash, localPath)
	})
	if err != nil {
		log.WithError(err).Warnf("mirror upload for %s degraded to local-only", hash)
	}
}

func (m *RemoteMirror) upload(hash, localPath string) error {
	key := path.Join(m.Prefix, "objects", hash[:2], hash)

	operation := func() error {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return backoff.Permanent(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(m.Bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	return backoff.Retry(operation, policy)
}
