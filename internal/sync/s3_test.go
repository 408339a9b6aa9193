package sync

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	data, _ := io.ReadAll(in.Body)
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Destination_Write(t *testing.T) {
	fake := &fakeS3{}
	dest := &S3Destination{client: fake, bucket: "backups", key: "taskgraph/backup.jsonl"}

	exp := Export{Meta: Meta{Fingerprint: "fp", Digest: "dg"}, Data: []byte("line\n")}
	if err := dest.Write(context.Background(), exp); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if aws.ToString(fake.in.Bucket) != "backups" || aws.ToString(fake.in.Key) != "taskgraph/backup.jsonl" {
		t.Errorf("target = %s/%s", aws.ToString(fake.in.Bucket), aws.ToString(fake.in.Key))
	}
	if aws.ToString(fake.in.ContentType) != "application/x-ndjson" {
		t.Errorf("content type = %s", aws.ToString(fake.in.ContentType))
	}
	if fake.in.Metadata["fingerprint"] != "fp" || fake.in.Metadata["digest"] != "dg" {
		t.Errorf("metadata = %v", fake.in.Metadata)
	}
	if fake.body != "line\n" {
		t.Errorf("body = %q", fake.body)
	}
	if dest.Name() != "s3://backups/taskgraph/backup.jsonl" {
		t.Errorf("Name() = %q", dest.Name())
	}
}

func TestS3Destination_WriteError(t *testing.T) {
	dest := &S3Destination{client: &fakeS3{err: errors.New("access denied")}, bucket: "b", key: "k"}
	err := dest.Write(context.Background(), Export{Data: []byte("x")})
	if err == nil || !strings.Contains(err.Error(), "s3 put object") {
		t.Fatalf("error = %v", err)
	}
}

func TestNewS3Destination_RequiresBucket(t *testing.T) {
	if _, err := NewS3Destination(context.Background(), S3Options{Key: "k"}); err == nil {
		t.Fatal("expected an error without a bucket")
	}
}
