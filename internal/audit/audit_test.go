package audit

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestBufferConcurrentAppend(t *testing.T) {
	var b Buffer
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Append("x")
		}()
	}
	wg.Wait()
	if got := len(b.String()); got != 50 {
		t.Fatalf("expected 50 bytes, got %d", got)
	}
}

func TestPrintfNilSink(t *testing.T) {
	Printf(nil, "ignored %d", 1)
	Printf(Discard, "ignored %d", 1)
}

func TestFileSinkNamingAndAppend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "trail")
	started := time.Date(2024, 5, 1, 13, 45, 10, 0, time.UTC)

	sink, err := NewFileSink(dir, started)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	want := filepath.Join(dir, "2024-05-01 13-45-10.txt")
	if sink.Path() != want {
		t.Fatalf("unexpected path %s want %s", sink.Path(), want)
	}

	sink.Append("first\n")
	Printf(sink, "%d Valid\n\n", 2)
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	sink.Append("after close\n")
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "first\n2 Valid\n\n" {
		t.Fatalf("unexpected content %q", data)
	}
}

type fakePutter struct {
	bucket string
	key    string
	body   string
	err    error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = *in.Bucket
	f.key = *in.Key
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestFileSinkArchivesOnClose(t *testing.T) {
	putter := &fakePutter{}
	sink, err := NewFileSink(t.TempDir(), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	sink.WithArchiver(newS3Archiver(putter, "run-audit", "/audit/"))
	sink.Append("{BTC, ETH}\n2 Valid\n\n")

	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if putter.bucket != "run-audit" {
		t.Errorf("unexpected bucket %s", putter.bucket)
	}
	if putter.key != "audit/2024-01-02 03-04-05.txt" {
		t.Errorf("unexpected key %s", putter.key)
	}
	if !strings.Contains(putter.body, "2 Valid") {
		t.Errorf("unexpected body %q", putter.body)
	}
}

func TestArchiveFailureIsReported(t *testing.T) {
	putter := &fakePutter{err: errors.New("access denied")}
	sink, err := NewFileSink(t.TempDir(), time.Now())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	sink.WithArchiver(newS3Archiver(putter, "run-audit", ""))
	if err := sink.Close(context.Background()); err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected archive error, got %v", err)
	}
}
