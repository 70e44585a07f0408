package blob

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}

	info, err := store.Put(ctx, "groups/rate/1.csv", strings.NewReader("tau,conversion\n"), PutOptions{ContentType: "text/csv", Metadata: map[string]string{"dataset": "flow"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("tau,conversion\n")) || info.ContentType != "text/csv" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "groups/rate/1.csv", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("expected duplicate put to fail")
	}

	got, rc, err := store.Get(ctx, "groups/rate/1.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "tau,conversion\n" || got.Metadata["dataset"] != "flow" {
		t.Fatalf("unexpected get result %q %+v", body, got)
	}

	head, err := store.Head(ctx, "groups/rate/1.csv")
	if err != nil || head.Key != "groups/rate/1.csv" {
		t.Fatalf("head: %v %+v", err, head)
	}

	if _, err := store.PresignURL(ctx, "groups/rate/1.csv", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("presign err = %v", err)
	}

	ok, err := store.Delete(ctx, "groups/rate/1.csv")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "groups/rate/1.csv")
	if err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
}

func TestMemoryStoreListPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	for _, key := range []string{"groups/ea/1.json", "groups/rate/2.json", "groups/rate/1.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("{}"), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "groups/rate/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "groups/rate/1.json" || infos[1].Key != "groups/rate/2.json" {
		t.Fatalf("unexpected listing %+v", infos)
	}
}

func TestFilesystemStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}

	info, err := store.Put(ctx, "groups/order/3.csv", strings.NewReader("pressure,rate\n"), PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" || info.Size == 0 {
		t.Fatalf("missing etag or size: %+v", info)
	}
	if _, err := store.Put(ctx, "groups/order/3.csv", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("expected duplicate put to fail")
	}

	head, err := store.Head(ctx, "groups/order/3.csv")
	if err != nil || head.ETag != info.ETag {
		t.Fatalf("head: %v %+v", err, head)
	}

	_, rc, err := store.Get(ctx, "groups/order/3.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "pressure,rate\n" {
		t.Fatalf("unexpected body %q", body)
	}

	url, err := store.PresignURL(ctx, "groups/order/3.csv", SignedURLOptions{})
	if err != nil || !strings.HasPrefix(url, "http://local.blob/") {
		t.Fatalf("presign: %v %q", err, url)
	}
	if _, err := store.PresignURL(ctx, "groups/order/3.csv", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("presign PUT err = %v", err)
	}

	infos, err := store.List(ctx, "groups/")
	if err != nil || len(infos) != 1 {
		t.Fatalf("list: %v %+v", err, infos)
	}

	ok, err := store.Delete(ctx, "groups/order/3.csv")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "groups/order/3.csv")
	if err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
}

func TestFilesystemStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "  ", "../escape", "a/../../b", "/absolute"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	t.Setenv("KINETICORE_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil || store.Driver() != DriverMemory {
		t.Fatalf("memory open: %v %v", err, store)
	}

	t.Setenv("KINETICORE_BLOB_DRIVER", "fs")
	t.Setenv("KINETICORE_BLOB_FS_ROOT", filepath.Join(t.TempDir(), "artifacts"))
	store, err = Open(ctx)
	if err != nil || store.Driver() != DriverFilesystem {
		t.Fatalf("fs open: %v %v", err, store)
	}

	t.Setenv("KINETICORE_BLOB_DRIVER", "bogus")
	if _, err := Open(ctx); err == nil {
		t.Fatal("expected unknown driver error")
	}

	t.Setenv("KINETICORE_BLOB_DRIVER", "s3")
	t.Setenv("KINETICORE_BLOB_S3_BUCKET", "")
	if _, err := Open(ctx); err == nil {
		t.Fatal("expected missing bucket error")
	}
}

func TestS3MockRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewS3MockForTests()
	if store.Driver() != DriverS3 {
		t.Fatalf("driver = %s", store.Driver())
	}

	info, err := store.Put(ctx, "groups/rate/7.json", strings.NewReader(`{"k":0.01}`), PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(`{"k":0.01}`)) {
		t.Fatalf("size = %d", info.Size)
	}
	if _, err := store.Put(ctx, "groups/rate/7.json", strings.NewReader("{}"), PutOptions{}); err == nil {
		t.Fatal("expected duplicate put to fail")
	}

	got, rc, err := store.Get(ctx, "groups/rate/7.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"k":0.01}` || got.ContentType != "application/json" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}

	infos, err := store.List(ctx, "groups/")
	if err != nil || len(infos) != 1 || infos[0].Key != "groups/rate/7.json" {
		t.Fatalf("list: %v %+v", err, infos)
	}

	url, err := store.PresignURL(ctx, "groups/rate/7.json", SignedURLOptions{})
	if err != nil || !strings.Contains(url, "groups/rate/7.json") {
		t.Fatalf("presign: %v %q", err, url)
	}
	if _, err := store.PresignURL(ctx, "groups/rate/7.json", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("presign PUT err = %v", err)
	}

	ok, err := store.Delete(ctx, "groups/rate/7.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := store.Head(ctx, "groups/rate/7.json"); err == nil {
		t.Fatal("expected head after delete to fail")
	}
}
