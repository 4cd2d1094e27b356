package drive_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"curator/internal/drive"
	"curator/internal/logging"
)

func fastPolicy() drive.RetryPolicy {
	return drive.RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		CallTimeout:    time.Second,
	}
}

func TestRetryingRecoversFromTransientFailures(t *testing.T) {
	fake := drive.NewFake("root")
	folderID := fake.AddFolder("root", "Reports")
	fake.AddFile(folderID, "a.pdf")
	fake.FailNext("list_children", folderID, 2)

	client := drive.NewRetrying(fake, fastPolicy(), logging.NewNop())
	page, err := client.ListChildren(context.Background(), folderID, "")
	if err != nil {
		t.Fatalf("ListChildren failed after retries: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "a.pdf" {
		t.Fatalf("unexpected page: %#v", page)
	}
}

func TestRetryingGivesUpAfterMaxAttempts(t *testing.T) {
	fake := drive.NewFake("root")
	folderID := fake.AddFolder("root", "Reports")
	fake.FailNext("list_children", folderID, 10)

	client := drive.NewRetrying(fake, fastPolicy(), logging.NewNop())
	_, err := client.ListChildren(context.Background(), folderID, "")
	if err == nil {
		t.Fatal("expected error once attempts are exhausted")
	}
	if !errors.Is(err, drive.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestRetryingDoesNotRetryNotFound(t *testing.T) {
	fake := drive.NewFake("root")

	client := drive.NewRetrying(fake, fastPolicy(), logging.NewNop())
	err := client.MoveItem(context.Background(), "missing", "root")
	if !errors.Is(err, drive.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestUpdateMetadataFallsBackToMinimalPatch(t *testing.T) {
	fake := drive.NewFake("root")
	folderID := fake.AddFolder("root", "Smith Agency")
	fake.SetDescriptionLimit(10)

	client := drive.NewRetrying(fake, fastPolicy(), logging.NewNop())
	name := "Smith Agency"
	description := "merged 3 duplicate folders into this target on 2026-08-28"
	err := client.UpdateMetadata(context.Background(), folderID, drive.MetadataPatch{
		Name:        &name,
		Description: &description,
	})
	if err != nil {
		t.Fatalf("expected capacity fallback to succeed, got %v", err)
	}

	meta, err := client.GetMetadata(context.Background(), folderID)
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if meta.Description != "" {
		t.Fatalf("minimal patch should drop description, got %q", meta.Description)
	}
	if meta.Name != "Smith Agency" {
		t.Fatalf("minimal patch should keep name, got %q", meta.Name)
	}
}

func TestRetryableClassification(t *testing.T) {
	if drive.Retryable(context.Canceled) {
		t.Fatal("cancellation must not be retryable")
	}
	if !drive.Retryable(context.DeadlineExceeded) {
		t.Fatal("deadline expiry should be retryable")
	}
	if !drive.Retryable(drive.Wrap(drive.ErrTransient, "x", "y", "z", nil)) {
		t.Fatal("transient marker should be retryable")
	}
	if drive.Retryable(drive.Wrap(drive.ErrStructural, "x", "y", "z", nil)) {
		t.Fatal("structural errors must not be retryable")
	}
}
