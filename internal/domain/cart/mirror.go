package cart

import (
	"context"
	"errors"
	"fmt"
)

var ErrRemoteMirror = errors.New("cart: remote mirror failure")

// Mirror is the remote copy of a user's cart. Writes are best effort; the local cart
// stays authoritative for reads.
type Mirror interface {
	UpsertLine(ctx context.Context, userID, productID string, quantity int) error
	DeleteLine(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

type MirrorOp string

const (
	MirrorUpsert MirrorOp = "upsert"
	MirrorDelete MirrorOp = "delete"
	MirrorClear  MirrorOp = "clear"
)

// MirrorTask is one queued write against the Mirror.
type MirrorTask struct {
	Op        MirrorOp
	UserID    string
	ProductID string
	Quantity  int
}

func (t MirrorTask) Apply(ctx context.Context, m Mirror) error {
	switch t.Op {
	case MirrorUpsert:
		return m.UpsertLine(ctx, t.UserID, t.ProductID, t.Quantity)
	case MirrorDelete:
		return m.DeleteLine(ctx, t.UserID, t.ProductID)
	case MirrorClear:
		return m.Clear(ctx, t.UserID)
	default:
		return fmt.Errorf("cart: unknown mirror op %q", t.Op)
	}
}

// MirrorFailure reports a mirror task that was dropped or exhausted its retries.
// The local cart mutation it shadows has already been applied and is not rolled back.
type MirrorFailure struct {
	Task     MirrorTask
	Attempts int
	Err      error
}

func (f *MirrorFailure) Error() string {
	return fmt.Sprintf("cart: remote mirror %s for user %s failed after %d attempt(s): %v",
		f.Task.Op, f.Task.UserID, f.Attempts, f.Err)
}

func (f *MirrorFailure) Unwrap() []error { return []error{ErrRemoteMirror, f.Err} }
