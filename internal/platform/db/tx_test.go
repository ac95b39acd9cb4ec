package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx   *fakeTx
	opts pgx.TxOptions
	err  error
}

func (f *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

func TestWithSnapshotCommitsReadOnlyRepeatableRead(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	if err := WithSnapshot(context.Background(), b, func(pgx.Tx) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.opts.IsoLevel != pgx.RepeatableRead || b.opts.AccessMode != pgx.ReadOnly {
		t.Fatalf("unexpected tx options %+v", b.opts)
	}
	if !b.tx.committed {
		t.Fatalf("expected commit")
	}
}

func TestWithSnapshotRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("boom")
	err := WithSnapshot(context.Background(), b, func(pgx.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if b.tx.committed || !b.tx.rolledBack {
		t.Fatalf("expected rollback without commit, got %+v", b.tx)
	}
}

func TestWithSnapshotWrapsBeginError(t *testing.T) {
	boom := errors.New("pool closed")
	err := WithSnapshot(context.Background(), &fakeBeginner{err: boom}, func(pgx.Tx) error {
		t.Fatalf("fn must not run")
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped begin error, got %v", err)
	}
}
