package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// assign copies src values into Scan destinations; nil leaves the zero value.
func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values for %d destinations", len(values), len(dest))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		sv := reflect.ValueOf(values[i])
		if !sv.Type().AssignableTo(dv.Type()) {
			if sv.Type().ConvertibleTo(dv.Type()) {
				sv = sv.Convert(dv.Type())
			} else {
				return fmt.Errorf("scan: column %d: cannot assign %s to %s", i, sv.Type(), dv.Type())
			}
		}
		dv.Set(sv)
	}
	return nil
}

// rowStub implements pgx.Row
type rowStub struct {
	values []any
	err    error
}

func (r rowStub) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

// rowsStub implements the parts of pgx.Rows the repos use.
type rowsStub struct {
	pgx.Rows
	data [][]any
	idx  int
	err  error
}

func (r *rowsStub) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}
func (r *rowsStub) Scan(dest ...any) error { return assign(r.data[r.idx-1], dest) }
func (r *rowsStub) Err() error             { return r.err }
func (r *rowsStub) Close()                 {}

type execCall struct {
	sql  string
	args []any
}

// execScript answers Exec calls in order; a missing entry yields "UPDATE 1".
type execScript struct {
	calls   []execCall
	results []execResult
}

type execResult struct {
	tag string
	err error
}

func (s *execScript) exec(sql string, args []any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, execCall{sql: sql, args: args})
	i := len(s.calls) - 1
	if i < len(s.results) {
		r := s.results[i]
		return pgconn.NewCommandTag(r.tag), r.err
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

// txStub implements the parts of pgx.Tx the repos use.
type txStub struct {
	pgx.Tx
	execScript
	row        rowStub
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *txStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.exec(sql, args)
}
func (t *txStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return t.row }
func (t *txStub) Commit(_ context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}
func (t *txStub) Rollback(_ context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// poolStub implements postgres.PgxPool for tests
type poolStub struct {
	execScript
	rows     []rowStub
	rowIdx   int
	queries  []*rowsStub
	queryIdx int
	queryErr error
	tx       *txStub
	beginErr error
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.exec(sql, args)
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.rowIdx >= len(p.rows) {
		return rowStub{err: errors.New("no row configured")}
	}
	r := p.rows[p.rowIdx]
	p.rowIdx++
	return r
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if p.queryIdx >= len(p.queries) {
		return &rowsStub{}, nil
	}
	r := p.queries[p.queryIdx]
	p.queryIdx++
	return r, nil
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	if p.tx == nil {
		p.tx = &txStub{}
	}
	return p.tx, nil
}
