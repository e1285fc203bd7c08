// Package verify checks structural properties of lowered functions.
package verify

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/dbdlang/dbd/compiler/ir"
	"github.com/dbdlang/dbd/compiler/set"
)

var (
	ErrDuplicateID  = errors.New("duplicate destination id")
	ErrInvalidID    = errors.New("invalid destination id")
	ErrEmptyBlock   = errors.New("empty block")
	ErrTerminator   = errors.New("misplaced terminator")
	ErrUnterminated = errors.New("block not terminated")
	ErrBranch       = errors.New("branch out of function")
)

// Functions checks the output of one file.
// Destination and parameter ids must be unique across all of fns.
func Functions(ctx context.Context, fns []*ir.FunctionInfo) (err error) {
	tr := tlog.SpawnFromContext(ctx, "verify: functions", "funcs", len(fns))
	defer tr.Finish("err", &err)

	ids := set.MakeBits[ir.ID](256)

	for _, fn := range fns {
		err = Function(fn, &ids)
		if err != nil {
			return errors.Wrap(err, "function %v", fn.Name())
		}

		if dead := Unreachable(fn); len(dead) != 0 {
			tr.V("unreachable").Printw("unreachable blocks", "func", fn.Name(), "blocks", dead)
		}
	}

	return nil
}

// Function checks fn alone adding its definitions to ids.
func Function(fn *ir.FunctionInfo, ids *set.Bits[ir.ID]) error {
	for _, p := range fn.Parameters {
		if err := define(ids, p.ID); err != nil {
			return errors.Wrap(err, "parameter %q", p.Name)
		}
	}

	for i, b := range fn.Blocks {
		if b.Index != i {
			return errors.New("block %d: index %d", i, b.Index)
		}

		if len(b.Instructions) == 0 {
			return errors.Wrap(ErrEmptyBlock, "block %d", i)
		}

		last := len(b.Instructions) - 1

		for j, x := range b.Instructions {
			term := false

			switch x := x.(type) {
			case *ir.Call:
				if err := define(ids, x.Dest); err != nil {
					return errors.Wrap(err, "block %d: instruction %d", i, j)
				}
			case *ir.Return:
				term = true
			case *ir.Branch:
				term = true

				if x.Target == nil || x.Target.Index < 0 || x.Target.Index >= len(fn.Blocks) || fn.Blocks[x.Target.Index] != x.Target {
					return errors.Wrap(ErrBranch, "block %d: instruction %d", i, j)
				}
			}

			if term && j != last {
				return errors.Wrap(ErrTerminator, "block %d: instruction %d", i, j)
			}

			if !term && j == last {
				return errors.Wrap(ErrUnterminated, "block %d", i)
			}
		}
	}

	return nil
}

// Unreachable returns indexes of blocks not reachable from the entry block.
func Unreachable(fn *ir.FunctionInfo) (r []int) {
	if len(fn.Blocks) == 0 {
		return nil
	}

	seen := set.MakeBits[int](len(fn.Blocks))

	q := heap.Heap[int]{Less: func(d []int, i, j int) bool { return d[i] < d[j] }}

	seen.Add(0)
	q.Push(0)

	for q.Len() != 0 {
		b := fn.Blocks[q.Pop()]

		br, ok := b.Terminator().(*ir.Branch)
		if !ok || br.Target == nil || br.Target.Index >= len(fn.Blocks) {
			continue
		}

		if seen.Add(br.Target.Index) {
			q.Push(br.Target.Index)
		}
	}

	for i := range fn.Blocks {
		if !seen.Has(i) {
			r = append(r, i)
		}
	}

	return r
}

func define(ids *set.Bits[ir.ID], id ir.ID) error {
	if id < 0 {
		return errors.Wrap(ErrInvalidID, "%v", id)
	}

	if !ids.Add(id) {
		return errors.Wrap(ErrDuplicateID, "%v", id)
	}

	return nil
}
