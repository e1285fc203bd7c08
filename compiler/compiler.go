package compiler

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/dbdlang/dbd/compiler/estree"
	"github.com/dbdlang/dbd/compiler/front"
	"github.com/dbdlang/dbd/compiler/ir"
	"github.com/dbdlang/dbd/compiler/verify"
)

type (
	Options struct {
		Globals []string
		Verify  bool
	}

	Result struct {
		File      string
		Functions []*ir.FunctionInfo
	}
)

func TranspileFile(ctx context.Context, name string, opts Options) (*Result, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Transpile(ctx, name, text, opts)
}

// Transpile lowers one ESTree JSON document.
func Transpile(ctx context.Context, name string, text []byte, opts Options) (_ *Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "transpile", "name", name)
	defer tr.Finish("err", &err)

	prog, err := estree.Decode(text)
	if err != nil {
		return nil, errors.Wrap(err, "decode syntax tree")
	}

	fns, err := front.New(opts.Globals...).Transpile(ctx, prog, name)
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	if opts.Verify {
		err = verify.Functions(ctx, fns)
		if err != nil {
			return nil, errors.Wrap(err, "verify")
		}
	}

	return &Result{File: name, Functions: fns}, nil
}

// TranspileFiles lowers files concurrently, at most jobs at a time.
// Results are in the order of names.
func TranspileFiles(ctx context.Context, names []string, jobs int, opts Options) ([]*Result, error) {
	res := make([]*Result, len(names))

	g, gctx := errgroup.WithContext(ctx)

	if jobs > 0 {
		g.SetLimit(jobs)
	}

	for i, name := range names {
		i, name := i, name

		g.Go(func() (err error) {
			res[i], err = TranspileFile(gctx, name, opts)
			if err != nil {
				return errors.Wrap(err, "%v", name)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}
