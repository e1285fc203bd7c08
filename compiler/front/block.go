package front

import (
	"github.com/dbdlang/dbd/compiler/ir"
	"github.com/dbdlang/dbd/compiler/scope"
)

// blockManager holds the blocks of one function in creation order.
type blockManager struct {
	blocks []*ir.Block
	cur    *ir.Block
}

func (m *blockManager) CreateBlock(s *scope.Scope, l ir.Location) *ir.Block {
	b := &ir.Block{
		Index:    len(m.blocks),
		Scope:    s.ID,
		Location: l,
	}

	m.blocks = append(m.blocks, b)

	return b
}

func (m *blockManager) PushBlock(b *ir.Block) { m.cur = b }

func (m *blockManager) CurrentBlock() *ir.Block { return m.cur }

// open returns the block to append to.
// Code following a terminator goes into a fresh block no branch leads to.
func (f *funContext) open(l ir.Location) *ir.Block {
	b := f.CurrentBlock()
	if !b.Terminated() {
		return b
	}

	b = f.CreateBlock(f.Current(), l)
	f.PushBlock(b)

	return b
}

func (f *funContext) emit(l ir.Location, code ...ir.Instruction) {
	if len(code) == 0 {
		return
	}

	f.open(l).Add(code...)
}
