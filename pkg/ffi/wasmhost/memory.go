package wasmhost

import (
	"context"
	"fmt"

	"github.com/openfroyo/hostdata/pkg/data"
)

// Layout of blocks returned to the guest. All integers are little-endian.
const (
	// cellSize is the size of a scalar or handle payload cell.
	cellSize = 8

	// headerSize is the size of an array header {items u32, len u32}.
	headerSize = 8
)

func memoryError(what string, ptr, size uint32) error {
	return data.NewEncodingError(fmt.Sprintf("guest memory out of range reading %s at %#x+%d", what, ptr, size), nil)
}

// readText copies size bytes of guest memory at ptr into a string.
func (g *Guest) readText(what string, ptr, size uint32) (string, error) {
	if size == 0 {
		return "", nil
	}
	buf, ok := g.memory.Read(ptr, size)
	if !ok {
		return "", memoryError(what, ptr, size)
	}
	return string(buf), nil
}

// readPointer decodes a pointer argument; a zero address means absent.
func (g *Guest) readPointer(ptr, size uint32) (data.Pointer, error) {
	if ptr == 0 {
		return data.Whole, nil
	}
	text, err := g.readText("pointer", ptr, size)
	if err != nil {
		return data.Whole, err
	}
	return data.At(text), nil
}

// readHandle loads the handle cell at ptr.
func (g *Guest) readHandle(ptr uint32) (data.Handle, error) {
	if ptr == 0 {
		return data.NullHandle, data.NewHandleError(data.ErrCodeInvalidHandle, "null handle slot")
	}
	v, ok := g.memory.ReadUint64Le(ptr)
	if !ok {
		return data.NullHandle, memoryError("handle slot", ptr, cellSize)
	}
	return data.Handle(v), nil
}

// writeHandle stores h back into the guest's handle cell.
func (g *Guest) writeHandle(ptr uint32, h data.Handle) {
	g.memory.WriteUint64Le(ptr, uint64(h))
}

// writeCString allocates len(s)+1 bytes and stores s NUL-terminated.
func (g *Guest) writeCString(ctx context.Context, s string) (uint32, error) {
	ptr, err := g.allocate(ctx, uint32(len(s)+1))
	if err != nil {
		return 0, err
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	if !g.memory.Write(ptr, buf) {
		_ = g.deallocate(ctx, ptr)
		return 0, fmt.Errorf("failed to write string to WASM memory")
	}
	return ptr, nil
}

// writeCell allocates one 8-byte cell holding v.
func (g *Guest) writeCell(ctx context.Context, v uint64) (uint32, error) {
	ptr, err := g.allocate(ctx, cellSize)
	if err != nil {
		return 0, err
	}
	if !g.memory.WriteUint64Le(ptr, v) {
		_ = g.deallocate(ctx, ptr)
		return 0, fmt.Errorf("failed to write cell to WASM memory")
	}
	return ptr, nil
}

// writeHeader allocates an array header pointing at items.
func (g *Guest) writeHeader(ctx context.Context, items, length uint32) (uint32, error) {
	ptr, err := g.allocate(ctx, headerSize)
	if err != nil {
		return 0, err
	}
	if !g.memory.WriteUint32Le(ptr, items) || !g.memory.WriteUint32Le(ptr+4, length) {
		_ = g.deallocate(ctx, ptr)
		return 0, fmt.Errorf("failed to write array header to WASM memory")
	}
	return ptr, nil
}

// writeStringArray stores strs as an array of C string pointers. On failure
// every block allocated so far is freed.
func (g *Guest) writeStringArray(ctx context.Context, strs []string) (uint32, error) {
	if len(strs) == 0 {
		return g.writeHeader(ctx, 0, 0)
	}
	items, err := g.allocate(ctx, uint32(4*len(strs)))
	if err != nil {
		return 0, err
	}
	blocks := append(make([]uint32, 0, len(strs)+1), items)

	for i, s := range strs {
		sp, err := g.writeCString(ctx, s)
		if err != nil {
			g.releaseBlocks(ctx, blocks)
			return 0, err
		}
		blocks = append(blocks, sp)
		if !g.memory.WriteUint32Le(items+uint32(4*i), sp) {
			g.releaseBlocks(ctx, blocks)
			return 0, fmt.Errorf("failed to write string array to WASM memory")
		}
	}

	header, err := g.writeHeader(ctx, items, uint32(len(strs)))
	if err != nil {
		g.releaseBlocks(ctx, blocks)
		return 0, err
	}
	return header, nil
}

// writeHandleArray stores handles as an array of 64-bit cells. On failure
// the items block is freed.
func (g *Guest) writeHandleArray(ctx context.Context, handles []data.Handle) (uint32, error) {
	if len(handles) == 0 {
		return g.writeHeader(ctx, 0, 0)
	}
	items, err := g.allocate(ctx, uint32(cellSize*len(handles)))
	if err != nil {
		return 0, err
	}
	for i, h := range handles {
		if !g.memory.WriteUint64Le(items+uint32(cellSize*i), uint64(h)) {
			_ = g.deallocate(ctx, items)
			return 0, fmt.Errorf("failed to write handle array to WASM memory")
		}
	}

	header, err := g.writeHeader(ctx, items, uint32(len(handles)))
	if err != nil {
		_ = g.deallocate(ctx, items)
		return 0, err
	}
	return header, nil
}

// releaseBlocks frees guest blocks of a result that was never returned.
func (g *Guest) releaseBlocks(ctx context.Context, blocks []uint32) {
	for _, ptr := range blocks {
		_ = g.deallocate(ctx, ptr)
	}
}
