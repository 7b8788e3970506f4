package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/openfroyo/hostdata/pkg/data"
	"github.com/openfroyo/hostdata/pkg/ffi"
)

// treePrinter renders a document by walking it through boundary calls
// only, the way a foreign caller would.
type treePrinter struct {
	bridge *ffi.Bridge
	w      io.Writer

	key    *color.Color
	tag    *color.Color
	str    *color.Color
	number *color.Color
	lit    *color.Color
}

func newTreePrinter(bridge *ffi.Bridge, w io.Writer) *treePrinter {
	p := &treePrinter{
		bridge: bridge,
		w:      w,
		key:    color.New(color.FgBlue, color.Bold),
		tag:    color.New(color.Faint),
		str:    color.New(color.FgGreen),
		number: color.New(color.FgCyan),
		lit:    color.New(color.FgMagenta),
	}

	enable := false
	if f, ok := w.(*os.File); ok {
		enable = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, c := range []*color.Color{p.key, p.tag, p.str, p.number, p.lit} {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// print walks the node at ptr under handle h.
func (p *treePrinter) print(h ffi.Handle, ptr data.Pointer) error {
	return p.walk(&h, ptr, "", 0)
}

func (p *treePrinter) walk(h *ffi.Handle, ptr data.Pointer, label string, depth int) error {
	tag, ok := p.bridge.GetValueType(h, ptr)
	if !ok {
		return ffi.LastError()
	}

	prefix := strings.Repeat("  ", depth)
	if label != "" {
		prefix += p.key.Sprint(label) + ": "
	}

	switch tag {
	case ffi.TagObject:
		keys := p.bridge.GetValueKeys(h, ptr)
		fmt.Fprintf(p.w, "%s%s\n", prefix, p.tag.Sprintf("object{%d}", len(keys)))
		for _, k := range keys {
			if err := p.walk(h, ptr.Child(k), k, depth+1); err != nil {
				return err
			}
		}
		return nil

	case ffi.TagArray:
		payload, ok := p.bridge.GetValue(h, ffi.TagArray, ptr)
		if !ok {
			return ffi.LastError()
		}
		defer p.free(payload.Items)

		fmt.Fprintf(p.w, "%s%s\n", prefix, p.tag.Sprintf("array[%d]", len(payload.Items)))
		for i := range payload.Items {
			if err := p.walk(&payload.Items[i], data.Whole, "["+strconv.Itoa(i)+"]", depth+1); err != nil {
				return err
			}
		}
		return nil

	default:
		payload, ok := p.bridge.GetValue(h, tag, ptr)
		if !ok {
			return ffi.LastError()
		}
		fmt.Fprintf(p.w, "%s%s %s\n", prefix, p.scalar(payload), p.tag.Sprint(tag.String()))
		return nil
	}
}

func (p *treePrinter) scalar(payload *ffi.Payload) string {
	switch payload.Tag {
	case ffi.TagNull:
		return p.lit.Sprint("null")
	case ffi.TagBool:
		return p.lit.Sprint(strconv.FormatBool(payload.Bool))
	case ffi.TagInt:
		return p.number.Sprint(strconv.FormatInt(payload.Int, 10))
	case ffi.TagUint:
		return p.number.Sprint(strconv.FormatUint(payload.Uint, 10))
	case ffi.TagFloat:
		return p.number.Sprint(strconv.FormatFloat(payload.Float, 'g', -1, 64))
	default:
		return p.str.Sprint(strconv.Quote(payload.Text))
	}
}

func (p *treePrinter) free(handles []ffi.Handle) {
	for _, h := range handles {
		p.bridge.FreeValue(h)
	}
}
