// Package listing renders compiled scripts as text tables for inspection.
package listing

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/compiler"
	"github.com/zurustar/scic/pkg/compiler/symbols"
)

// Render returns the code, export and string tables of a compiled script.
// img may be nil, in which case the bytes column stays empty.
func Render(res *compiler.Result, img *codegen.Image) string {
	var b strings.Builder
	b.WriteString(Code(res, img))
	b.WriteString("\n")
	if len(res.Exports) > 0 {
		b.WriteString(Exports(res.Exports))
		b.WriteString("\n")
	}
	if img != nil && len(img.Strings) > 0 {
		b.WriteString(Strings(img))
		b.WriteString("\n")
	}
	return b.String()
}

// Code renders one row per instruction, labelled with the procedures and
// methods that start there.
func Code(res *compiler.Result, img *codegen.Image) string {
	t := table.NewWriter()
	title := "script"
	if res.Script != nil {
		title = fmt.Sprintf("script %d (%s)", res.Script.Number, res.Script.Name)
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Addr", "Bytes", "Label", "Instruction"})

	if res.Program == nil {
		return t.Render()
	}
	labels := entryLabels(res)
	for _, in := range res.Program.Instructions {
		var raw string
		if img != nil && int(in.Address)+in.Size <= img.CodeSize {
			raw = hex.EncodeToString(img.Bytes[in.Address : int(in.Address)+in.Size])
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%04x", in.Address),
			raw,
			strings.Join(labels[in.Address], " "),
			in.String(),
		})
	}
	return t.Render()
}

// Exports renders an export table.
func Exports(exports []symbols.Export) string {
	t := table.NewWriter()
	t.SetTitle("Exports")
	t.AppendHeader(table.Row{"Slot", "Name", "Kind", "Offset"})
	for _, e := range exports {
		kind := "procedure"
		if e.Object {
			kind = "object"
		}
		t.AppendRow(table.Row{e.Slot, e.Name, kind, fmt.Sprintf("%04x", e.Offset)})
	}
	return t.Render()
}

// Strings renders the string and said table of an image.
func Strings(img *codegen.Image) string {
	t := table.NewWriter()
	t.SetTitle("Strings")
	t.AppendHeader(table.Row{"Offset", "Kind", "Text"})
	for _, s := range img.Strings {
		kind := "string"
		if s.Kind == codegen.RelocSaid {
			kind = "said"
		}
		t.AppendRow(table.Row{fmt.Sprintf("%04x", s.Offset), kind, fmt.Sprintf("%q", s.Text)})
	}
	return t.Render()
}

func entryLabels(res *compiler.Result) map[uint16][]string {
	labels := map[uint16][]string{}
	for name, addr := range res.Procedures {
		labels[addr] = append(labels[addr], name)
	}
	for name, addr := range res.Methods {
		labels[addr] = append(labels[addr], name)
	}
	for _, names := range labels {
		sort.Strings(names)
	}
	return labels
}
