// Package sections implements the `--resolve-sections` diagnostic
// report: each link section in declared order with its base address,
// byte length and alignment, plus the address of every label the
// section contains, sorted by offset. The report is informational only
// and has no effect on the emitted image.
package sections

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pi4erd/sarch32asm/internal/linker"
)

// Label is one resolved label within a reported section.
type Label struct {
	Name    string
	Address int
}

// Section is one link section's resolved placement and its labels.
type Section struct {
	Name      string
	Base      int
	Length    int
	Alignment int
	Labels    []Label
}

// Report is the resolved layout of every link section present in the
// inputs, in the link script's declared order.
type Report struct {
	Sections []Section
}

// Generate resolves the layout a Linker would use under the given
// LinkStructure and collects each section's labels by absolute address.
func Generate(l *linker.Linker, ls *linker.LinkStructure) (*Report, error) {
	layouts, err := l.Layout(ls)
	if err != nil {
		return nil, err
	}
	addrs, err := l.LabelAddresses(ls)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, lay := range layouts {
		sec, _ := l.Section(lay.Name)
		entry := Section{
			Name:      lay.Name,
			Base:      lay.Offset,
			Length:    lay.Size,
			Alignment: lay.Alignment,
		}
		for _, label := range sec.Labels {
			addr, ok := addrs[label.Name]
			if !ok {
				continue
			}
			entry.Labels = append(entry.Labels, Label{Name: label.Name, Address: addr})
		}
		sort.Slice(entry.Labels, func(i, j int) bool {
			return entry.Labels[i].Address < entry.Labels[j].Address
		})
		report.Sections = append(report.Sections, entry)
	}

	return report, nil
}

// String renders the report as a human-readable table, one block per
// link section.
func (r *Report) String() string {
	var b strings.Builder
	for _, sec := range r.Sections {
		fmt.Fprintf(&b, "section %q: base 0x%X, length 0x%X, align 0x%X\n",
			sec.Name, sec.Base, sec.Length, sec.Alignment)
		for _, label := range sec.Labels {
			fmt.Fprintf(&b, "  0x%-8X %s\n", label.Address, label.Name)
		}
	}
	return b.String()
}
