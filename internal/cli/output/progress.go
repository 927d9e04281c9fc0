package output

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

const progressWidth = 30

// Progress is a single-line bar for loaded out of total items. The bar is
// created on the first update with a non-empty total.
type Progress struct {
	out   io.Writer
	label string
	bar   *progressbar.ProgressBar
	total int
}

func NewProgress(out io.Writer, label string) *Progress {
	return &Progress{out: out, label: label}
}

func (p *Progress) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(p.label),
		progressbar.OptionSetWidth(progressWidth),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerPadding: ".",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Update moves the bar to loaded out of total. A changed total resizes it.
func (p *Progress) Update(loaded, total int) {
	if total <= 0 {
		return
	}
	switch {
	case p.bar == nil:
		p.bar = p.newBar(total)
	case total != p.total:
		p.bar.ChangeMax(total)
	}
	p.total = total

	if loaded > total {
		loaded = total
	}
	_ = p.bar.Set(loaded)
}

// Done ends the bar line without filling the bar, so an interrupted run
// still shows where it stopped.
func (p *Progress) Done() {
	if p.bar != nil {
		_, _ = fmt.Fprintln(p.out)
	}
}
