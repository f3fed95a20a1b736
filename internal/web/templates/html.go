// Package templates renders the admin and upload pages as templ components.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// builder writes HTML and keeps the first write error.
type builder struct {
	ctx context.Context
	w   io.Writer
	err error
}

func component(fn func(b *builder)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &builder{ctx: ctx, w: w}
		fn(b)
		return b.err
	})
}

func (b *builder) raw(s string) {
	if b.err != nil {
		return
	}
	_, b.err = io.WriteString(b.w, s)
}

func (b *builder) text(s string) {
	b.raw(templ.EscapeString(s))
}

// f formats markup. String arguments are escaped.
func (b *builder) f(format string, args ...any) {
	for i, a := range args {
		if s, ok := a.(string); ok {
			args[i] = templ.EscapeString(s)
		}
	}
	b.raw(fmt.Sprintf(format, args...))
}

func (b *builder) child(c templ.Component) {
	if b.err != nil || c == nil {
		return
	}
	b.err = c.Render(b.ctx, b.w)
}

func (b *builder) fieldError(errs map[string]string, field string) {
	if msg := errs[field]; msg != "" {
		b.f(`<p class="field-error" id="%s-error">%s</p>`, field, msg)
	}
}

func (b *builder) errorSummary(errs map[string]string) {
	if len(errs) == 0 {
		return
	}
	b.raw(`<div class="messages error" role="alert"><ul>`)
	for _, msg := range errs {
		b.f(`<li>%s</li>`, msg)
	}
	b.raw(`</ul></div>`)
}

func checked(v bool) string {
	if v {
		return " checked"
	}
	return ""
}
