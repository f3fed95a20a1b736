package templates

import "github.com/a-h/templ"

// Page wraps body in the site layout. flash is shown above the content.
func Page(title, flash string, body templ.Component) templ.Component {
	return component(func(b *builder) {
		b.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.f(`<title>%s</title></head><body>`, title)
		b.raw(`<nav><a href="/admin/structure/file-types">File types</a> | <a href="/file/add">Add a file</a></nav>`)
		b.f(`<main><h1>%s</h1>`, title)
		if flash != "" {
			b.f(`<div class="messages status" role="status">%s</div>`, flash)
		}
		b.child(body)
		b.raw(`</main></body></html>`)
	})
}

// errorAlert renders a user-facing error with its action hint and code.
func errorAlert(message, action, code string) templ.Component {
	return component(func(b *builder) {
		b.raw(`<div class="messages error" role="alert">`)
		b.f(`<strong>%s</strong>`, message)
		if action != "" {
			b.f(`<p>%s</p>`, action)
		}
		if code != "" {
			b.f(`<small>Error code: %s</small>`, code)
		}
		b.raw(`</div>`)
	})
}

// ErrorPage is a full page around errorAlert.
func ErrorPage(message, action, code string) templ.Component {
	return Page("Error", "", errorAlert(message, action, code))
}
