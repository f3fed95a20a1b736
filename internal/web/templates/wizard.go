package templates

import (
	"fmt"

	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/JonMunkholm/fileentity/internal/wizard"
	"github.com/a-h/templ"
)

// UploadForm is the first wizard step.
func UploadForm(errs map[string]string, maxSize int64) templ.Component {
	return component(func(b *builder) {
		b.errorSummary(errs)
		b.raw(`<form method="post" action="/file/add" enctype="multipart/form-data">`)
		b.raw(`<label for="edit-upload">File</label><input id="edit-upload" type="file" name="files[upload]" required>`)
		if maxSize > 0 {
			b.f(`<small>Files must be less than %s.</small>`, formatBytes(maxSize))
		}
		b.fieldError(errs, "files[upload]")
		b.raw(`<button type="submit">Next</button></form>`)
	})
}

// WizardStep renders the step a session is waiting on.
func WizardStep(st *wizard.Step, errs map[string]string) templ.Component {
	return component(func(b *builder) {
		b.errorSummary(errs)
		b.f(`<p class="upload-summary">%s (%s, %s)</p>`, st.Upload.Filename, st.Upload.MimeType, formatBytes(st.Upload.Size))
		action := "/file/add/" + st.SessionID

		switch st.State {
		case wizard.StateAwaitingType:
			b.f(`<form method="post" action="%s"><fieldset><legend>File type</legend>`, action)
			for i, t := range st.Types {
				b.f(`<label><input type="radio" name="type" value="%s"%s> %s</label>`, t.ID, checked(i == 0), t.Label)
				if t.Description != "" {
					b.f(`<small>%s</small>`, t.Description)
				}
			}
			b.raw(`</fieldset>`)
			b.fieldError(errs, "type")
			b.child(stepButtons("Next"))

		case wizard.StateAwaitingScheme:
			b.f(`<p>File type: %s</p>`, st.TypeLabel)
			b.f(`<form method="post" action="%s"><fieldset><legend>Destination</legend>`, action)
			for i, sc := range st.Schemes {
				b.f(`<label><input type="radio" name="scheme" value="%s"%s> %s</label>`, sc.Name, checked(i == 0), sc.Label)
				if sc.Description != "" {
					b.f(`<small>%s</small>`, sc.Description)
				}
			}
			b.raw(`</fieldset>`)
			b.fieldError(errs, "scheme")
			b.child(stepButtons("Next"))

		case wizard.StateAwaitingFields:
			b.f(`<p>File type: %s</p>`, st.TypeLabel)
			b.f(`<form method="post" action="%s">`, action)
			for _, f := range st.Fields {
				name := "field[" + f.Name + "]"
				value := st.Values[f.Name]
				b.f(`<label for="%s">%s</label>`, name, f.Label)
				required := ""
				if f.Required {
					required = " required"
				}
				if f.Type == core.FieldTextLong {
					b.f(`<textarea id="%s" name="%s"%s>%s</textarea>`, name, name, required, value)
				} else {
					b.f(`<input id="%s" name="%s" maxlength="%d"%s value="%s">`, name, name, f.MaxLength, required, value)
				}
				b.fieldError(errs, f.Name)
			}
			b.child(stepButtons("Save"))

		case wizard.StateCommitted:
			b.f(`<p>%s</p>`, st.UploadedMessage())
			if st.File != nil {
				b.f(`<p><a href="%s">View the file</a></p>`, FileURL(st.File.ID.String(), ""))
			}
		}
	})
}

func stepButtons(submit string) templ.Component {
	return component(func(b *builder) {
		b.f(`<button type="submit" name="op" value="next">%s</button> `, submit)
		b.raw(`<button type="submit" name="op" value="cancel" formnovalidate>Cancel</button></form>`)
	})
}

// FileURL links to an operation on a committed file. An empty op is the
// file page itself.
func FileURL(id, op string) string {
	if op == "" {
		return "/file/" + id
	}
	return "/file/" + id + "/" + op
}

// FilePage shows a committed file with its field values.
func FilePage(f *core.File, t *core.FileType) templ.Component {
	return component(func(b *builder) {
		b.raw(`<dl class="file">`)
		b.f(`<dt>Filename</dt><dd>%s</dd>`, f.Filename)
		typeLabel := f.TypeID
		var fields core.FieldSet
		if t != nil {
			typeLabel = t.Label
			fields = core.FieldSet(t.Fields).Sorted()
		}
		b.f(`<dt>File type</dt><dd>%s</dd>`, typeLabel)
		b.f(`<dt>MIME type</dt><dd>%s</dd>`, f.MimeType)
		b.f(`<dt>Size</dt><dd>%s</dd>`, formatBytes(f.Size))
		b.f(`<dt>Location</dt><dd><code>%s</code></dd>`, f.URI)
		for _, fd := range fields {
			if v := f.FieldValues[fd.Name]; v != "" {
				b.f(`<dt data-field="%s">%s</dt><dd>%s</dd>`, fd.Name, fd.Label, v)
			}
		}
		b.raw(`</dl>`)
		b.f(`<p><a href="%s">Download</a></p>`, FileURL(f.ID.String(), "download"))
	})
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d bytes", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
