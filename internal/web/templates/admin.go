package templates

import (
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/a-h/templ"
)

const fileTypesPath = "/admin/structure/file-types"

// FileTypeURL returns the management URL for op on id.
func FileTypeURL(id, op string) string {
	return fileTypesPath + "/manage/" + id + "/" + op
}

// FileTypeList is the admin listing. Callers pass enabled types first.
func FileTypeList(types []core.FileType) templ.Component {
	return component(func(b *builder) {
		b.f(`<p><a class="button" href="%s/add">Add file type</a></p>`, fileTypesPath)
		b.raw(`<table class="file-types"><thead><tr><th>Name</th><th>Description</th><th>Status</th><th>Operations</th></tr></thead><tbody>`)
		if len(types) == 0 {
			b.raw(`<tr><td colspan="4">No file types available.</td></tr>`)
		}
		for _, t := range types {
			status := "Enabled"
			toggle, toggleLabel := FileTypeURL(t.ID, "disable"), "Disable"
			if !t.Enabled() {
				status = "Disabled"
				toggle, toggleLabel = FileTypeURL(t.ID, "enable"), "Enable"
			}
			b.f(`<tr data-type="%s"><td>%s</td><td>%s</td><td>%s</td><td>`, t.ID, t.Label, t.Description, status)
			b.f(`<a href="%s">Edit</a> `, FileTypeURL(t.ID, "edit"))
			b.f(`<a href="%s">%s</a>`, toggle, toggleLabel)
			if !t.System {
				b.f(` <a href="%s">Delete</a>`, FileTypeURL(t.ID, "delete"))
			}
			b.raw(`</td></tr>`)
		}
		b.raw(`</tbody></table>`)
	})
}

// FileTypeFormParams feeds FileTypeForm.
type FileTypeFormParams struct {
	Action    string
	Editing   bool
	Input     core.FileTypeInput
	Errors    map[string]string
	KnownMIME []string
	Schemes   []core.SchemeInfo
	// Type is the stored type when editing; its fields are listed.
	Type        *core.FileType
	FieldErrors map[string]string
	FieldInput  core.FieldDefinition
}

// FileTypeForm is the add and edit form.
func FileTypeForm(p FileTypeFormParams) templ.Component {
	return component(func(b *builder) {
		b.errorSummary(p.Errors)
		b.f(`<form method="post" action="%s">`, p.Action)

		b.f(`<label for="label">Name</label><input id="label" name="label" maxlength="128" required value="%s">`, p.Input.Label)
		b.fieldError(p.Errors, "label")

		if p.Editing {
			b.f(`<p>Machine name: <code>%s</code></p><input type="hidden" name="id" value="%s">`, p.Input.ID, p.Input.ID)
		} else {
			b.f(`<label for="id">Machine-readable name</label><input id="id" name="id" maxlength="32" pattern="[a-z0-9_]+" required value="%s">`, p.Input.ID)
			b.raw(`<small>A unique machine-readable name. Can only contain lowercase letters, numbers, and underscores.</small>`)
			b.fieldError(p.Errors, "id")
		}

		b.f(`<label for="description">Description</label><textarea id="description" name="description">%s</textarea>`, p.Input.Description)
		b.fieldError(p.Errors, "description")

		b.f(`<label for="mimetypes">MIME types</label><textarea id="mimetypes" name="mimetypes" required>%s</textarea>`,
			strings.Join(p.Input.MimeTypes, "\n"))
		b.raw(`<small>Enter one MIME type per line or separate them with commas. Wildcards such as image/* are allowed.</small>`)
		b.fieldError(p.Errors, "mimetypes")

		if len(p.Schemes) > 1 {
			b.raw(`<fieldset><legend>Allowed destinations</legend><small>Leave all unchecked to allow every destination.</small>`)
			for _, sc := range p.Schemes {
				b.f(`<label><input type="checkbox" name="schemes" value="%s"%s> %s</label>`,
					sc.Name, checked(slices.Contains(p.Input.Schemes, sc.Name)), sc.Label)
			}
			b.raw(`</fieldset>`)
			b.fieldError(p.Errors, "schemes")
		}

		if len(p.KnownMIME) > 0 {
			b.raw(`<details><summary>Known MIME types</summary><ul class="known-mime-types">`)
			for _, mt := range p.KnownMIME {
				b.f(`<li>%s</li>`, mt)
			}
			b.raw(`</ul></details>`)
		}

		b.raw(`<button type="submit">Save</button>`)
		if p.Editing && p.Type != nil && !p.Type.System {
			b.f(` <a class="button danger" href="%s">Delete</a>`, FileTypeURL(p.Type.ID, "delete"))
		}
		b.raw(`</form>`)

		if p.Editing && p.Type != nil {
			b.child(fieldManager(p))
		}
	})
}

func fieldManager(p FileTypeFormParams) templ.Component {
	return component(func(b *builder) {
		b.raw(`<h2>Fields</h2><table class="fields"><thead><tr><th>Label</th><th>Machine name</th><th>Type</th><th>Required</th><th>Operations</th></tr></thead><tbody>`)
		fields := core.FieldSet(p.Type.Fields).Sorted()
		if len(fields) == 0 {
			b.raw(`<tr><td colspan="5">No fields are present yet.</td></tr>`)
		}
		for _, f := range fields {
			required := "No"
			if f.Required {
				required = "Yes"
			}
			b.f(`<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>`, f.Label, f.Name, string(f.Type), required)
			b.f(`<form method="post" action="%s/%s/delete"><button type="submit">Remove</button></form>`,
				FileTypeURL(p.Type.ID, "fields"), f.Name)
			b.raw(`</td></tr>`)
		}
		b.raw(`</tbody></table>`)

		b.errorSummary(p.FieldErrors)
		b.f(`<form method="post" action="%s"><fieldset><legend>Add field</legend>`, FileTypeURL(p.Type.ID, "fields"))
		b.f(`<label for="field_label">Label</label><input id="field_label" name="field_label" required value="%s">`, p.FieldInput.Label)
		b.fieldError(p.FieldErrors, "field_label")
		b.f(`<label for="field_name">Machine name</label><input id="field_name" name="field_name" maxlength="32" required value="%s">`, p.FieldInput.Name)
		b.fieldError(p.FieldErrors, "field_name")
		b.raw(`<label for="field_type">Type</label><select id="field_type" name="field_type">`)
		for _, ft := range []core.FieldType{core.FieldText, core.FieldTextLong} {
			sel := ""
			if p.FieldInput.Type == ft {
				sel = " selected"
			}
			b.f(`<option value="%s"%s>%s</option>`, string(ft), sel, fieldTypeLabel(ft))
		}
		b.raw(`</select>`)
		maxLen := ""
		if p.FieldInput.MaxLength > 0 {
			maxLen = strconv.Itoa(p.FieldInput.MaxLength)
		}
		b.f(`<label for="field_max_length">Maximum length</label><input id="field_max_length" name="field_max_length" type="number" min="1" value="%s">`, maxLen)
		b.f(`<label><input type="checkbox" name="field_required" value="1"%s> Required</label>`, checked(p.FieldInput.Required))
		b.raw(`<button type="submit">Add field</button></fieldset></form>`)
	})
}

func fieldTypeLabel(ft core.FieldType) string {
	if ft == core.FieldTextLong {
		return "Text (plain, long)"
	}
	return "Text (plain)"
}

// ConfirmParams feeds Confirm.
type ConfirmParams struct {
	Question string
	Detail   string
	Action   string
	Submit   string
	Cancel   string
	Error    string
	// AskFieldRemoval adds the checkbox confirming removal of attached
	// fields.
	AskFieldRemoval bool
}

// Confirm is the disable, enable and delete confirmation form.
func Confirm(p ConfirmParams) templ.Component {
	return component(func(b *builder) {
		if p.Error != "" {
			b.f(`<div class="messages error" role="alert">%s</div>`, p.Error)
		}
		b.f(`<form method="post" action="%s"><p>%s</p>`, p.Action, p.Question)
		if p.Detail != "" {
			b.f(`<p>%s</p>`, p.Detail)
		}
		if p.AskFieldRemoval {
			b.raw(`<label><input type="checkbox" name="confirm_field_removal" value="1"> Also delete the attached fields and their values</label>`)
		}
		b.f(`<button type="submit">%s</button> <a href="%s">Cancel</a></form>`, p.Submit, p.Cancel)
	})
}
