package screens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/certificate-engine/internal/store"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

const storeTimeout = 5 * time.Second

// TemplatesView lists stored templates and lets the operator rename them
type TemplatesView struct {
	app       *tview.Application
	templates store.TemplateStore
	form      *tview.Form
	list      *tview.List
	details   *tview.TextView
	layout    *tview.Flex
	ids       []string
	currentID string
}

// NewTemplatesView creates the templates screen
func NewTemplatesView(app *tview.Application, templates store.TemplateStore) *TemplatesView {
	v := &TemplatesView{
		app:       app,
		templates: templates,
	}

	v.setupUI()
	return v
}

func (v *TemplatesView) setupUI() {
	v.list = tview.NewList()
	v.list.SetBorder(true)
	v.list.SetTitle("Templates")
	v.list.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		v.selectTemplate(index)
	})

	v.details = tview.NewTextView()
	v.details.SetBorder(true)
	v.details.SetTitle("Template Details")
	v.details.SetDynamicColors(true)

	v.form = tview.NewForm()
	v.form.SetBorder(true)
	v.form.SetTitle("Rename Template")
	v.form.AddInputField("Name", "", 30, nil, nil)
	v.form.AddButton("Save", func() {
		v.saveName()
	})
	v.form.AddButton("Cancel", func() {
		v.app.SetFocus(v.list)
	})

	rightPanel := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.details, 0, 2, false).
		AddItem(v.form, 7, 0, true)

	v.layout = tview.NewFlex().
		AddItem(v.list, 0, 1, true).
		AddItem(rightPanel, 0, 2, false)

	v.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			return event
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r':
				v.Refresh()
				return nil
			case 'e':
				if v.list.GetItemCount() > 0 && len(v.ids) > 0 {
					v.selectTemplate(v.list.GetCurrentItem())
					v.app.SetFocus(v.form)
				}
				return nil
			}
		}
		return event
	})

	v.Refresh()
}

// Refresh reloads the template list from the store
func (v *TemplatesView) Refresh() {
	v.list.Clear()
	v.ids = v.ids[:0]

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	templates, err := v.templates.List(ctx)
	if err != nil {
		v.list.AddItem("Error loading templates", err.Error(), 0, nil)
		return
	}
	if len(templates) == 0 {
		v.list.AddItem("No templates", "", 0, nil)
		return
	}

	for _, t := range templates {
		v.ids = append(v.ids, t.ID)
		v.list.AddItem(TemplateLabel(t), TemplateSummary(t), 0, nil)
	}
}

func (v *TemplatesView) selectTemplate(index int) {
	if index < 0 || index >= len(v.ids) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	t, err := v.templates.Get(ctx, v.ids[index])
	if err != nil {
		v.details.SetText(fmt.Sprintf("[red]✗ %s[white]", tview.Escape(err.Error())))
		return
	}

	var details strings.Builder
	fmt.Fprintf(&details, "[yellow]ID:[white] %s\n", t.ID)
	fmt.Fprintf(&details, "[yellow]Name:[white] %s\n", tview.Escape(t.Name))
	fmt.Fprintf(&details, "[yellow]Canvas:[white] %.0f x %.0f (%s)\n", t.Width, t.Height, t.Orientation)
	if t.BaseThemeID != "" {
		fmt.Fprintf(&details, "[yellow]Theme:[white] %s\n", t.BaseThemeID)
	}
	fields := certformat.BindingFields(t)
	if len(fields) > 0 {
		fmt.Fprintf(&details, "[yellow]Fields:[white] %s\n", strings.Join(fields, ", "))
	}
	fmt.Fprintf(&details, "\n[yellow]Elements (%d):[white]\n", len(t.Elements))
	for _, e := range certformat.SortedByZ(t) {
		lock := ""
		if e.IsLocked() {
			lock = " 🔒"
		}
		fmt.Fprintf(&details, "  z%-3d %-12s %s%s\n", e.Z(), e.Kind(), e.ID, lock)
	}
	details.WriteString("\n[yellow]Press 'e' to rename[white]")

	v.details.SetText(details.String())
	v.form.GetFormItem(0).(*tview.InputField).SetText(t.Name)
	v.currentID = t.ID
}

func (v *TemplatesView) saveName() {
	if v.currentID == "" {
		v.details.SetText("[red]✗ No template selected[white]")
		return
	}

	name := strings.TrimSpace(v.form.GetFormItem(0).(*tview.InputField).GetText())
	if name == "" {
		v.details.SetText("[red]✗ Name cannot be empty[white]")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	t, err := v.templates.Get(ctx, v.currentID)
	if err != nil {
		v.details.SetText(fmt.Sprintf("[red]✗ Template not found: %s[white]\n\n[yellow]Try refreshing the list[white]", v.currentID))
		return
	}
	t.Name = name
	if _, err := v.templates.Update(ctx, t); err != nil {
		v.details.SetText(fmt.Sprintf("[red]✗ Failed to rename template: %s[white]", tview.Escape(err.Error())))
		return
	}

	v.Refresh()
	for i, id := range v.ids {
		if id == v.currentID {
			v.list.SetCurrentItem(i)
			v.selectTemplate(i)
			break
		}
	}
	v.app.SetFocus(v.list)
}

// TemplateLabel is the list label for a template
func TemplateLabel(t *certformat.Template) string {
	if t.Name == "" {
		return t.ID
	}
	return t.Name
}

// TemplateSummary is the secondary list line for a template
func TemplateSummary(t *certformat.Template) string {
	return fmt.Sprintf("%s • %d elements • %d fields", t.ID, len(t.Elements), len(certformat.BindingFields(t)))
}

// GetRoot returns the root primitive for this screen
func (v *TemplatesView) GetRoot() tview.Primitive {
	return v.layout
}
