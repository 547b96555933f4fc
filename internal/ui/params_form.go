package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sdpanel/internal/params"
	"github.com/five82/sdpanel/internal/sdapi"
)

// paramField identifies one editable generation parameter.
type paramField int

const (
	fieldPrompt paramField = iota
	fieldNegative
	fieldWidth
	fieldHeight
	fieldSteps
	fieldCFG
	fieldSampler
	fieldSeed
	fieldBatch
	fieldCount
)

var paramLabels = [fieldCount]string{
	"Prompt", "Negative", "Width", "Height", "Steps", "CFG scale", "Sampler", "Seed", "Batch",
}

// paramForm is the cursor and inline editor of the generate view.
type paramForm struct {
	selected paramField
	editing  bool
	input    textinput.Model
}

func newParamForm() paramForm {
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 2000
	return paramForm{input: ti}
}

func (f *paramForm) move(delta int) {
	next := int(f.selected) + delta
	if next < 0 {
		next = 0
	}
	if next >= int(fieldCount) {
		next = int(fieldCount) - 1
	}
	f.selected = paramField(next)
}

// begin opens the inline editor seeded with the field's current value.
func (f *paramForm) begin(p params.Generation) tea.Cmd {
	f.editing = true
	f.input.SetValue(fieldValue(f.selected, p))
	f.input.CursorEnd()
	return f.input.Focus()
}

func (f *paramForm) end() {
	f.editing = false
	f.input.Blur()
	f.input.SetValue("")
}

// fieldValue formats one parameter for display and editing.
func fieldValue(f paramField, p params.Generation) string {
	switch f {
	case fieldPrompt:
		return p.Prompt
	case fieldNegative:
		return p.NegativePrompt
	case fieldWidth:
		return strconv.Itoa(p.Width)
	case fieldHeight:
		return strconv.Itoa(p.Height)
	case fieldSteps:
		return strconv.Itoa(p.Steps)
	case fieldCFG:
		return strconv.FormatFloat(p.CFGScale, 'f', -1, 64)
	case fieldSampler:
		return p.Sampler
	case fieldSeed:
		return strconv.FormatInt(p.Seed, 10)
	case fieldBatch:
		return strconv.Itoa(p.BatchSize)
	}
	return ""
}

// fieldPatch parses raw editor input for field f.
func fieldPatch(f paramField, raw string) (params.Patch, error) {
	value := strings.TrimSpace(raw)
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a whole number", strings.ToLower(paramLabels[f]), value)
		}
		return n, nil
	}
	switch f {
	case fieldPrompt:
		return params.Patch{Prompt: params.Ptr(raw)}, nil
	case fieldNegative:
		return params.Patch{NegativePrompt: params.Ptr(raw)}, nil
	case fieldSampler:
		if value == "" {
			return params.Patch{}, fmt.Errorf("sampler: must not be empty")
		}
		return params.Patch{Sampler: params.Ptr(value)}, nil
	case fieldCFG:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return params.Patch{}, fmt.Errorf("cfg scale: %q is not a number", value)
		}
		return params.Patch{CFGScale: params.Ptr(v)}, nil
	case fieldSeed:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return params.Patch{}, fmt.Errorf("seed: %q is not a whole number", value)
		}
		return params.Patch{Seed: params.Ptr(v)}, nil
	}
	n, err := atoi()
	if err != nil {
		return params.Patch{}, err
	}
	switch f {
	case fieldWidth:
		return params.Patch{Width: params.Ptr(n)}, nil
	case fieldHeight:
		return params.Patch{Height: params.Ptr(n)}, nil
	case fieldSteps:
		return params.Patch{Steps: params.Ptr(n)}, nil
	case fieldBatch:
		return params.Patch{BatchSize: params.Ptr(n)}, nil
	}
	return params.Patch{}, fmt.Errorf("unknown field %d", f)
}

// nudgePatch steps a numeric field or cycles the sampler by dir (+1 or -1).
// The result is clamped by the store.
func nudgePatch(f paramField, p params.Generation, dir int, samplers []sdapi.SamplerInfo) (params.Patch, bool) {
	switch f {
	case fieldWidth:
		return params.Patch{Width: params.Ptr(p.Width + dir*64)}, true
	case fieldHeight:
		return params.Patch{Height: params.Ptr(p.Height + dir*64)}, true
	case fieldSteps:
		return params.Patch{Steps: params.Ptr(p.Steps + dir)}, true
	case fieldCFG:
		return params.Patch{CFGScale: params.Ptr(p.CFGScale + float64(dir)*0.5)}, true
	case fieldBatch:
		return params.Patch{BatchSize: params.Ptr(p.BatchSize + dir)}, true
	case fieldSeed:
		if p.Seed == params.RandomSeed && dir < 0 {
			return params.Patch{}, false
		}
		return params.Patch{Seed: params.Ptr(p.Seed + int64(dir))}, true
	case fieldSampler:
		if len(samplers) == 0 {
			return params.Patch{}, false
		}
		idx := -1
		for i, s := range samplers {
			if s.Name == p.Sampler {
				idx = i
				break
			}
		}
		var next int
		switch {
		case idx >= 0:
			next = (idx + dir + len(samplers)) % len(samplers)
		case dir < 0:
			next = len(samplers) - 1
		}
		return params.Patch{Sampler: params.Ptr(samplers[next].Name)}, true
	}
	return params.Patch{}, false
}

// renderParamForm draws the parameter list with the cursor and editor.
func (m Model) renderParamForm(width int) string {
	styles := m.theme.Styles()
	p := m.snapshot.Params
	labelWidth := 11
	valueWidth := maxInt(width-labelWidth-4, 10)

	var b strings.Builder
	for f := paramField(0); f < fieldCount; f++ {
		label := styles.MutedText.Render(padRight(paramLabels[f], labelWidth))
		var value string
		switch {
		case m.form.editing && f == m.form.selected:
			m.form.input.Width = valueWidth
			value = m.form.input.View()
		case f == fieldSeed && p.Seed == params.RandomSeed:
			value = styles.FaintText.Render("random (-1)")
		case (f == fieldPrompt || f == fieldNegative) && strings.TrimSpace(fieldValue(f, p)) == "":
			value = styles.FaintText.Render("(empty)")
		default:
			value = styles.Text.Render(truncate(singleLine(fieldValue(f, p)), valueWidth))
		}
		line := label + " " + value
		if f == m.form.selected && m.currentView == ViewGenerate {
			line = styles.AccentText.Render("›") + " " + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		if f < fieldCount-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderProgressPanel shows the in-flight job, or the latest result.
func (m Model) renderProgressPanel(width int) string {
	styles := m.theme.Styles()
	snap := m.snapshot
	lines := []string{}

	if snap.IsGenerating {
		prog := snap.Progress
		m.progress.Width = maxInt(width-4, 10)
		fraction := 0.0
		if prog != nil {
			fraction = prog.Fraction
		}
		lines = append(lines,
			m.spinner.View()+" "+styles.InfoText.Render("Generating"),
			m.progress.ViewAs(fraction),
		)
		if prog != nil {
			detail := fmt.Sprintf("step %d/%d", prog.Job.Step, prog.Job.Steps)
			if prog.Job.JobCount > 1 {
				detail += fmt.Sprintf(" · job %d/%d", prog.Job.JobNo+1, prog.Job.JobCount)
			}
			if eta := formatETA(prog.ETASeconds); eta != "" {
				detail += " · eta " + eta
			}
			if prog.Job.Interrupted {
				detail += " · interrupting"
			}
			lines = append(lines, styles.MutedText.Render(detail))
			if len(prog.Preview) > 0 {
				lines = append(lines, styles.FaintText.Render("preview "+formatBytes(len(prog.Preview))))
			}
		}
		return strings.Join(lines, "\n")
	}

	lines = append(lines, styles.MutedText.Render("Idle"))
	if len(snap.Images) > 0 {
		latest := snap.Images[0]
		lines = append(lines,
			"",
			styles.Text.Render("Latest"),
			styles.MutedText.Render(truncate(latest.Params.Summary(), width-2)),
			styles.FaintText.Render(fmt.Sprintf("seed %d · %s · %s",
				latest.Seed(), formatBytes(latest.Size()), formatAge(latest.CreatedAt, m.now()))),
		)
	}
	if !snap.IsConnected() {
		lines = append(lines, "", styles.WarningText.Render("Not connected. Press 2 to configure the backend."))
	}
	return strings.Join(lines, "\n")
}

// renderGenerateView composes the form and the progress panel.
func (m Model) renderGenerateView(width, height int) string {
	styles := m.theme.Styles()
	if width >= LayoutSplitWidth {
		left := width * 3 / 5
		right := width - left
		form := styles.PanelFocus.Width(left - 2).Height(height - 2).Render(m.renderParamForm(left - 4))
		prog := styles.Panel.Width(right - 2).Height(height - 2).Render(m.renderProgressPanel(right - 4))
		return lipgloss.JoinHorizontal(lipgloss.Top, form, prog)
	}
	form := styles.PanelFocus.Width(width - 2).Render(m.renderParamForm(width - 4))
	rest := maxInt(height-lipgloss.Height(form)-2, 3)
	prog := styles.Panel.Width(width - 2).Height(rest).Render(m.renderProgressPanel(width - 4))
	return lipgloss.JoinVertical(lipgloss.Left, form, prog)
}
