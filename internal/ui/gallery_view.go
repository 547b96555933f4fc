package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sdpanel/internal/gallery"
)

// galleryState tracks the gallery cursor by image id so it survives
// insertions at the front.
type galleryState struct {
	selectedID string
	index      int
}

// sync re-anchors the cursor after the image list changed.
func (g *galleryState) sync(images []gallery.Image) {
	if len(images) == 0 {
		g.selectedID = ""
		g.index = 0
		return
	}
	for i, img := range images {
		if img.ID == g.selectedID {
			g.index = i
			return
		}
	}
	if g.index >= len(images) {
		g.index = len(images) - 1
	}
	g.selectedID = images[g.index].ID
}

func (g *galleryState) move(delta int, images []gallery.Image) {
	if len(images) == 0 {
		return
	}
	g.index += delta
	if g.index < 0 {
		g.index = 0
	}
	if g.index >= len(images) {
		g.index = len(images) - 1
	}
	g.selectedID = images[g.index].ID
}

func (g *galleryState) selected(images []gallery.Image) (gallery.Image, bool) {
	if g.index < 0 || g.index >= len(images) {
		return gallery.Image{}, false
	}
	return images[g.index], true
}

func (m Model) renderGalleryView(width, height int) string {
	styles := m.theme.Styles()
	images := m.snapshot.Images
	if len(images) == 0 {
		empty := styles.MutedText.Render("No images yet. Generate something from view 1.")
		return styles.Panel.Width(width - 2).Height(height - 2).Render(empty)
	}

	listWidth := width
	if width >= LayoutSplitWidth {
		listWidth = width / 2
	}
	inner := listWidth - 4
	rows := maxInt(height-3, 1)
	if width < LayoutSplitWidth {
		rows = maxInt(height/2-3, 1)
	}

	start := 0
	if m.gallery.index >= rows {
		start = m.gallery.index - rows + 1
	}
	lines := []string{styles.Text.Bold(true).Render(fmt.Sprintf("Gallery (%d)", len(images)))}
	for i := start; i < len(images) && i < start+rows-1; i++ {
		img := images[i]
		meta := fmt.Sprintf("%4dx%-4d %10d  ", img.Params.Width, img.Params.Height, img.Seed())
		prompt := truncate(singleLine(img.Params.Prompt), maxInt(inner-len(meta)-2, 8))
		line := padRight(meta+prompt, inner)
		if i == m.gallery.index {
			lines = append(lines, styles.Selected.Render(line))
			continue
		}
		lines = append(lines, styles.MutedText.Render(meta)+styles.Text.Render(prompt))
	}
	list := styles.PanelFocus.Width(listWidth - 2).Render(strings.Join(lines, "\n"))

	detailWidth := width
	if width >= LayoutSplitWidth {
		detailWidth = width - listWidth
	}
	img, _ := m.gallery.selected(images)
	detail := styles.Panel.Width(detailWidth - 2).Render(m.renderImageDetail(img, detailWidth-4))

	if width >= LayoutSplitWidth {
		return lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
	}
	return lipgloss.JoinVertical(lipgloss.Left, list, detail)
}

func (m Model) renderImageDetail(img gallery.Image, width int) string {
	styles := m.theme.Styles()
	field := func(label, value string) string {
		return styles.MutedText.Render(padRight(label, 10)) + " " + styles.Text.Render(value)
	}
	wrap := lipgloss.NewStyle().Width(width)
	p := img.Params
	lines := []string{
		styles.Text.Bold(true).Render("Image " + truncate(img.ID, 8)),
		field("Created", formatAge(img.CreatedAt, m.now())),
		field("Size", fmt.Sprintf("%dx%d · %s", p.Width, p.Height, formatBytes(img.Size()))),
		field("Seed", fmt.Sprintf("%d", img.Seed())),
		field("Sampler", fmt.Sprintf("%s · %d steps · cfg %.1f", p.Sampler, p.Steps, p.CFGScale)),
	}
	if r := img.Result; r != nil && r.Model != "" {
		lines = append(lines, field("Model", truncate(r.Model, width-12)))
	} else if p.Model != "" {
		lines = append(lines, field("Model", truncate(p.Model, width-12)))
	}
	lines = append(lines, "", styles.AccentText.Render("Prompt"), wrap.Render(styles.Text.Render(p.Prompt)))
	if strings.TrimSpace(p.NegativePrompt) != "" {
		lines = append(lines, "", styles.AccentText.Render("Negative"), wrap.Render(styles.MutedText.Render(p.NegativePrompt)))
	}
	return strings.Join(lines, "\n")
}
