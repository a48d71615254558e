package ui

import (
	"fmt"
	"strings"

	"github.com/vietdv277/stratus/internal/engine"
)

// action glyphs, terraform-style
const (
	glyphCreate  = "+"
	glyphUpdate  = "~"
	glyphReplace = "±"
	glyphDestroy = "-"
)

// RenderPlan formats a plan for the terminal.
func RenderPlan(p *engine.Plan) string {
	if !p.HasChanges() {
		return OKStyle.Render("No changes.") + " Infrastructure matches the declaration.\n"
	}

	var sb strings.Builder

	for _, c := range p.Changes {
		if c.Action == engine.ActionNoop {
			continue
		}

		glyph, style, verb := describeAction(c.Action)

		header := fmt.Sprintf("%s %s/%s will be %s", glyph, c.Kind, c.Name, verb)
		sb.WriteString(style.Render(header))
		sb.WriteString("\n")

		for _, d := range c.Diffs {
			sb.WriteString(renderDiff(d, style))
		}
		sb.WriteString("\n")
	}

	add, change, replace, destroy := p.Counts()
	sb.WriteString(HeaderStyle.Render(fmt.Sprintf(
		"Plan: %d to add, %d to change, %d to replace, %d to destroy.", add, change, replace, destroy)))
	sb.WriteString("\n")

	return sb.String()
}

func renderDiff(d engine.AttrDiff, style interface{ Render(...string) string }) string {
	var line string
	switch {
	case d.Old == "" && d.New != "":
		line = fmt.Sprintf("    %-36s %s", d.Attribute+":", quote(d.New))
	case d.New == "":
		line = fmt.Sprintf("    %-36s %s -> (none)", d.Attribute+":", quote(d.Old))
	default:
		line = fmt.Sprintf("    %-36s %s -> %s", d.Attribute+":", quote(d.Old), quote(d.New))
	}
	if d.ForcesReplace {
		line += MutedStyle.Render("  # forces replacement")
	}
	return line + "\n"
}

func describeAction(a engine.Action) (glyph string, style interface{ Render(...string) string }, verb string) {
	switch a {
	case engine.ActionCreate:
		return glyphCreate, CreateStyle, "created"
	case engine.ActionUpdate:
		return glyphUpdate, UpdateStyle, "updated in place"
	case engine.ActionReplace:
		return glyphReplace, ReplaceStyle, "replaced"
	case engine.ActionDelete:
		return glyphDestroy, DestroyStyle, "destroyed"
	default:
		return " ", MutedStyle, "left unchanged"
	}
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.HasPrefix(s, "(") {
		return s
	}
	return fmt.Sprintf("%q", s)
}
