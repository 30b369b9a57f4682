package cli

import (
	"strconv"
	"strings"

	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// RenderTable lays rows out in left-aligned columns under a bold header.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	b.WriteString(renderRow(headers, widths, TableHeaderStyle))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(renderRow(row, widths, TableCellStyle))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRow(cells []string, widths []int, style lipgloss.Style) string {
	rendered := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		// PaddingRight is included in Width, so add it back.
		rendered[i] = style.Width(w + style.GetPaddingRight()).Render(cell)
	}
	return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, rendered...), " ")
}

// ClientTable renders clients in the order given.
func ClientTable(clients []model.Client) string {
	rows := make([][]string, 0, len(clients))
	for _, c := range clients {
		name := c.DisplayName()
		if c.IsPinned {
			name = PinIcon + " " + name
		}
		rows = append(rows, []string{
			c.ID,
			name,
			string(c.Status),
			FormatScore(c.Scores.Experian),
			FormatScore(c.Scores.Equifax),
			FormatScore(c.Scores.TransUnion),
			c.LastMessage,
		})
	}
	return RenderTable([]string{"ID", "Name", "Status", "EX", "EQ", "TU", "Last message"}, rows)
}

// LenderTable renders a client's banking relationships.
func LenderTable(lenders []model.LenderRelationship) string {
	rows := make([][]string, 0, len(lenders))
	for _, l := range lenders {
		winner := ""
		if l.IsWinner {
			winner = SuccessIcon
		}
		rows = append(rows, []string{l.ID, l.Institution, string(l.Tier), l.Status, strconv.Itoa(l.MinScore), winner})
	}
	return RenderTable([]string{"ID", "Institution", "Tier", "Status", "Min score", "Winner"}, rows)
}

// FindingTable renders stored audit findings with their violation counts.
func FindingTable(findings []model.StoredFinding) string {
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, []string{
			f.RowID,
			f.Analysis.AccountName,
			string(f.Status),
			strconv.Itoa(len(f.Analysis.Violations)),
			f.Engine,
			f.LastError,
		})
	}
	return RenderTable([]string{"Row", "Account", "Status", "Violations", "Engine", "Error"}, rows)
}

// LawDocTable renders legal library entries.
func LawDocTable(docs []model.LawDoc) string {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{d.ID, d.Title, d.Category, d.Citation})
	}
	return RenderTable([]string{"ID", "Title", "Category", "Citation"}, rows)
}

// FormatScore renders an absent score as a dash; zero stays zero.
func FormatScore(score *int) string {
	if score == nil {
		return "-"
	}
	return strconv.Itoa(*score)
}
