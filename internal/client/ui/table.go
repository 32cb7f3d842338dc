package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BioHazard786/warpmesh/internal/protocol"
)

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// RoomTable renders the rooms the relay lists.
func RoomTable(rooms []protocol.RoomID) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No open rooms")
	}
	rows := make([][]string, 0, len(rooms))
	for i, r := range rooms {
		rows = append(rows, []string{strconv.Itoa(i + 1), r.String()})
	}
	return newTable([]string{"#", "Room"}, rows).Render()
}

func RenderRoomTable(rooms []protocol.RoomID) {
	fmt.Fprintf(Output, "%s %s\n", IconRoom, TitleStyle.Render("Open rooms"))
	fmt.Fprintln(Output, RoomTable(rooms))
}

// RoomInfo is the box shown after a room is created.
func RoomInfo(room protocol.RoomID) string {
	content := fmt.Sprintf("%s Room created\n\n%s Room ID:  %s\n\n%s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(room.String()),
		MutedStyle.Render("Others join with: warpmesh join "+room.String()),
	)
	return RoomBoxStyle.Render(content)
}
