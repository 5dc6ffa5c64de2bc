package bot

import "cashbot/internal/core"

// KeyboardWidth is the number of buttons per keyboard row.
const KeyboardWidth = 3

// Button is an inline keyboard button. Data is echoed back in the callback.
type Button struct {
	Label string
	Data  string
}

// Keyboard is a grid of inline buttons, rows top to bottom.
type Keyboard [][]Button

// ChunkButtons splits labels into rows of width, preserving order.
// Each button's data is its label.
func ChunkButtons(labels []string, width int) Keyboard {
	if width <= 0 {
		width = KeyboardWidth
	}
	rows := make(Keyboard, 0, (len(labels)+width-1)/width)
	for start := 0; start < len(labels); start += width {
		end := min(start+width, len(labels))
		row := make([]Button, 0, end-start)
		for _, l := range labels[start:end] {
			row = append(row, Button{Label: l, Data: l})
		}
		rows = append(rows, row)
	}
	return rows
}

// CategoryKeyboard is the category picker in declared order.
func CategoryKeyboard() Keyboard {
	return ChunkButtons(core.Categories(), KeyboardWidth)
}
