package sheetsclient

import (
	"fmt"
)

// tableOffset leaves two blank rows above the header for a title or notes
const tableOffset = 2

// PublishTable writes header and rows to the named tab. The tab is created if it doesn't
// exist; otherwise its contents are cleared and replaced.
func (c *Client) PublishTable(spreadsheetID, tabTitle string, header []string, rows [][]interface{}) error {
	exists, err := c.SheetExists(spreadsheetID, tabTitle)
	if err != nil {
		return err
	}

	if exists {
		if err := c.ClearValues(spreadsheetID, quoteTab(tabTitle)); err != nil {
			return fmt.Errorf("failed to clear tab %s: %w", tabTitle, err)
		}
	} else if _, err := c.CreateSheet(spreadsheetID, tabTitle); err != nil {
		return fmt.Errorf("failed to create tab %s: %w", tabTitle, err)
	}

	if err := c.UpdateValues(spreadsheetID, quoteTab(tabTitle)+"!A1", buildTable(header, rows)); err != nil {
		return fmt.Errorf("failed to write tab %s: %w", tabTitle, err)
	}
	return nil
}

// buildTable lays out the blank offset rows, the header and the data rows.
// Short rows are padded so stale cells are never left behind.
func buildTable(header []string, rows [][]interface{}) [][]interface{} {
	table := make([][]interface{}, 0, tableOffset+1+len(rows))
	for i := 0; i < tableOffset; i++ {
		table = append(table, []interface{}{})
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	table = append(table, headerRow)

	for _, row := range rows {
		padded := make([]interface{}, len(header))
		for i := range padded {
			if i < len(row) {
				padded[i] = row[i]
			} else {
				padded[i] = ""
			}
		}
		table = append(table, padded)
	}
	return table
}

// quoteTab quotes a tab title for use in A1 notation
func quoteTab(title string) string {
	return "'" + title + "'"
}
