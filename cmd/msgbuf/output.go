package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// printFields renders key/value rows as a two column table.
func printFields(w io.Writer, rows [][2]string) {
	table := newTable(w, "Field", "Value")
	for _, r := range rows {
		table.Append([]string{r[0], r[1]})
	}
	table.Render()
}

func printResult(w io.Writer, result *types.TransactionResult) {
	status := "success"
	if !result.Success {
		status = "failed"
	}
	rows := [][2]string{
		{"Execution ID", result.ExecutionID},
		{"Status", status},
		{"Compute units", fmt.Sprintf("%d", result.ComputeUnits)},
		{"Accounts changed", fmt.Sprintf("%d", len(result.AccountDeltas))},
	}
	if result.Error != nil {
		rows = append(rows, [2]string{"Error", result.Error.Error()})
	}
	printFields(w, rows)

	if len(result.Logs) > 0 {
		fmt.Fprintln(w, "Logs:")
		for _, line := range result.Logs {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
