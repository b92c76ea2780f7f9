package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/warden/internal/desktop"
)

var newDirectory = desktop.New

type windowRecord struct {
	Handle     string `json:"handle"`
	PID        uint32 `json:"pid"`
	Executable string `json:"executable"`
	Exists     bool   `json:"exists"`
}

func newWindowsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "windows <prefix>",
		Short: "List top-level windows whose owning executable starts with prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := newDirectory()
			matches := dir.FindByExecutablePrefix(args[0])
			records := make([]windowRecord, 0, len(matches))
			for _, m := range matches {
				records = append(records, windowRecord{
					Handle:     fmt.Sprintf("0x%x", uintptr(m.Handle)),
					PID:        m.PID,
					Executable: m.Executable,
					Exists:     dir.Exists(m.Handle),
				})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintf(out, "No windows owned by %q*\n", args[0])
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "HANDLE\tPID\tEXECUTABLE")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%d\t%s\n", r.Handle, r.PID, r.Executable)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print matches as JSON")
	return cmd
}
