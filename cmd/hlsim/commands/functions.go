package commands

import (
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
	"github.com/liangcheng-yu/hyperlight/pkg/host"
)

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the host and guest function tables",
	RunE:  listFunctions,
}

func listFunctions(cmd *cobra.Command, args []string) error {
	sb, err := host.NewSandbox(host.DefaultConfig())
	if err != nil {
		return err
	}
	defer sb.Close()
	if err := sb.Start(demoMain); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Side", "Function", "Parameters", "Returns"})
	for _, fn := range sb.HostFunctions() {
		table.Append([]string{"host", fn.Name, paramList(fn.ParameterTypes), fn.ReturnType.String()})
	}
	for _, def := range sb.Runtime().Registry().Definitions() {
		table.Append([]string{"guest", def.Name, paramList(def.ParameterTypes), def.ReturnType.String()})
	}
	table.Render()
	return nil
}

func paramList(params []wire.ParameterType) string {
	if len(params) == 0 {
		return "-"
	}
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.String()
	}
	return strings.Join(names, ", ")
}
