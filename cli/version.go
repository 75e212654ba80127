package cli

import (
	"fmt"

	"github.com/grovetools/agentd/version"
	"github.com/spf13/cobra"
)

// SetVersionTemplate wires build metadata into cobra's --version flag so
// every agentd binary reports the same shape.
func SetVersionTemplate(cmd *cobra.Command, info version.Info) {
	cmd.Version = info.Short()
	cmd.SetVersionTemplate(fmt.Sprintf(`{{.Name}} {{.Version}}
  Built:     %s
  Go:        %s
  Platform:  %s
`, info.BuildDate, info.GoVersion, info.Platform))
}
