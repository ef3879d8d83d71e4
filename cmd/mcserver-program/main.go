// Command mcserver-program runs the server stack program under the Pulumi CLI.
package main

import (
	"github.com/chalkan3/mcserver/internal/orchestrator"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

func main() {
	pulumi.Run(orchestrator.Program(""))
}
