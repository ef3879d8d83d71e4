package secrets

import (
	"errors"
	"fmt"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// ErrSecretExport is returned when a Secret is handed to an exporter.
var ErrSecretExport = errors.New("refusing to export secret value")

// Exporter exports stack outputs and rejects Secret values.
type Exporter struct {
	ctx      *pulumi.Context
	exported []string
}

// NewExporter creates an Exporter bound to ctx.
func NewExporter(ctx *pulumi.Context) *Exporter {
	return &Exporter{ctx: ctx}
}

// Export exports value under name. Values of type Secret or *Secret are rejected.
func (e *Exporter) Export(name string, value interface{}) error {
	switch value.(type) {
	case Secret, *Secret:
		return fmt.Errorf("%w: %s", ErrSecretExport, name)
	}

	input, ok := value.(pulumi.Input)
	if !ok {
		return fmt.Errorf("output %s: unsupported value type %T", name, value)
	}

	e.ctx.Export(name, input)
	e.exported = append(e.exported, name)
	return nil
}

// Names returns the names exported so far, in export order.
func (e *Exporter) Names() []string {
	return append([]string(nil), e.exported...)
}
