// Package secrets holds sensitive values and guards the places that would
// otherwise print or persist them.
//
// A Secret never renders its content through fmt, encoding/json or yaml.v3.
// The raw value is reachable only through Reveal, and the Pulumi form only
// through Output, which marks it as a Pulumi secret so it is encrypted in state.
//
//	key := secrets.New(string(pem))
//	fmt.Println(key)           // [REDACTED]
//	conn.PrivateKey = key.Output()
package secrets

import (
	"encoding/json"
	"fmt"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Redacted is printed in place of any secret value.
const Redacted = "[REDACTED]"

// Secret wraps a sensitive string.
type Secret struct {
	value string
}

// New wraps value as a Secret.
func New(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the raw value. Callers must not log or export it.
func (s Secret) Reveal() string {
	return s.value
}

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool {
	return s.value == ""
}

// Output returns the value as a Pulumi secret output.
func (s Secret) Output() pulumi.StringOutput {
	return pulumi.ToSecret(pulumi.String(s.value)).(pulumi.StringOutput)
}

func (s Secret) String() string {
	return Redacted
}

func (s Secret) GoString() string {
	return "secrets.Secret{" + Redacted + "}"
}

// Format covers every verb, including %q and %x, which would bypass String.
func (s Secret) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('#') {
		_, _ = f.Write([]byte(s.GoString()))
		return
	}
	_, _ = f.Write([]byte(Redacted))
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(Redacted)
}

func (s Secret) MarshalYAML() (interface{}, error) {
	return Redacted, nil
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(Redacted), nil
}
