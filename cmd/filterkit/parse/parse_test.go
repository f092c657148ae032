package parse

import (
	"bytes"
	"strings"
	"testing"

	"github.com/libregraph/filterkit/cmd"
)

func TestParse(t *testing.T) {
	defer func() { WithTree, WithBER = false, false }()

	tests := []struct {
		input    string
		tree     bool
		ber      bool
		exitCode int
		contains []string
	}{
		{
			input: "(cn=Babs Jensen)",
			contains: []string{
				"canonical:   (cn=Babs Jensen)\n",
				"valid:       true\n",
				"state:       CompleteValid\n",
			},
		},
		{
			input: "(&(cn=a)(!(sn=b)))",
			tree:  true,
			contains: []string{
				"tree:\n  and [0,18)\n    equality [2,8) (cn=a)\n    not [8,17)\n      equality [10,16) (sn=b)\n",
			},
		},
		{
			input:    "(cn=a)",
			ber:      true,
			contains: []string{"ber:         a3060402636e040161\n"},
		},
		{
			input:    "(cn=a",
			ber:      true,
			exitCode: cmd.ExitCodeInvalidFilter,
			contains: []string{
				"valid:       false\n",
				"state:       Truncated\n",
				"0+1 UnbalancedParenthesis",
			},
		},
		{
			input:    "(objectClass>=z*) ",
			exitCode: cmd.ExitCodeInvalidFilter,
			contains: []string{
				"canonical:   (objectClass>=)\n",
				"original:    \"(objectClass>=z*) \"\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			WithTree, WithBER = tt.tree, tt.ber
			var buf bytes.Buffer
			err := parse(&buf, tt.input)
			if tt.exitCode == 0 && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.exitCode != 0 {
				if err == nil {
					t.Fatal("Expected error")
				}
				if code := cmd.ExitCode(err); code != tt.exitCode {
					t.Errorf("Expected exit code %d got %d", tt.exitCode, code)
				}
			}
			output := buf.String()
			for _, s := range tt.contains {
				if !strings.Contains(output, s) {
					t.Errorf("Expected output to contain %q, got:\n%s", s, output)
				}
			}
			if !tt.ber && strings.Contains(output, "ber:") {
				t.Errorf("Unexpected BER output:\n%s", output)
			}
		})
	}
}
