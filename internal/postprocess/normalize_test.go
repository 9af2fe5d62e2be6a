package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bracket", `The stress is [\sigma = \gamma h].`, `The stress is $$\sigma = \gamma h$$.`},
		{"display", `See \[ q_u = c N_c \] for clays.`, `See $$ q_u = c N_c $$ for clays.`},
		{"inline", `where \(\phi'\) is the friction angle`, `where $\phi'$ is the friction angle`},
		{"multiline", "[a\n+ b]", "$$a\n+ b$$"},
		{"nested", `[x [y] z]`, `$$x $$y$$ z$$`},
		{"no math", "Plain answer.", "Plain answer."},
		{"unmatched", "an [open bracket", "an [open bracket"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		`The stress is [\sigma = \gamma h].`,
		`\[ a [b] c \] and \(d\)`,
		`[x [y] z] then [w`,
		`\[(y] \\( odd`,
		"plain",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}
