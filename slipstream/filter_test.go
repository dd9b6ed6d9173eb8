package slipstream

import "testing"

func TestFilter(t *testing.T) {
	cases := []struct {
		build func() *Filter
		want  string
	}{
		{
			func() *Filter { return new(Filter) },
			"",
		},
		{
			func() *Filter { return new(Filter).Eq("resource:type", "VM") },
			`resource:type="VM"`,
		},
		{
			func() *Filter {
				return new(Filter).
					Eq("resource:type", "VM").
					Eq("connector/href", "connector/exoscale")
			},
			`resource:type="VM" and connector/href="connector/exoscale"`,
		},
		{
			// Values are quoted, so embedded quotes can't break the clause.
			func() *Filter { return new(Filter).Eq("name", `a "b"`) },
			`name="a \"b\""`,
		},
	}

	for _, c := range cases {
		if got := c.build().String(); got != c.want {
			t.Errorf("filter rendered as %q, want %q", got, c.want)
		}
	}
}
