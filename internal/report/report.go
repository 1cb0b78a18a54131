// Package report defines the contract for rendering a finished case
// set to a console or other sink. The formatting/rendering layer
// itself is an explicit non-goal (§1); this package carries the
// interface plus an in-memory default that groups cases by status
// family, matching §7's "reports group cases by status and render the
// detail beside the name."
package report

import (
	"fmt"
	"io"

	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
)

// Reporter renders cases to w.
type Reporter interface {
	Report(w io.Writer, cases []*testcase.TestCase) error
}

// Grouped renders one line per case, cases ordered success family
// first, then failure, then skip, then unclassified.
type Grouped struct{}

var familyOrder = []status.Family{
	status.FamilySuccess,
	status.FamilyFailure,
	status.FamilySkip,
	status.FamilyUnknown,
}

func (Grouped) Report(w io.Writer, cases []*testcase.TestCase) error {
	byFamily := map[status.Family][]*testcase.TestCase{}

	for _, c := range cases {
		st, _ := c.SnapshotStatus()
		byFamily[st.Family()] = append(byFamily[st.Family()], c)
	}

	for _, fam := range familyOrder {
		for _, c := range byFamily[fam] {
			st, detail := c.SnapshotStatus()

			line := fmt.Sprintf("%-10s %s", st.String(), c.DisplayName)
			if detail != "" {
				line += fmt.Sprintf(" (%s)", detail)
			}

			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}

	return nil
}
