package measure

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

// Report writes one line per stage with its outcome and duration, then the total.
func Report(wrt io.Writer, msr Measure) error {
	tab := tabwriter.NewWriter(wrt, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tab, "STAGE\tOUTCOME\tEXIT\tDURATION")
	for _, name := range msr.Names() {
		if name == model.StartStage.Name || name == model.EndStage.Name {
			continue
		}
		mt := msr.GetMetric(name)
		exit := "-"
		if mt.Outcome() != NotRun {
			exit = fmt.Sprint(mt.ExitCode())
		}
		fmt.Fprintf(tab, "%s\t%s\t%s\t%s\n", name, mt.Outcome(), exit, mt.Duration())
	}
	if end := msr.GetMetric(model.EndStage.Name); end != nil {
		fmt.Fprintf(tab, "total\t\t\t%s\n", end.GetTotalDuration())
	}

	return errors.Wrap(tab.Flush(), "unable to write report")
}
