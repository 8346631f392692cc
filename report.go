package prioinv

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Row aggregates the samples of one protocol.
type Row struct {
	Mode     ProtocolMode `json:"mode"`
	Samples  int          `json:"samples"`
	Baseline bool         `json:"baseline"`

	MeanElapsed time.Duration `json:"-"`
	MeanWait    time.Duration `json:"-"`

	ElapsedMicros int64 `json:"elapsed_us"`
	WaitMicros    int64 `json:"contender_wait_us"`

	// HasDelta is set when a baseline exists to compare against.
	HasDelta         bool    `json:"-"`
	ReductionMicros  int64   `json:"reduction_us,omitempty"`
	ReductionPercent float64 `json:"reduction_percent,omitempty"`

	Degraded bool     `json:"degraded,omitempty"`
	Notes    []string `json:"notes,omitempty"`
}

// Report compares the protocols against the [NoProtection] baseline.
type Report struct {
	Rows    []Row `json:"rows"`
	Samples int   `json:"samples"`
}

// Summarize aggregates samples per protocol, in trial order, and computes each
// protocol's reduction in mean trial duration relative to the baseline. The
// samples are not modified.
func Summarize(samples []TimingSample) (*Report, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	groups := make(map[ProtocolMode][]TimingSample)
	for _, s := range samples {
		groups[s.Mode] = append(groups[s.Mode], s)
	}

	report := &Report{Samples: len(samples)}
	for _, mode := range Modes() {
		group, ok := groups[mode]
		if !ok {
			continue
		}
		report.Rows = append(report.Rows, summarizeMode(mode, group))
	}

	base, ok := report.baseline()
	if !ok {
		return report, nil
	}
	for i := range report.Rows {
		row := &report.Rows[i]
		if row.Baseline {
			continue
		}
		row.HasDelta = true
		row.ReductionMicros = base.ElapsedMicros - row.ElapsedMicros
		if base.ElapsedMicros > 0 {
			row.ReductionPercent = float64(row.ReductionMicros) / float64(base.ElapsedMicros) * 100
		}
	}

	return report, nil
}

func summarizeMode(mode ProtocolMode, group []TimingSample) Row {
	row := Row{
		Mode:     mode,
		Samples:  len(group),
		Baseline: mode == NoProtection,
	}

	var elapsed, wait time.Duration
	for _, s := range group {
		elapsed += s.Duration
		wait += s.ContenderWait
		if s.Degraded {
			row.Degraded = true
			for _, a := range s.Annotations {
				row.Notes = append(row.Notes, fmt.Sprintf("round %d: %s", s.Round, a))
			}
		}
	}

	n := time.Duration(len(group))
	row.MeanElapsed = elapsed / n
	row.MeanWait = wait / n
	row.ElapsedMicros = row.MeanElapsed.Microseconds()
	row.WaitMicros = row.MeanWait.Microseconds()
	return row
}

func (r *Report) baseline() (Row, bool) {
	for _, row := range r.Rows {
		if row.Baseline {
			return row, true
		}
	}
	return Row{}, false
}

// Render writes the report as a text table. Degraded protocols are marked with
// an asterisk and their notes follow the table.
func (r *Report) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "MODE\tSAMPLES\tELAPSED(us)\tCONTENDER WAIT(us)\tIMPROVEMENT(us)\tIMPROVEMENT(%)")
	for _, row := range r.Rows {
		name := row.Mode.String()
		if row.Degraded {
			name += "*"
		}

		improvement, percent := "-", "-"
		switch {
		case row.Baseline:
			improvement = "baseline"
		case row.HasDelta:
			improvement = fmt.Sprintf("%d", row.ReductionMicros)
			percent = fmt.Sprintf("%.2f%%", row.ReductionPercent)
		}

		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			name, row.Samples, row.ElapsedMicros, row.WaitMicros, improvement, percent)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var notes []string
	for _, row := range r.Rows {
		for _, n := range row.Notes {
			notes = append(notes, fmt.Sprintf("  %s: %s", row.Mode, n))
		}
	}
	if len(notes) > 0 {
		_, err := fmt.Fprintf(w, "\n* degraded, not comparable:\n%s\n", strings.Join(notes, "\n"))
		return err
	}
	return nil
}
