package run

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

const separator = "--------------------------------------------------------------------------------"

// Report renders screening results to the console as they complete.
type Report struct {
	out       io.Writer
	liveHours bool
	p         *message.Printer
}

func (r *Report) price(v float64) string {
	return fmt.Sprintf("$%s", r.p.Sprintf("%.2f", v))
}

func (r *Report) priceRange(pr eventmodels.PriceRange) string {
	return fmt.Sprintf("%s - %s", r.price(pr.Low), r.price(pr.High))
}

func (r *Report) leg(label string, leg *eventmodels.OptionLeg) {
	if leg == nil {
		fmt.Fprintf(r.out, "%s: not available\n", label)
		return
	}

	line := &strings.Builder{}
	fmt.Fprintf(line, "%s %s:", label, leg.Contract)

	if price, ok := leg.Price(); ok {
		fmt.Fprintf(line, " %s", r.price(price))
	} else {
		fmt.Fprint(line, " no price")
	}

	if r.liveHours && leg.Quote != nil && leg.Quote.Computation != nil {
		c := leg.Quote.Computation
		fmt.Fprintf(line, " (IV %.2f%%, delta %.3f, gamma %.3f, vega %.3f, theta %.3f)", c.ImpliedVolatility*100, c.Delta, c.Gamma, c.Vega, c.Theta)
	}

	fmt.Fprintln(r.out, line.String())
}

func (r *Report) moves(moves []eventmodels.MoveRecord) {
	if len(moves) == 0 {
		fmt.Fprintln(r.out, "No historical moves retained.")
		return
	}

	fmt.Fprintf(r.out, "Largest %d daily moves:\n", len(moves))

	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"Date", "Open", "High", "Low", "Close", "Length", "Move"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, m := range moves {
		table.Append([]string{
			m.Date.Format("2006-01-02"),
			r.p.Sprintf("%.2f", m.Open),
			r.p.Sprintf("%.2f", m.High),
			r.p.Sprintf("%.2f", m.Low),
			r.p.Sprintf("%.2f", m.Close),
			r.p.Sprintf("%.2f", m.CandleLength),
			fmt.Sprintf("%.2f%%", m.PercentMove),
		})
	}

	table.Render()
}

func symbolLabel(result *eventmodels.ScreeningResult) string {
	if result.Symbol == "" {
		return "(blank symbol)"
	}

	return result.Symbol.String()
}

func (r *Report) earnings(entry *eventmodels.WatchlistEntry) {
	if entry == nil || entry.EarningsDate == "" {
		return
	}

	line := strings.TrimSpace(fmt.Sprintf("Earnings: %s %s", entry.EarningsDate, entry.GetEarningsHour().Describe()))
	fmt.Fprintln(r.out, line)
}

// PrintResult writes the per symbol section. It is a screener ResultHandler.
func (r *Report) PrintResult(result *eventmodels.ScreeningResult) {
	fmt.Fprintln(r.out, separator)
	fmt.Fprintf(r.out, "Evaluating options for %s...\n", symbolLabel(result))
	r.earnings(result.Entry)

	if result.UnderlyingQuote != nil {
		mode := "live"
		if result.UnderlyingQuote.Stale {
			mode = "snapshot"
		}

		fmt.Fprintf(r.out, "Market data (%s): %s\n", mode, result.UnderlyingQuote)
	}

	if result.ChainSize > 0 {
		fmt.Fprintf(r.out, "Option chain: %d contracts expiring %s\n", result.ChainSize, result.Expiry.Format("2006-01-02"))
	}

	if result.ATMCall != nil || result.ATMPut != nil {
		r.leg("ATM call", result.ATMCall)
		r.leg("ATM put", result.ATMPut)
		r.leg("Strangle call", result.StrangleCall)
		r.leg("Strangle put", result.StranglePut)
	}

	if a := result.Analysis; a != nil {
		r.moves(a.Moves)
		fmt.Fprintf(r.out, "Expected move: +/-%s, range %s\n", r.price(a.ExpectedMove), r.priceRange(a.ExpectedRange))
		fmt.Fprintf(r.out, "Historical average move: %.2f%%, range %s\n", a.AveragePercentMove, r.priceRange(a.HistoricalRange))
		fmt.Fprintf(r.out, "Careful strangle boundaries: %s\n", r.priceRange(a.StrangleBoundaries))
	}

	switch result.Verdict.Kind {
	case eventmodels.VerdictAccepted:
		fmt.Fprintf(r.out, "%s: accepted\n", result.Symbol)
	case eventmodels.VerdictRejected:
		fmt.Fprintf(r.out, "%s: %s. Stock does not meet criteria.\n", result.Symbol, result.Verdict.Reason)
	default:
		fmt.Fprintf(r.out, "Skipping %s: %s\n", symbolLabel(result), result.Verdict.Reason)
	}
}

// PrintSummary writes one row per screened symbol.
func (r *Report) PrintSummary(results []*eventmodels.ScreeningResult) {
	fmt.Fprintln(r.out, separator)
	fmt.Fprintf(r.out, "Screened %d symbols\n", len(results))

	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"Symbol", "Verdict", "Reason", "Mark", "Strangle Boundaries"})
	table.SetAutoWrapText(false)

	for _, result := range results {
		mark := ""
		if result.Mark > 0 {
			mark = r.price(result.Mark)
		}

		boundaries := ""
		if result.Analysis != nil {
			boundaries = r.priceRange(result.Analysis.StrangleBoundaries)
		}

		reason := ""
		if result.Verdict.Kind != eventmodels.VerdictAccepted {
			reason = result.Verdict.Reason
		}

		table.Append([]string{symbolLabel(result), string(result.Verdict.Kind), reason, mark, boundaries})
	}

	table.Render()
}

func NewReport(out io.Writer, liveHours bool) *Report {
	return &Report{
		out:       out,
		liveHours: liveHours,
		p:         message.NewPrinter(language.English),
	}
}
