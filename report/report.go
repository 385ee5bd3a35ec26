// Package report renders assertion failures for terminals and test logs.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	jsoniter "github.com/json-iterator/go"
	"github.com/shibukawa/tableassert"
)

// JSONIndent is the indentation used for pretty-printed values.
const JSONIndent = "  "

var (
	tableHeaderFmt    = color.New(color.FgBlue, color.Bold).SprintfFunc()
	messageFmt        = color.New(color.Bold).SprintFunc()
	legendExpectedFmt = color.New(color.FgGreen).SprintFunc()
	legendActualFmt   = color.New(color.FgRed).SprintFunc()
	hunkFmt           = color.New(color.FgCyan).SprintFunc()
	detailKeyFmt      = color.New(color.FgBlue).SprintfFunc()
)

// Keys rendered as the expected/actual diff instead of as plain details.
var diffPairs = [][2]string{
	{"expected", "actual"},
	{"missingRows", "actualRows"},
}

// Format renders err with its table header, a unified diff of expected and actual
// values and the remaining details. Errors that carry no details print as is.
func Format(err error) string {
	if err == nil {
		return ""
	}

	ae, ok := tableassert.AsAssertionError(err)
	if !ok {
		return err.Error()
	}

	var b strings.Builder

	if table := ae.Table(); table != "" {
		b.WriteString(tableHeaderFmt("[%s] ", table))
	}

	b.WriteString(messageFmt(ae.Message))
	b.WriteString("\n")

	rendered := map[string]bool{"table": true}

	for _, pair := range diffPairs {
		expected, hasExpected := ae.Details[pair[0]]
		actual, hasActual := ae.Details[pair[1]]

		if !hasExpected || !hasActual {
			continue
		}

		rendered[pair[0]] = true
		rendered[pair[1]] = true

		b.WriteString(legendExpectedFmt("- "+pair[0]) + "  " + legendActualFmt("+ "+pair[1]) + "\n")
		b.WriteString(colorizeDiff(Diff(PrettyJSON(expected), PrettyJSON(actual))))

		break
	}

	keys := make([]string, 0, len(ae.Details))
	for key := range ae.Details {
		if !rendered[key] {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	for _, key := range keys {
		b.WriteString(detailKeyFmt("%s: ", key))
		b.WriteString(PrettyJSON(ae.Details[key]))
		b.WriteString("\n")
	}

	return b.String()
}

// PrettyJSON renders v as indented JSON. Values that cannot be marshaled fall back to
// their %v form.
func PrettyJSON(v any) string {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}

	// Custom marshalers emit compact output, so indentation is applied afterwards.
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", JSONIndent); err != nil {
		return string(data)
	}

	return buf.String()
}

// Diff returns a unified diff with three lines of context. It is empty when both texts
// are equal.
func Diff(expected, actual string) string {
	expected = withTrailingNewline(expected)
	actual = withTrailingNewline(actual)

	edits := myers.ComputeEdits(span.URIFromPath("expected"), expected, actual)

	return fmt.Sprint(gotextdiff.ToUnified("expected", "actual", expected, edits))
}

func withTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}

	return s + "\n"
}

func colorizeDiff(diff string) string {
	lines := strings.SplitAfter(diff, "\n")

	var b strings.Builder

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			b.WriteString(line)
		case strings.HasPrefix(line, "@@"):
			b.WriteString(hunkFmt(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(legendExpectedFmt(line))
		case strings.HasPrefix(line, "+"):
			b.WriteString(legendActualFmt(line))
		default:
			b.WriteString(line)
		}
	}

	return b.String()
}
