package edb

import "strings"

// quoteLabel renders s as a Prometheus-style label value for use inside a
// VictoriaMetrics metric name, in the style of ValentinKolb-dKV's own
// metrics labeling.
func quoteLabel(s string) string {
	var buf strings.Builder
	buf.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteRune(r)
	}
	buf.WriteByte('"')
	return buf.String()
}
