// export_test.go exports private functions for white-box testing.
package logger

var (
	CollectErrorEntries = collectErrorEntries
	FormatErrorEntries  = formatErrorEntries
)

// EntryMessages returns the messages of collected entries.
func EntryMessages(entries []errorEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.message
	}
	return out
}
