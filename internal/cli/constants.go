package cli

// Default values for CLI flags and formatted output.
const (
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
	// exitInterrupted is the status used when a second interrupt aborts a sync.
	exitInterrupted = 130
)
