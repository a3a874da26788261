package exitcodes

// Exit codes for dupesweep
// These codes form the operational contract with scripts and operators
const (
	Success       = 0 // Scan finished, whether or not duplicates were found or deleted
	Usage         = 1 // Wrong number of arguments or unknown flag
	InvalidConfig = 2 // Configuration file invalid or missing
	RuntimeError  = 3 // Scan root unusable or history database unavailable
)
