package redis

const (
	// KeyPrefix namespaces every key written by the reconciler
	KeyPrefix = "nomad-reconciler:"
	// KeyLastReport holds the JSON report of the latest cycle
	KeyLastReport = KeyPrefix + "report:last"
	// KeyReportHistory is a capped list of recent cycle IDs, newest first
	KeyReportHistory = KeyPrefix + "report:history"
	// KeyPrefixReport is the prefix for per-cycle report keys
	KeyPrefixReport = KeyPrefix + "report:cycle:"
	// ChannelReports receives every report as it is recorded
	ChannelReports = KeyPrefix + "reports"
)

// ReportKey returns the Redis key for a cycle report by ID
func ReportKey(cycleID string) string {
	return KeyPrefixReport + cycleID
}
