// Package version provides version information for the application.
package version

// Version is the current version of the application.
const Version = "1.0.0"

// AgentString returns the User-Agent value for outbound requests.
func AgentString() string {
	return "LiveCryptoPrice/v" + Version
}
