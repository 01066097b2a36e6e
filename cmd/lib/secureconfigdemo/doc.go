// Package secureconfigdemo implements the logic for the secureconfigdemo
// binary.
//
// The binary boots an application with secureconfig.New, dumps its settings
// and secrets to the logs, optionally starts the cache refresh, then waits
// for the given duration or a shutdown signal.
//
// To use this library, create a package with main function as:
//
//	func main() {
//	  os.Exit(secureconfigdemo.Run())
//	}
package secureconfigdemo
