// Package secureconfig provides a batteries-included starting point for
// console services that keep their secrets in a key vault.
//
// New assembles the layered configuration, resolves the application secret
// set, configures logging and sentry, connects the optional cache and
// prepares the cache refresh. Run then runs the service until it returns or
// the process is asked to shut down.
//
// For the building blocks, please refer to the documentation of the
// subdirectories.
package secureconfig
